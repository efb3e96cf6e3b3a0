package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pawmart/wallet-backend/internal/config"
	"github.com/pawmart/wallet-backend/internal/models"
)

// HoldService reserves wallet funds during checkout. A hold freezes
// balance when opened and moves through pending -> completed (settled, the
// frozen amount is spent), pending -> cancelled (released by the user) or
// pending -> failed (settlement could not spend). Stale pending holds are
// released by the maintenance sweep.
type HoldService struct {
	cfg   *config.Config
	redis *RedisService
}

func NewHoldService(cfg *config.Config, redis *RedisService) *HoldService {
	return &HoldService{cfg: cfg, redis: redis}
}

func (h *HoldService) Open(ctx context.Context, userID int64, req *models.OpenHoldRequest) (*models.OrderHold, error) {
	metadata, _ := json.Marshal(map[string]string{"order_id": req.OrderID})

	_, _, err := h.redis.ApplyDelta(ctx, userID,
		models.TransactionTypeFreeze, req.Amount, "order:"+req.OrderID, metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	hold := &models.OrderHold{
		ID:        models.GenerateHoldID(),
		UserID:    userID,
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		Status:    models.HoldStatusPending,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}

	if err := h.save(ctx, hold); err != nil {
		return nil, err
	}
	return hold, nil
}

// Settle consumes a pending hold: the frozen amount is unfrozen and spent.
// The pending -> completed flip happens first, under WATCH on the hold key,
// so of two concurrent settles exactly one claims the hold and touches the
// wallet. If the spend is then beaten by a concurrent mutation, the hold is
// marked failed and the funds stay in the wallet.
func (h *HoldService) Settle(ctx context.Context, userID int64, holdID string) (*models.OrderHold, error) {
	hold, err := h.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.UserID != userID {
		return nil, ErrHoldNotFound
	}

	hold, err = h.flipStatus(ctx, holdID, models.HoldStatusPending, models.HoldStatusCompleted)
	if err != nil {
		return nil, err
	}

	source := "order:" + hold.OrderID

	if _, _, err := h.redis.ApplyDelta(ctx, userID,
		models.TransactionTypeUnfreeze, hold.Amount, source, nil); err != nil {
		return h.markFailed(ctx, hold, err)
	}

	if _, _, err := h.redis.ApplyDelta(ctx, userID,
		models.TransactionTypeSpend, hold.Amount, source, nil); err != nil {
		return h.markFailed(ctx, hold, err)
	}

	return hold, nil
}

// Release cancels a pending hold and returns the frozen amount. Like
// Settle, the status flip claims the hold before the wallet is touched.
func (h *HoldService) Release(ctx context.Context, userID int64, holdID string) (*models.OrderHold, error) {
	hold, err := h.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.UserID != userID {
		return nil, ErrHoldNotFound
	}

	hold, err = h.flipStatus(ctx, holdID, models.HoldStatusPending, models.HoldStatusCancelled)
	if err != nil {
		return nil, err
	}

	if _, _, err := h.redis.ApplyDelta(ctx, userID,
		models.TransactionTypeUnfreeze, hold.Amount, "order:"+hold.OrderID, nil); err != nil {
		logrus.WithField("hold_id", hold.ID).WithError(err).Error("failed to unfreeze released hold")
		return hold, err
	}

	return hold, nil
}

// flipStatus transitions a hold between statuses under WATCH on the hold
// key. A concurrent transition either loses the race and sees the new
// status, or invalidates this one and is retried against fresh state.
func (h *HoldService) flipStatus(ctx context.Context, holdID string, from, to models.HoldStatus) (*models.OrderHold, error) {
	key := fmt.Sprintf(KeyHold, holdID)

	var hold models.OrderHold

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrHoldNotFound
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(data), &hold); err != nil {
			return fmt.Errorf("failed to unmarshal hold: %v", err)
		}
		if hold.Status != from {
			return ErrHoldNotPending
		}

		hold.Status = to
		hold.UpdatedAt = time.Now().Unix()

		updated, err := json.Marshal(&hold)
		if err != nil {
			return fmt.Errorf("failed to marshal hold: %v", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			if to != models.HoldStatusPending {
				pipe.ZRem(ctx, KeyPendingHolds, hold.ID)
			}
			return nil
		})
		return err
	}

	for i := 0; i < applyDeltaRetries; i++ {
		err := h.redis.client.Watch(ctx, txf, key)
		if err == nil {
			return &hold, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, ErrConcurrentModification
}

func (h *HoldService) markFailed(ctx context.Context, hold *models.OrderHold, cause error) (*models.OrderHold, error) {
	failed, err := h.flipStatus(ctx, hold.ID, hold.Status, models.HoldStatusFailed)
	if err != nil {
		logrus.WithField("hold_id", hold.ID).WithError(err).Error("failed to mark hold failed")
		return hold, cause
	}
	return failed, cause
}

func (h *HoldService) Get(ctx context.Context, holdID string) (*models.OrderHold, error) {
	data, err := h.redis.client.Get(ctx, fmt.Sprintf(KeyHold, holdID)).Result()
	if err == redis.Nil {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %v", err)
	}

	var hold models.OrderHold
	if err := json.Unmarshal([]byte(data), &hold); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hold: %v", err)
	}
	return &hold, nil
}

func (h *HoldService) ListForUser(ctx context.Context, userID int64) ([]*models.OrderHold, error) {
	ids, err := h.redis.client.SMembers(ctx, fmt.Sprintf(KeyUserHolds, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list holds: %v", err)
	}

	var holds []*models.OrderHold
	for _, id := range ids {
		hold, err := h.Get(ctx, id)
		if err != nil {
			continue
		}
		holds = append(holds, hold)
	}
	return holds, nil
}

// ReleaseStale releases pending holds older than the hold TTL. Called from
// the maintenance sweep; returns how many were released.
func (h *HoldService) ReleaseStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-h.cfg.HoldTTL).Unix()

	ids, err := h.redis.client.ZRangeByScore(ctx, KeyPendingHolds, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan pending holds: %v", err)
	}

	released := 0
	for _, id := range ids {
		hold, err := h.Get(ctx, id)
		if err != nil {
			h.redis.client.ZRem(ctx, KeyPendingHolds, id)
			continue
		}
		if hold.Status != models.HoldStatusPending {
			h.redis.client.ZRem(ctx, KeyPendingHolds, id)
			continue
		}
		if _, err := h.Release(ctx, hold.UserID, hold.ID); err != nil {
			logrus.WithField("hold_id", hold.ID).WithError(err).Warn("failed to release stale hold")
			continue
		}
		released++
	}
	return released, nil
}

// save writes a freshly opened hold and indexes it. Later transitions go
// through flipStatus instead.
func (h *HoldService) save(ctx context.Context, hold *models.OrderHold) error {
	data, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("failed to marshal hold: %v", err)
	}

	_, err = h.redis.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf(KeyHold, hold.ID), data, 0)
		pipe.SAdd(ctx, fmt.Sprintf(KeyUserHolds, hold.UserID), hold.ID)
		pipe.ZAdd(ctx, KeyPendingHolds, redis.Z{
			Score:  float64(hold.CreatedAt),
			Member: hold.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save hold: %v", err)
	}
	return nil
}
