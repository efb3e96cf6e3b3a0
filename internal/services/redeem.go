package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pawmart/wallet-backend/internal/config"
	"github.com/pawmart/wallet-backend/internal/models"
)

// pendingMarker occupies the dedupe slot while the first submission is
// still being processed.
const pendingMarker = "__pending__"

// Redeemer spends wallet balance against benefits. It only emits the SPEND
// transaction; issuing the redeemed benefit (coupon, free delivery) is the
// caller's job. Duplicate submissions of the same client request id within
// the dedupe window replay the first result instead of spending twice.
type Redeemer struct {
	cfg   *config.Config
	redis *RedisService
}

func NewRedeemer(cfg *config.Config, redis *RedisService) *Redeemer {
	return &Redeemer{cfg: cfg, redis: redis}
}

func (r *Redeemer) Redeem(ctx context.Context, userID int64, tier models.Tier, req *models.RedeemRequest) (*models.RedeemResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redemption: %w", err)
	}

	if req.OrderTotal > 0 {
		if capPct := tier.WalletUsageCapPct(); capPct > 0 {
			maxFromWallet := req.OrderTotal * capPct / 100
			if req.Cost > maxFromWallet {
				return nil, &Denial{Reason: ErrUsageCapExceeded, Remaining: maxFromWallet}
			}
		}
	}

	dedupeKey := fmt.Sprintf(KeyRedeemResult, userID, req.RequestID)

	acquired, err := r.redis.client.SetNX(ctx, dedupeKey, pendingMarker, r.cfg.RedeemDedupeWindow).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve request id: %v", err)
	}
	if !acquired {
		return r.replay(ctx, dedupeKey)
	}

	metadata, _ := json.Marshal(map[string]string{
		"benefit":    req.Benefit,
		"request_id": req.RequestID,
	})

	wallet, record, err := r.redis.ApplyDelta(ctx, userID,
		models.TransactionTypeSpend, req.Cost, "redeem:"+req.Benefit, metadata)
	if err != nil {
		// Free the slot so a corrected submission can reuse the id.
		r.redis.client.Del(ctx, dedupeKey)
		return nil, err
	}

	result := &models.RedeemResult{
		RequestID:     req.RequestID,
		Benefit:       req.Benefit,
		Cost:          req.Cost,
		TransactionID: record.ID,
		Balance:       wallet.Balance,
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %v", err)
	}
	if err := r.redis.client.Set(ctx, dedupeKey, data, r.cfg.RedeemDedupeWindow).Err(); err != nil {
		logrus.WithField("request_id", req.RequestID).
			WithError(err).Warn("failed to store redemption result for dedupe")
	}

	return result, nil
}

func (r *Redeemer) replay(ctx context.Context, dedupeKey string) (*models.RedeemResult, error) {
	data, err := r.redis.client.Get(ctx, dedupeKey).Result()
	if err == redis.Nil || (err == nil && data == pendingMarker) {
		return nil, ErrRequestInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prior result: %v", err)
	}

	var result models.RedeemResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prior result: %v", err)
	}
	result.Duplicate = true
	return &result, nil
}
