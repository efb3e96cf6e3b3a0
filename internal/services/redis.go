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

// applyDeltaRetries bounds the optimistic-lock retry loop before the
// conflict is surfaced as ErrConcurrentModification.
const applyDeltaRetries = 3

type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// GetOrCreateWallet returns the user's wallet, creating a zero-balance one
// on first access. Wallets are never deleted outside of admin resets.
func (s *RedisService) GetOrCreateWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		wallet := models.NewWallet(userID)
		if err := s.saveWallet(ctx, wallet); err != nil {
			return nil, fmt.Errorf("failed to create wallet: %v", err)
		}
		return wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %v", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}

	return &wallet, nil
}

func (s *RedisService) saveWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %v", err)
	}
	return s.client.Set(ctx, fmt.Sprintf(KeyWallet, wallet.UserID), data, 0).Err()
}

// ApplyDelta is the single mutation entry point for wallet balances. The
// read-validate-write cycle runs under WATCH on the wallet key so two
// concurrent mutations of the same wallet cannot lose an update; the loser
// retries against the fresh state. Exactly one transaction record is
// appended per successful call, in the same MULTI block as the balance
// write, together with the daily earning meter for earns.
func (s *RedisService) ApplyDelta(ctx context.Context, userID int64, txType models.TransactionType, amount int64, source string, metadata json.RawMessage) (*models.Wallet, *models.Transaction, error) {
	return s.applyDelta(ctx, userID, txType, amount, source, metadata, 0)
}

// ApplyEarnWithCap is an EARN gated by the daily earning cap. The meter is
// read under the same WATCH as the balance, so two concurrent earns cannot
// jointly overshoot the cap; landing exactly on it is allowed, one cent
// over rejects the whole earn.
func (s *RedisService) ApplyEarnWithCap(ctx context.Context, userID int64, amount int64, dailyCap int64, source string, metadata json.RawMessage) (*models.Wallet, *models.Transaction, error) {
	return s.applyDelta(ctx, userID, models.TransactionTypeEarn, amount, source, metadata, dailyCap)
}

func (s *RedisService) applyDelta(ctx context.Context, userID int64, txType models.TransactionType, amount int64, source string, metadata json.RawMessage, dailyCap int64) (*models.Wallet, *models.Transaction, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if !txType.Valid() {
		return nil, nil, fmt.Errorf("unknown transaction type: %s", txType)
	}

	key := fmt.Sprintf(KeyWallet, userID)
	capped := dailyCap > 0 && txType == models.TransactionTypeEarn

	var wallet models.Wallet
	var record *models.Transaction
	var dayKey string

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			wallet = *models.NewWallet(userID)
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(data), &wallet); err != nil {
				return fmt.Errorf("failed to unmarshal wallet: %v", err)
			}
		}

		if capped {
			earned, err := tx.Get(ctx, dayKey).Int64()
			if err != nil && err != redis.Nil {
				return fmt.Errorf("failed to read daily meter: %v", err)
			}
			remaining := dailyCap - earned
			if remaining < 0 {
				remaining = 0
			}
			if earned+amount > dailyCap {
				return &Denial{Reason: ErrDailyCapExceeded, Remaining: remaining}
			}
		}

		before := wallet.Balance

		switch txType {
		case models.TransactionTypeEarn:
			wallet.Balance += amount
			wallet.TotalEarned += amount
		case models.TransactionTypeSpend:
			if wallet.Spendable() < amount {
				return &Denial{Reason: ErrInsufficientBalance, Remaining: wallet.Spendable()}
			}
			wallet.Balance -= amount
			wallet.TotalSpent += amount
		case models.TransactionTypeRefund:
			wallet.Balance += amount
			wallet.TotalSpent -= amount
			if wallet.TotalSpent < 0 {
				wallet.TotalSpent = 0
			}
		case models.TransactionTypeFreeze:
			if wallet.Spendable() < amount {
				return &Denial{Reason: ErrInsufficientBalance, Remaining: wallet.Spendable()}
			}
			wallet.FrozenBalance += amount
		case models.TransactionTypeUnfreeze:
			wallet.FrozenBalance -= amount
			if wallet.FrozenBalance < 0 {
				wallet.FrozenBalance = 0
			}
		}

		now := time.Now()
		wallet.UpdatedAt = now.Unix()

		record = &models.Transaction{
			ID:            models.GenerateTransactionID(),
			UserID:        userID,
			Type:          txType,
			Source:        source,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  wallet.Balance,
			Metadata:      metadata,
			CreatedAt:     now.Unix(),
		}

		walletData, err := json.Marshal(&wallet)
		if err != nil {
			return fmt.Errorf("failed to marshal wallet: %v", err)
		}
		txData, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %v", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, walletData, 0)
			pipe.Set(ctx, fmt.Sprintf(KeyTransaction, record.ID), txData, 0)
			pipe.ZAdd(ctx, fmt.Sprintf(KeyUserTransactions, userID), redis.Z{
				Score:  float64(now.UnixNano()),
				Member: record.ID,
			})
			if txType == models.TransactionTypeEarn {
				pipe.IncrBy(ctx, dayKey, amount)
				pipe.Expire(ctx, dayKey, TTLDailyMeter)
			}
			return nil
		})
		return err
	}

	for i := 0; i < applyDeltaRetries; i++ {
		dayKey = fmt.Sprintf(KeyDailyEarned, userID, models.DayKey(time.Now()))
		watched := []string{key}
		if capped {
			watched = append(watched, dayKey)
		}
		err := s.client.Watch(ctx, txf, watched...)
		if err == nil {
			return &wallet, record, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"type":    txType,
				"attempt": i + 1,
			}).Debug("wallet update conflict, retrying")
			continue
		}
		return nil, nil, err
	}

	return nil, nil, ErrConcurrentModification
}

// ListTransactions returns the user's ledger entries, newest first.
func (s *RedisService) ListTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserTransactions, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %v", err)
	}
	if len(ids) == 0 {
		return []*models.Transaction{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyTransaction, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to fetch transactions: %v", err)
	}

	var transactions []*models.Transaction
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var record models.Transaction
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		transactions = append(transactions, &record)
	}

	return transactions, nil
}

// TodayEarned reads the daily earning meter. The meter is written in the
// same MULTI block as the earn itself, so a user always sees their own
// writes here.
func (s *RedisService) TodayEarned(ctx context.Context, userID int64) (int64, error) {
	key := fmt.Sprintf(KeyDailyEarned, userID, models.DayKey(time.Now()))
	total, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read daily meter: %v", err)
	}
	return total, nil
}

// ReconcileWallet checks the lifetime counters against the signed sum of
// the transaction log. A mismatch means a write slipped past ApplyDelta.
func (s *RedisService) ReconcileWallet(ctx context.Context, userID int64) error {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return err
	}

	ids, err := s.client.ZRange(ctx, fmt.Sprintf(KeyUserTransactions, userID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list transactions: %v", err)
	}

	var sum int64
	for _, id := range ids {
		data, err := s.client.Get(ctx, fmt.Sprintf(KeyTransaction, id)).Result()
		if err != nil {
			continue
		}
		var record models.Transaction
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		switch record.Type {
		case models.TransactionTypeEarn, models.TransactionTypeRefund:
			sum += record.Amount
		case models.TransactionTypeSpend:
			sum -= record.Amount
		}
	}

	if wallet.Balance != sum {
		logrus.WithFields(logrus.Fields{
			"user_id":  userID,
			"balance":  wallet.Balance,
			"log_sum":  sum,
			"mismatch": wallet.Balance - sum,
		}).Error("wallet balance does not reconcile with transaction log")
		return fmt.Errorf("wallet %d out of balance: have %d, log sum %d", userID, wallet.Balance, sum)
	}

	return nil
}

// ResetWallet zeroes a wallet in place. Admin-only; the transaction log is
// kept for audit. Runs under the same WATCH discipline as ApplyDelta so a
// concurrent earn either lands before the reset or retries after it, and a
// spend adjustment is appended for any balance wiped so the log still
// reconciles afterwards.
func (s *RedisService) ResetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	var wallet models.Wallet

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			wallet = *models.NewWallet(userID)
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(data), &wallet); err != nil {
				return fmt.Errorf("failed to unmarshal wallet: %v", err)
			}
		}

		now := time.Now()
		prior := wallet.Balance

		var record *models.Transaction
		if prior > 0 {
			metadata, _ := json.Marshal(map[string]int64{
				"prior_frozen":       wallet.FrozenBalance,
				"prior_total_earned": wallet.TotalEarned,
				"prior_total_spent":  wallet.TotalSpent,
			})
			record = &models.Transaction{
				ID:            models.GenerateTransactionID(),
				UserID:        userID,
				Type:          models.TransactionTypeSpend,
				Source:        "admin:reset",
				Amount:        prior,
				BalanceBefore: prior,
				BalanceAfter:  0,
				Metadata:      metadata,
				CreatedAt:     now.Unix(),
			}
		}

		wallet.Balance = 0
		wallet.FrozenBalance = 0
		wallet.TotalEarned = 0
		wallet.TotalSpent = 0
		wallet.UpdatedAt = now.Unix()

		walletData, err := json.Marshal(&wallet)
		if err != nil {
			return fmt.Errorf("failed to marshal wallet: %v", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, walletData, 0)
			if record != nil {
				txData, err := json.Marshal(record)
				if err != nil {
					return err
				}
				pipe.Set(ctx, fmt.Sprintf(KeyTransaction, record.ID), txData, 0)
				pipe.ZAdd(ctx, fmt.Sprintf(KeyUserTransactions, userID), redis.Z{
					Score:  float64(now.UnixNano()),
					Member: record.ID,
				})
			}
			return nil
		})
		return err
	}

	for i := 0; i < applyDeltaRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return &wallet, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"attempt": i + 1,
			}).Debug("wallet reset conflict, retrying")
			continue
		}
		return nil, err
	}

	return nil, ErrConcurrentModification
}

// WalletUserIDs scans the wallet keyspace; used by the maintenance sweep.
// The pattern also matches meter and index keys, so parsed ids are deduped.
func (s *RedisService) WalletUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	iter := s.client.Scan(ctx, 0, "wallet:[0-9]*", 0).Iterator()
	for iter.Next(ctx) {
		var userID int64
		if _, err := fmt.Sscanf(iter.Val(), "wallet:%d", &userID); err == nil && !seen[userID] {
			seen[userID] = true
			ids = append(ids, userID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan wallets: %v", err)
	}
	return ids, nil
}

// DeleteWalletData removes a user's wallet, meters and log. Test cleanup only.
func (s *RedisService) DeleteWalletData(ctx context.Context, userID int64) error {
	ids, _ := s.client.ZRange(ctx, fmt.Sprintf(KeyUserTransactions, userID), 0, -1).Result()
	for _, id := range ids {
		s.client.Del(ctx, fmt.Sprintf(KeyTransaction, id))
	}
	day := models.DayKey(time.Now())
	return s.client.Del(ctx,
		fmt.Sprintf(KeyWallet, userID),
		fmt.Sprintf(KeyUserTransactions, userID),
		fmt.Sprintf(KeyDailyEarned, userID, day),
		fmt.Sprintf(KeyDailyPlays, userID, day),
	).Err()
}

// ClearGameState drops a user's gate keys. Test cleanup only.
func (s *RedisService) ClearGameState(ctx context.Context, userID int64, gameIDs ...string) error {
	keys := []string{fmt.Sprintf(KeyDailyPlays, userID, models.DayKey(time.Now()))}
	for _, gameID := range gameIDs {
		keys = append(keys,
			fmt.Sprintf(KeyGameCooldown, userID, gameID),
			fmt.Sprintf(KeyGamePlaying, userID, gameID),
		)
	}
	return s.client.Del(ctx, keys...).Err()
}

// ClearRedeemRequest drops a dedupe slot. Test cleanup only.
func (s *RedisService) ClearRedeemRequest(ctx context.Context, userID int64, requestID string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRedeemResult, userID, requestID)).Err()
}

// DeleteHold removes a hold record and its indexes. Test cleanup only.
func (s *RedisService) DeleteHold(ctx context.Context, userID int64, holdID string) error {
	s.client.SRem(ctx, fmt.Sprintf(KeyUserHolds, userID), holdID)
	s.client.ZRem(ctx, KeyPendingHolds, holdID)
	return s.client.Del(ctx, fmt.Sprintf(KeyHold, holdID)).Err()
}
