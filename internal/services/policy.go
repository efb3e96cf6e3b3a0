package services

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"

	"github.com/pawmart/wallet-backend/internal/config"
	"github.com/pawmart/wallet-backend/internal/models"
)

// EarningPolicy converts qualifying actions into reward amounts: a pick
// from the configured base range, scaled by the membership multiplier,
// bounded by the global daily earning cap.
type EarningPolicy struct {
	cfg   *config.Config
	redis *RedisService
}

func NewEarningPolicy(cfg *config.Config, redis *RedisService) *EarningPolicy {
	return &EarningPolicy{cfg: cfg, redis: redis}
}

// ComputeReward picks a base amount inside the rule's range and applies the
// tier multiplier, rounding half-up to whole cents.
func (p *EarningPolicy) ComputeReward(rule models.GameRule, tier models.Tier) int64 {
	base := rule.MinReward
	if rule.MaxReward > rule.MinReward {
		base += rand.Int63n(rule.MaxReward - rule.MinReward + 1)
	}
	return ScaleReward(base, tier.Multiplier())
}

// PurchaseReward computes the earn for a completed order: basis points of
// the subtotal, tier-scaled, capped per order. Returns 0 for orders below
// the qualifying minimum.
func (p *EarningPolicy) PurchaseReward(subtotal int64, tier models.Tier) int64 {
	if subtotal < p.cfg.PurchaseMinSubtotal {
		return 0
	}
	reward := subtotal * p.cfg.PurchaseRewardBps / 10000
	reward = ScaleReward(reward, tier.Multiplier())
	if p.cfg.PurchaseRewardCap > 0 && reward > p.cfg.PurchaseRewardCap {
		reward = p.cfg.PurchaseRewardCap
	}
	return reward
}

// Earn credits a reward subject to the global daily earning cap. Cap
// enforcement happens inside the wallet transaction, so concurrent earns
// serialize against the meter rather than both reading a stale total.
// Landing exactly on the cap is allowed; there is no partial credit.
func (p *EarningPolicy) Earn(ctx context.Context, userID int64, amount int64, source string, metadata json.RawMessage) (*models.Wallet, *models.Transaction, error) {
	return p.redis.ApplyEarnWithCap(ctx, userID, amount, p.cfg.DailyEarnCap, source, metadata)
}

// ScaleReward applies a tier multiplier to a base amount in cents,
// rounding half-up.
func ScaleReward(base int64, multiplier float64) int64 {
	return int64(math.Floor(float64(base)*multiplier + 0.5))
}
