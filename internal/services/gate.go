package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pawmart/wallet-backend/internal/config"
	"github.com/pawmart/wallet-backend/internal/models"
)

// GameGate tracks per-user play state for each game. A play moves through
// idle -> playing -> cooldown; the playing lock and the cooldown marker are
// both TTL keys, so the return to idle needs no sweeper. Rejected attempts
// always carry the remaining wait time.
type GameGate struct {
	cfg   *config.Config
	redis *RedisService
	rules map[string]models.GameRule
}

func NewGameGate(cfg *config.Config, redis *RedisService) *GameGate {
	return &GameGate{
		cfg:   cfg,
		redis: redis,
		rules: cfg.GameRules(),
	}
}

// Begin moves a play from idle to playing, or explains why it cannot:
// unknown game, tier too low, daily play budget spent, cooldown still
// running, or another play of the same game in flight.
func (g *GameGate) Begin(ctx context.Context, userID int64, gameID string, tier models.Tier) (models.GameRule, error) {
	rule, ok := g.rules[gameID]
	if !ok {
		return models.GameRule{}, ErrUnknownGame
	}

	if rule.MinTier != models.TierNone && !tier.AtLeast(rule.MinTier) {
		return rule, ErrMembershipRequired
	}

	now := time.Now()

	cdKey := fmt.Sprintf(KeyGameCooldown, userID, gameID)
	wait, err := g.redis.client.PTTL(ctx, cdKey).Result()
	if err != nil {
		return rule, fmt.Errorf("failed to check cooldown: %v", err)
	}
	if wait > 0 {
		return rule, &Denial{Reason: ErrCooldownActive, RetryAfter: wait}
	}

	// The play is counted up front with an atomic INCR so two concurrent
	// begins cannot both slip under the budget; aborted plays give the
	// count back.
	playsKey := fmt.Sprintf(KeyDailyPlays, userID, models.DayKey(now))
	plays, err := g.redis.client.Incr(ctx, playsKey).Result()
	if err != nil {
		return rule, fmt.Errorf("failed to count play: %v", err)
	}
	if plays == 1 {
		g.redis.client.Expire(ctx, playsKey, TTLDailyMeter)
	}
	if plays > g.cfg.MaxPlaysPerDay {
		g.redis.client.Decr(ctx, playsKey)
		return rule, &Denial{Reason: ErrDailyPlayLimit, RetryAfter: models.UntilNextDay(now)}
	}

	lockKey := fmt.Sprintf(KeyGamePlaying, userID, gameID)
	acquired, err := g.redis.client.SetNX(ctx, lockKey, now.Unix(), TTLPlayingLock).Result()
	if err != nil {
		g.redis.client.Decr(ctx, playsKey)
		return rule, fmt.Errorf("failed to acquire play lock: %v", err)
	}
	if !acquired {
		g.redis.client.Decr(ctx, playsKey)
		return rule, ErrPlayInProgress
	}

	return rule, nil
}

// Complete moves a play from playing to cooldown: it arms the replay
// marker for the game's frequency and drops the playing lock. The play was
// already counted against the daily budget in Begin.
func (g *GameGate) Complete(ctx context.Context, userID int64, gameID string) error {
	rule, ok := g.rules[gameID]
	if !ok {
		return ErrUnknownGame
	}

	now := time.Now()

	var cooldown time.Duration
	switch rule.Frequency {
	case models.FrequencyDaily:
		cooldown = models.UntilNextDay(now)
	case models.FrequencyWeekly:
		cooldown = 7 * 24 * time.Hour
	default:
		cooldown = rule.Cooldown
	}

	_, err := g.redis.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if cooldown > 0 {
			pipe.Set(ctx, fmt.Sprintf(KeyGameCooldown, userID, gameID), now.Unix(), cooldown)
		}
		pipe.Del(ctx, fmt.Sprintf(KeyGamePlaying, userID, gameID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to complete play: %v", err)
	}
	return nil
}

// Abort returns a play to idle without arming the cooldown: the playing
// lock is dropped and the play counted in Begin is given back. Used when a
// precondition after Begin denies the reward.
func (g *GameGate) Abort(ctx context.Context, userID int64, gameID string) error {
	playsKey := fmt.Sprintf(KeyDailyPlays, userID, models.DayKey(time.Now()))
	_, err := g.redis.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Decr(ctx, playsKey)
		pipe.Del(ctx, fmt.Sprintf(KeyGamePlaying, userID, gameID))
		return nil
	})
	return err
}

// Status reports each game's availability and the daily play budget, so
// the client can render timers without polling individual games.
func (g *GameGate) Status(ctx context.Context, userID int64, tier models.Tier) (*models.GameStatus, error) {
	now := time.Now()

	plays, err := g.playsToday(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	status := &models.GameStatus{
		PlaysToday:     plays,
		MaxPlaysPerDay: g.cfg.MaxPlaysPerDay,
	}

	gameIDs := make([]string, 0, len(g.rules))
	for id := range g.rules {
		gameIDs = append(gameIDs, id)
	}
	sort.Strings(gameIDs)

	for _, gameID := range gameIDs {
		rule := g.rules[gameID]
		gs := models.GameGateStatus{GameID: gameID, Available: plays < g.cfg.MaxPlaysPerDay}

		if rule.MinTier != models.TierNone {
			gs.RequiresTier = rule.MinTier
			if !tier.AtLeast(rule.MinTier) {
				gs.Available = false
			}
		}

		wait, err := g.redis.client.PTTL(ctx, fmt.Sprintf(KeyGameCooldown, userID, gameID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check cooldown: %v", err)
		}
		if wait > 0 {
			gs.Available = false
			gs.WaitSeconds = int64(wait.Round(time.Second).Seconds())
		} else if !gs.Available && plays >= g.cfg.MaxPlaysPerDay {
			gs.WaitSeconds = int64(models.UntilNextDay(now).Round(time.Second).Seconds())
		}

		status.Games = append(status.Games, gs)
	}

	return status, nil
}

func (g *GameGate) playsToday(ctx context.Context, userID int64, now time.Time) (int64, error) {
	key := fmt.Sprintf(KeyDailyPlays, userID, models.DayKey(now))
	plays, err := g.redis.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read play counter: %v", err)
	}
	return plays, nil
}
