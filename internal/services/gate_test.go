package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/wallet-backend/internal/models"
	"github.com/pawmart/wallet-backend/internal/services"
)

func cleanupGate(t *testing.T, redisService *services.RedisService, userID int64) {
	t.Helper()
	ctx := context.Background()
	redisService.ClearGameState(ctx, userID, "feed_pet", "quiz", "lucky_wheel")
	redisService.DeleteWalletData(ctx, userID)
}

func TestGateCooldown(t *testing.T) {
	redisService := setupTestRedis(t)
	gate := services.NewGameGate(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer cleanupGate(t, redisService, userID)

	_, err := gate.Begin(ctx, userID, "feed_pet", models.TierNone)
	require.NoError(t, err)
	require.NoError(t, gate.Complete(ctx, userID, "feed_pet"))

	// Second attempt inside the 60s cooldown is rejected with a wait time.
	_, err = gate.Begin(ctx, userID, "feed_pet", models.TierNone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrCooldownActive))

	var denial *services.Denial
	require.True(t, errors.As(err, &denial))
	assert.Greater(t, denial.RetryAfter, 50*time.Second)
	assert.LessOrEqual(t, denial.RetryAfter, 60*time.Second)
}

func TestGateCooldownRejectionLeavesBalanceUnchanged(t *testing.T) {
	redisService := setupTestRedis(t)
	cfg := testConfig()
	gate := services.NewGameGate(cfg, redisService)
	policy := services.NewEarningPolicy(cfg, redisService)
	ctx := context.Background()
	userID := testUserID()
	defer cleanupGate(t, redisService, userID)

	// First play earns.
	rule, err := gate.Begin(ctx, userID, "feed_pet", models.TierSilver)
	require.NoError(t, err)
	reward := policy.ComputeReward(rule, models.TierSilver)
	_, _, err = redisService.ApplyDelta(ctx, userID, models.TransactionTypeEarn, reward, "game:feed_pet", nil)
	require.NoError(t, err)
	require.NoError(t, gate.Complete(ctx, userID, "feed_pet"))

	before, err := redisService.GetOrCreateWallet(ctx, userID)
	require.NoError(t, err)

	// Second play 60s cooldown still running: rejected, wallet untouched.
	_, err = gate.Begin(ctx, userID, "feed_pet", models.TierSilver)
	assert.True(t, errors.Is(err, services.ErrCooldownActive))

	after, err := redisService.GetOrCreateWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, before.Balance, after.Balance)
}

func TestGateUnknownGame(t *testing.T) {
	redisService := setupTestRedis(t)
	gate := services.NewGameGate(testConfig(), redisService)

	_, err := gate.Begin(context.Background(), testUserID(), "poker", models.TierNone)
	assert.True(t, errors.Is(err, services.ErrUnknownGame))
}

func TestGateMembershipRequired(t *testing.T) {
	redisService := setupTestRedis(t)
	gate := services.NewGameGate(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer cleanupGate(t, redisService, userID)

	_, err := gate.Begin(ctx, userID, "lucky_wheel", models.TierNone)
	assert.True(t, errors.Is(err, services.ErrMembershipRequired))

	// Silver satisfies the wheel's minimum tier.
	_, err = gate.Begin(ctx, userID, "lucky_wheel", models.TierSilver)
	require.NoError(t, err)
	require.NoError(t, gate.Complete(ctx, userID, "lucky_wheel"))

	// Wheel is once per 7 days.
	_, err = gate.Begin(ctx, userID, "lucky_wheel", models.TierSilver)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrCooldownActive))

	var denial *services.Denial
	require.True(t, errors.As(err, &denial))
	assert.Greater(t, denial.RetryAfter, 6*24*time.Hour)
}

func TestGateDailyPlayLimit(t *testing.T) {
	redisService := setupTestRedis(t)
	cfg := testConfig()
	cfg.MaxPlaysPerDay = 2
	cfg.FeedPetCooldown = time.Millisecond
	gate := services.NewGameGate(cfg, redisService)
	ctx := context.Background()
	userID := testUserID()
	defer cleanupGate(t, redisService, userID)

	for i := 0; i < 2; i++ {
		_, err := gate.Begin(ctx, userID, "feed_pet", models.TierNone)
		require.NoError(t, err)
		require.NoError(t, gate.Complete(ctx, userID, "feed_pet"))
		time.Sleep(5 * time.Millisecond) // let the tiny cooldown lapse
	}

	_, err := gate.Begin(ctx, userID, "feed_pet", models.TierNone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrDailyPlayLimit))

	var denial *services.Denial
	require.True(t, errors.As(err, &denial))
	assert.Greater(t, denial.RetryAfter, time.Duration(0), "rejection must carry the wait until the day rolls over")
}

func TestGateConcurrentBeginsHonorBudget(t *testing.T) {
	redisService := setupTestRedis(t)
	cfg := testConfig()
	cfg.MaxPlaysPerDay = 1
	gate := services.NewGameGate(cfg, redisService)
	ctx := context.Background()
	userID := testUserID()
	defer cleanupGate(t, redisService, userID)

	// Two different games begin at once against a budget of one play. The
	// per-game playing lock does not cover this; the counter must.
	games := []string{"feed_pet", "quiz"}
	var wg sync.WaitGroup
	errs := make(chan error, len(games))

	for _, gameID := range games {
		wg.Add(1)
		go func(gameID string) {
			defer wg.Done()
			_, err := gate.Begin(ctx, userID, gameID, models.TierNone)
			errs <- err
		}(gameID)
	}
	wg.Wait()
	close(errs)

	var started, denied int
	for err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, services.ErrDailyPlayLimit):
			denied++
		default:
			t.Fatalf("unexpected begin failure: %v", err)
		}
	}
	assert.Equal(t, 1, started, "only one play fits the budget")
	assert.Equal(t, 1, denied)
}

func TestGateAbortDoesNotConsumePlay(t *testing.T) {
	redisService := setupTestRedis(t)
	gate := services.NewGameGate(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer cleanupGate(t, redisService, userID)

	_, err := gate.Begin(ctx, userID, "feed_pet", models.TierNone)
	require.NoError(t, err)
	require.NoError(t, gate.Abort(ctx, userID, "feed_pet"))

	// After an abort the game is immediately playable again and nothing
	// was counted against the daily budget.
	_, err = gate.Begin(ctx, userID, "feed_pet", models.TierNone)
	require.NoError(t, err)
	require.NoError(t, gate.Abort(ctx, userID, "feed_pet"))

	status, err := gate.Status(ctx, userID, models.TierNone)
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.PlaysToday)
}

func TestGatePlayInProgress(t *testing.T) {
	redisService := setupTestRedis(t)
	gate := services.NewGameGate(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer cleanupGate(t, redisService, userID)

	_, err := gate.Begin(ctx, userID, "feed_pet", models.TierNone)
	require.NoError(t, err)

	_, err = gate.Begin(ctx, userID, "feed_pet", models.TierNone)
	assert.True(t, errors.Is(err, services.ErrPlayInProgress))
}

func TestGateStatus(t *testing.T) {
	redisService := setupTestRedis(t)
	gate := services.NewGameGate(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer cleanupGate(t, redisService, userID)

	_, err := gate.Begin(ctx, userID, "feed_pet", models.TierNone)
	require.NoError(t, err)
	require.NoError(t, gate.Complete(ctx, userID, "feed_pet"))

	status, err := gate.Status(ctx, userID, models.TierNone)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.PlaysToday)
	require.Len(t, status.Games, 3)

	for _, gs := range status.Games {
		switch gs.GameID {
		case "feed_pet":
			assert.False(t, gs.Available)
			assert.Greater(t, gs.WaitSeconds, int64(0))
		case "quiz":
			assert.True(t, gs.Available)
		case "lucky_wheel":
			assert.False(t, gs.Available, "wheel needs a membership tier")
			assert.Equal(t, models.TierSilver, gs.RequiresTier)
		}
	}
}
