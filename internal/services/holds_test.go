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

func TestHoldSettleLifecycle(t *testing.T) {
	redisService := setupTestRedis(t)
	holds := services.NewHoldService(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer redisService.DeleteWalletData(ctx, userID)

	_, _, err := redisService.ApplyDelta(ctx, userID, models.TransactionTypeEarn, 1000, "test", nil)
	require.NoError(t, err)

	hold, err := holds.Open(ctx, userID, &models.OpenHoldRequest{OrderID: "order-1", Amount: 600})
	require.NoError(t, err)
	defer redisService.DeleteHold(ctx, userID, hold.ID)
	assert.Equal(t, models.HoldStatusPending, hold.Status)

	wallet, err := redisService.GetOrCreateWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), wallet.Balance)
	assert.Equal(t, int64(600), wallet.FrozenBalance)
	assert.Equal(t, int64(400), wallet.Spendable())

	settled, err := holds.Settle(ctx, userID, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusCompleted, settled.Status)

	wallet, err = redisService.GetOrCreateWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), wallet.Balance)
	assert.Equal(t, int64(0), wallet.FrozenBalance)
	assert.Equal(t, int64(600), wallet.TotalSpent)

	// A settled hold cannot be settled or released again.
	_, err = holds.Settle(ctx, userID, hold.ID)
	assert.True(t, errors.Is(err, services.ErrHoldNotPending))
	_, err = holds.Release(ctx, userID, hold.ID)
	assert.True(t, errors.Is(err, services.ErrHoldNotPending))
}

func TestHoldConcurrentSettleChargesOnce(t *testing.T) {
	redisService := setupTestRedis(t)
	holds := services.NewHoldService(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer redisService.DeleteWalletData(ctx, userID)

	_, _, err := redisService.ApplyDelta(ctx, userID, models.TransactionTypeEarn, 1000, "test", nil)
	require.NoError(t, err)

	hold, err := holds.Open(ctx, userID, &models.OpenHoldRequest{OrderID: "order-race", Amount: 400})
	require.NoError(t, err)
	defer redisService.DeleteHold(ctx, userID, hold.ID)

	// Two settles race for the same hold: exactly one may claim it and
	// spend the frozen amount.
	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := holds.Settle(ctx, userID, hold.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var settled int
	for err := range errs {
		if err == nil {
			settled++
			continue
		}
		ok := errors.Is(err, services.ErrHoldNotPending) || errors.Is(err, services.ErrConcurrentModification)
		require.True(t, ok, "unexpected settle failure: %v", err)
	}
	assert.Equal(t, 1, settled, "only one settle may win the hold")

	wallet, err := redisService.GetOrCreateWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), wallet.Balance, "the hold is charged exactly once")
	assert.Equal(t, int64(0), wallet.FrozenBalance)
	assert.Equal(t, int64(400), wallet.TotalSpent)

	refreshed, err := holds.Get(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusCompleted, refreshed.Status)
}

func TestHoldReleaseReturnsFunds(t *testing.T) {
	redisService := setupTestRedis(t)
	holds := services.NewHoldService(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer redisService.DeleteWalletData(ctx, userID)

	_, _, err := redisService.ApplyDelta(ctx, userID, models.TransactionTypeEarn, 800, "test", nil)
	require.NoError(t, err)

	hold, err := holds.Open(ctx, userID, &models.OpenHoldRequest{OrderID: "order-2", Amount: 300})
	require.NoError(t, err)
	defer redisService.DeleteHold(ctx, userID, hold.ID)

	released, err := holds.Release(ctx, userID, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusCancelled, released.Status)

	wallet, err := redisService.GetOrCreateWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), wallet.Balance)
	assert.Equal(t, int64(0), wallet.FrozenBalance)
}

func TestHoldOpenRequiresSpendableBalance(t *testing.T) {
	redisService := setupTestRedis(t)
	holds := services.NewHoldService(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer redisService.DeleteWalletData(ctx, userID)

	_, _, err := redisService.ApplyDelta(ctx, userID, models.TransactionTypeEarn, 200, "test", nil)
	require.NoError(t, err)

	_, err = holds.Open(ctx, userID, &models.OpenHoldRequest{OrderID: "order-3", Amount: 500})
	assert.True(t, errors.Is(err, services.ErrInsufficientBalance))
}

func TestHoldWrongUser(t *testing.T) {
	redisService := setupTestRedis(t)
	holds := services.NewHoldService(testConfig(), redisService)
	ctx := context.Background()
	userID := testUserID()
	defer redisService.DeleteWalletData(ctx, userID)

	_, _, err := redisService.ApplyDelta(ctx, userID, models.TransactionTypeEarn, 500, "test", nil)
	require.NoError(t, err)

	hold, err := holds.Open(ctx, userID, &models.OpenHoldRequest{OrderID: "order-4", Amount: 100})
	require.NoError(t, err)
	defer redisService.DeleteHold(ctx, userID, hold.ID)

	_, err = holds.Settle(ctx, userID+1, hold.ID)
	assert.True(t, errors.Is(err, services.ErrHoldNotFound))
}

func TestReleaseStaleHolds(t *testing.T) {
	redisService := setupTestRedis(t)
	cfg := testConfig()
	cfg.HoldTTL = time.Millisecond
	holds := services.NewHoldService(cfg, redisService)
	ctx := context.Background()
	userID := testUserID()
	defer redisService.DeleteWalletData(ctx, userID)

	_, _, err := redisService.ApplyDelta(ctx, userID, models.TransactionTypeEarn, 500, "test", nil)
	require.NoError(t, err)

	hold, err := holds.Open(ctx, userID, &models.OpenHoldRequest{OrderID: "order-5", Amount: 200})
	require.NoError(t, err)
	defer redisService.DeleteHold(ctx, userID, hold.ID)

	time.Sleep(10 * time.Millisecond)

	released, err := holds.ReleaseStale(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, released, 1)

	refreshed, err := holds.Get(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusCancelled, refreshed.Status)

	wallet, err := redisService.GetOrCreateWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.FrozenBalance)
}
