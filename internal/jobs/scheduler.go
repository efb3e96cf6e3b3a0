// Package jobs runs the scheduled maintenance sweeps: releasing stale
// checkout holds and spot-checking ledger consistency.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pawmart/wallet-backend/internal/config"
	"github.com/pawmart/wallet-backend/internal/services"
)

type Scheduler struct {
	cron  *cron.Cron
	cfg   *config.Config
	redis *services.RedisService
	holds *services.HoldService
}

func NewScheduler(cfg *config.Config, redis *services.RedisService, holds *services.HoldService) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		cfg:   cfg,
		redis: redis,
		holds: holds,
	}
}

func (s *Scheduler) Start() error {
	// Stale holds cannot wait for the nightly run; sweep them often.
	if _, err := s.cron.AddFunc("@every 5m", s.releaseStaleHolds); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.MaintenanceSchedule, s.reconcileWallets); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) releaseStaleHolds() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	released, err := s.holds.ReleaseStale(ctx)
	if err != nil {
		logrus.WithError(err).Error("stale hold sweep failed")
		return
	}
	if released > 0 {
		logrus.WithField("released", released).Info("released stale holds")
	}
}

func (s *Scheduler) reconcileWallets() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	userIDs, err := s.redis.WalletUserIDs(ctx)
	if err != nil {
		logrus.WithError(err).Error("reconciliation sweep failed to list wallets")
		return
	}

	mismatches := 0
	for _, userID := range userIDs {
		if err := s.redis.ReconcileWallet(ctx, userID); err != nil {
			mismatches++
		}
	}

	logrus.WithFields(logrus.Fields{
		"wallets":    len(userIDs),
		"mismatches": mismatches,
	}).Info("nightly ledger reconciliation finished")
}
