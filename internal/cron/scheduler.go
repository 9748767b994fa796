package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"resellerd/internal/billing"
	"resellerd/internal/models"
	"resellerd/internal/payment"
	"resellerd/internal/pkg/telegram"
	"resellerd/internal/provision"
	"resellerd/internal/repository"
	"resellerd/internal/suspension"
)

const (
	// settleBatchLimit caps how many configs a single hourly pass charges.
	// Anything left over is picked up by the next run.
	settleBatchLimit = 500

	// pendingPaymentTTL is how long an unpaid order stays pending before
	// it is expired.
	pendingPaymentTTL = 24 * time.Hour
)

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron       *cron.Cron
	logger     *zap.Logger
	repos      *CronRepos
	engine     *billing.Engine
	machine    *suspension.Machine
	reconciler *payment.Reconciler
	starsefar  payment.Pollable
	notifier   *telegram.Notifier
}

// CronRepos bundles repositories needed by cron jobs.
type CronRepos struct {
	Reseller    *repository.ResellerRepository
	Config      *repository.ConfigRepository
	Transaction *repository.TransactionRepository
	Setting     *repository.SettingRepository
	Panel       *repository.PanelRepository
}

// New creates a new cron scheduler.
func New(repos *CronRepos, engine *billing.Engine, machine *suspension.Machine, reconciler *payment.Reconciler, starsefar payment.Pollable, notifier *telegram.Notifier, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     logger,
		repos:      repos,
		engine:     engine,
		machine:    machine,
		reconciler: reconciler,
		starsefar:  starsefar,
		notifier:   notifier,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Hourly usage settlement - at minute 0
	s.cron.AddFunc("0 0 * * * *", func() {
		s.logger.Debug("Running: hourly charge")
		s.hourlyCharge()
	})

	// Traffic window sweep - every 5 minutes
	s.cron.AddFunc("0 */5 * * * *", func() {
		s.logger.Debug("Running: traffic window sweep")
		s.trafficWindowSweep()
	})

	// Starsefar payment polling - every 3 minutes
	s.cron.AddFunc("0 */3 * * * *", func() {
		s.logger.Debug("Running: starsefar payment check")
		s.starsefarPaymentCheck()
	})

	// Payment expire - every hour at minute 30
	s.cron.AddFunc("0 30 * * * *", func() {
		s.logger.Debug("Running: payment expire")
		s.paymentExpire()
	})

	// Panel uptime check - every 5 minutes
	s.cron.AddFunc("0 */5 * * * *", func() {
		s.logger.Debug("Running: panel uptime check")
		s.panelUptimeCheck()
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// ── Hourly usage settlement ──────────────────────────────────────────

// hourlyCharge settles accumulated usage for every config that has
// unbilled bytes, then re-evaluates each touched reseller once.
func (s *Scheduler) hourlyCharge() {
	defer s.recoverFromPanic("hourlyCharge")

	ctx := context.Background()
	st := billing.LoadSettings(s.repos.Setting)

	configs, err := s.repos.Config.FindSettleable(settleBatchLimit)
	if err != nil {
		s.logger.Error("Failed to load settleable configs", zap.Error(err))
		return
	}
	if len(configs) == 0 {
		return
	}

	touched := make(map[uint]bool)
	for _, cfg := range configs {
		if _, err := s.engine.Settle(ctx, cfg.ID, models.ActionHourlyCharge, st); err != nil {
			s.logger.Error("Hourly settlement failed",
				zap.Uint("config_id", cfg.ID),
				zap.Uint("reseller_id", cfg.ResellerID),
				zap.Error(err))
			continue
		}
		touched[cfg.ResellerID] = true
	}

	for resellerID := range touched {
		if _, err := s.machine.Evaluate(ctx, resellerID, st); err != nil {
			s.logger.Error("Post-charge evaluation failed",
				zap.Uint("reseller_id", resellerID), zap.Error(err))
		}
	}

	s.logger.Info("Hourly charge completed",
		zap.Int("configs", len(configs)),
		zap.Int("resellers", len(touched)))
}

// ── Traffic window sweep ─────────────────────────────────────────────

// trafficWindowSweep re-evaluates active traffic-mode resellers so a
// window that ended overnight suspends them without waiting for usage
// to come in.
func (s *Scheduler) trafficWindowSweep() {
	defer s.recoverFromPanic("trafficWindowSweep")

	ctx := context.Background()
	st := billing.LoadSettings(s.repos.Setting)

	resellers, err := s.repos.Reseller.FindByMode(models.BillingModeTraffic, models.ResellerActive)
	if err != nil {
		s.logger.Error("Failed to load traffic resellers", zap.Error(err))
		return
	}

	for _, r := range resellers {
		if _, err := s.machine.Evaluate(ctx, r.ID, st); err != nil {
			s.logger.Error("Window sweep evaluation failed",
				zap.Uint("reseller_id", r.ID), zap.Error(err))
		}
	}
}

// ── Starsefar payment polling ────────────────────────────────────────

// starsefarPaymentCheck polls pending Starsefar orders. Callbacks get
// dropped sometimes; polling catches the ones that never arrive.
func (s *Scheduler) starsefarPaymentCheck() {
	defer s.recoverFromPanic("starsefarPaymentCheck")

	if s.starsefar == nil {
		return
	}

	ctx := context.Background()
	txns, err := s.repos.Transaction.FindPendingByGateway("starsefar", 50)
	if err != nil {
		s.logger.Error("Failed to load pending starsefar orders", zap.Error(err))
		return
	}
	if len(txns) == 0 {
		return
	}

	st := billing.LoadSettings(s.repos.Setting)
	for _, txn := range txns {
		gatewayOrderID := txn.Meta.OrderID
		if gatewayOrderID == "" {
			gatewayOrderID = txn.OrderID
		}

		verify, err := s.starsefar.CheckOrder(ctx, gatewayOrderID)
		if err != nil {
			s.logger.Warn("Starsefar order check failed",
				zap.String("order_id", txn.OrderID), zap.Error(err))
			continue
		}
		if !verify.Verified {
			// Still unpaid; leave it pending until the expiry job
			// picks it up.
			continue
		}

		payload := map[string]interface{}{
			"order_id": gatewayOrderID,
			"ref_id":   verify.RefID,
			"source":   "poll",
		}
		if _, err := s.reconciler.MarkPaid(ctx, txn.OrderID, verify.RefID, payload, st); err != nil {
			s.logger.Error("Polled settlement failed",
				zap.String("order_id", txn.OrderID), zap.Error(err))
			continue
		}
		s.logger.Info("Settled payment via polling",
			zap.String("order_id", txn.OrderID),
			zap.Uint("reseller_id", txn.ResellerID))
	}
}

// ── Payment expire ───────────────────────────────────────────────────

// paymentExpire fails pending orders older than the TTL.
func (s *Scheduler) paymentExpire() {
	defer s.recoverFromPanic("paymentExpire")

	ctx := context.Background()
	cutoff := time.Now().Add(-pendingPaymentTTL)

	txns, err := s.repos.Transaction.FindPendingOlderThan(cutoff)
	if err != nil {
		s.logger.Error("Failed to load stale pending orders", zap.Error(err))
		return
	}

	for _, txn := range txns {
		if _, err := s.reconciler.MarkFailed(ctx, txn.OrderID, "expired"); err != nil {
			s.logger.Error("Failed to expire order",
				zap.String("order_id", txn.OrderID), zap.Error(err))
			continue
		}
		s.logger.Info("Expired pending payment",
			zap.String("order_id", txn.OrderID),
			zap.String("gateway", txn.Gateway))
	}
}

// ── Panel uptime check ───────────────────────────────────────────────

// panelUptimeCheck authenticates against every active panel so a dead
// panel is reported before provisioning calls start failing on it.
func (s *Scheduler) panelUptimeCheck() {
	defer s.recoverFromPanic("panelUptimeCheck")

	ctx := context.Background()
	panels, err := s.repos.Panel.FindActive()
	if err != nil {
		s.logger.Error("Failed to load active panels", zap.Error(err))
		return
	}

	for i := range panels {
		p := &panels[i]
		client, err := provision.NewClient(p)
		if err != nil {
			s.logger.Warn("Panel has unsupported type",
				zap.String("panel", p.Name), zap.Error(err))
			continue
		}
		if err := client.Authenticate(ctx); err != nil {
			s.logger.Warn("Panel unreachable",
				zap.String("panel", p.Name),
				zap.String("url", p.URL),
				zap.Error(err))
			if sendErr := s.notifier.Send(fmt.Sprintf("📡 Panel <b>%s</b> unreachable: %v", p.Name, err)); sendErr != nil {
				s.logger.Warn("Panel report failed", zap.Error(sendErr))
			}
		}
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
