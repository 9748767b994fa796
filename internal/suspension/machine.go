package suspension

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"resellerd/internal/billing"
	"resellerd/internal/models"
	"resellerd/internal/pkg/telegram"
	"resellerd/internal/pkg/utils"
	"resellerd/internal/provision"
)

// ResellerStore is the reseller persistence the machine needs.
type ResellerStore interface {
	FindByID(id uint) (*models.Reseller, error)
	UpdateStatus(id uint, status string) error
}

// ConfigStore is the config persistence the machine needs.
type ConfigStore interface {
	FindActive(resellerID uint) ([]models.ResellerConfig, error)
	FindAutoDisabled(resellerID uint, reason string) ([]models.ResellerConfig, error)
	MarkDisabled(cfg *models.ResellerConfig, reason string, at time.Time) error
	MarkEnabled(cfg *models.ResellerConfig) error
}

// Provisioner performs remote panel mutations.
type Provisioner interface {
	Enable(ctx context.Context, cfg *models.ResellerConfig) provision.RemoteActionResult
	Disable(ctx context.Context, cfg *models.ResellerConfig) provision.RemoteActionResult
}

// EventStore records remote action outcomes.
type EventStore interface {
	Record(ev *models.ProvisionEvent) error
}

// ReactivationReport counts a bulk re-enable pass.
type ReactivationReport struct {
	Enabled int `json:"enabled"`
	Failed  int `json:"failed"`
}

// NextStatus decides what a reseller's status should be given current
// billing state. Pure: no IO, all inputs explicit.
//
// A wallet reseller suspends only strictly below the threshold, so a
// balance sitting exactly on it stays active. A traffic reseller
// suspends when the validity window has passed or when used traffic,
// net of admin-forgiven bytes, reaches the purchased total. Operator
// statuses are sticky: disabled, suspended_other, and the legacy bare
// suspended only ever leave by explicit admin action, never by
// evaluation.
func NextStatus(r *models.Reseller, st billing.Settings, now time.Time) string {
	switch r.Status {
	case models.ResellerDisabled, models.ResellerSuspendedOther, models.ResellerSuspended:
		return r.Status
	}

	switch r.BillingMode {
	case models.BillingModeWallet:
		if r.WalletBalance < st.SuspensionThreshold {
			return models.ResellerSuspendedWallet
		}
	case models.BillingModeTraffic:
		if r.WindowEndsAt != nil && utils.StartOfDay(now).After(utils.StartOfDay(*r.WindowEndsAt)) {
			return models.ResellerSuspendedTraffic
		}
		if r.TrafficTotalBytes > 0 && r.TrafficUsedBytes-r.AdminForgivenBytes >= r.TrafficTotalBytes {
			return models.ResellerSuspendedTraffic
		}
	}
	return models.ResellerActive
}

// ReasonForStatus maps a suspension status to the auto-disable tag
// written onto configs, so reactivation only touches what suspension
// disabled.
func ReasonForStatus(status string) string {
	switch status {
	case models.ResellerSuspendedWallet:
		return models.DisableReasonWallet
	case models.ResellerSuspendedTraffic:
		return models.DisableReasonTraffic
	}
	return ""
}

// Machine drives reseller suspension and reactivation. Local state is
// authoritative: a remote panel failure never blocks the local
// transition, it is recorded as a provision event and reported.
type Machine struct {
	resellers ResellerStore
	configs   ConfigStore
	remote    Provisioner
	events    EventStore
	notifier  *telegram.Notifier
	logger    *zap.Logger
}

func NewMachine(resellers ResellerStore, configs ConfigStore, remote Provisioner, events EventStore, notifier *telegram.Notifier, logger *zap.Logger) *Machine {
	return &Machine{
		resellers: resellers,
		configs:   configs,
		remote:    remote,
		events:    events,
		notifier:  notifier,
		logger:    logger,
	}
}

// Evaluate re-checks one reseller against the thresholds and applies
// whatever transition falls out. Called after every wallet debit, every
// deposit, and from the periodic sweep. Returns the status the reseller
// ended up in.
func (m *Machine) Evaluate(ctx context.Context, resellerID uint, st billing.Settings) (string, error) {
	r, err := m.resellers.FindByID(resellerID)
	if err != nil {
		return "", fmt.Errorf("load reseller %d: %w", resellerID, err)
	}

	next := NextStatus(r, st, time.Now())
	if next == r.Status {
		return next, nil
	}

	switch {
	case next == models.ResellerSuspendedWallet || next == models.ResellerSuspendedTraffic:
		if err := m.suspend(ctx, r, next); err != nil {
			return r.Status, err
		}
	case next == models.ResellerActive && r.Suspended():
		reason := ReasonForStatus(r.Status)
		report := m.reactivate(ctx, r, reason)
		if err := m.resellers.UpdateStatus(r.ID, models.ResellerActive); err != nil {
			return r.Status, fmt.Errorf("activate reseller %d: %w", r.ID, err)
		}
		m.logger.Info("reseller reactivated",
			zap.Uint("reseller_id", r.ID),
			zap.Int("enabled", report.Enabled),
			zap.Int("failed", report.Failed),
		)
	default:
		if err := m.resellers.UpdateStatus(r.ID, next); err != nil {
			return r.Status, fmt.Errorf("update reseller %d status: %w", r.ID, err)
		}
	}
	return next, nil
}

// suspend flips the reseller into a suspended status and disables every
// active config, remote first, local always.
func (m *Machine) suspend(ctx context.Context, r *models.Reseller, status string) error {
	if err := m.resellers.UpdateStatus(r.ID, status); err != nil {
		return fmt.Errorf("suspend reseller %d: %w", r.ID, err)
	}

	reason := ReasonForStatus(status)
	configs, err := m.configs.FindActive(r.ID)
	if err != nil {
		return fmt.Errorf("list configs of reseller %d: %w", r.ID, err)
	}

	now := time.Now()
	remoteFailed := 0
	for i := range configs {
		cfg := &configs[i]

		res := m.remote.Disable(ctx, cfg)
		m.recordEvent(r.ID, cfg.ID, provision.ActionDisable, res)
		if !res.Success && res.LastError != provision.NoPanelMessage {
			remoteFailed++
		}

		if err := m.configs.MarkDisabled(cfg, reason, now); err != nil {
			m.logger.Error("local disable failed",
				zap.Uint("config_id", cfg.ID),
				zap.Error(err),
			)
		}
	}

	m.logger.Warn("reseller suspended",
		zap.Uint("reseller_id", r.ID),
		zap.String("status", status),
		zap.Int("configs", len(configs)),
		zap.Int("remote_failed", remoteFailed),
	)
	m.notify(fmt.Sprintf("⛔️ Reseller <b>%s</b> suspended (%s), %d configs disabled", r.Name, reason, len(configs)))
	return nil
}

// reactivate re-enables the configs this machine disabled for the given
// reason. Best effort: one failed config never blocks the rest. A config
// with a remote side only counts enabled once the panel accepted the
// enable, so a flaky panel leaves it disabled for the next pass.
func (m *Machine) reactivate(ctx context.Context, r *models.Reseller, reason string) ReactivationReport {
	var report ReactivationReport

	// An empty tag would match operator-disabled configs, which only an
	// explicit enable may touch.
	if reason == "" {
		return report
	}

	configs, err := m.configs.FindAutoDisabled(r.ID, reason)
	if err != nil {
		m.logger.Error("list auto-disabled configs failed",
			zap.Uint("reseller_id", r.ID),
			zap.Error(err),
		)
		return report
	}

	for i := range configs {
		cfg := &configs[i]

		res := m.remote.Enable(ctx, cfg)
		m.recordEvent(r.ID, cfg.ID, provision.ActionEnable, res)
		if !res.Success && res.LastError != provision.NoPanelMessage {
			report.Failed++
			continue
		}

		if err := m.configs.MarkEnabled(cfg); err != nil {
			m.logger.Error("local enable failed",
				zap.Uint("config_id", cfg.ID),
				zap.Error(err),
			)
			report.Failed++
			continue
		}
		report.Enabled++
	}

	if report.Failed > 0 {
		m.notify(fmt.Sprintf("⚠️ Reseller <b>%s</b> reactivated with %d configs still down", r.Name, report.Failed))
	}
	return report
}

func (m *Machine) recordEvent(resellerID, configID uint, action string, res provision.RemoteActionResult) {
	ev := &models.ProvisionEvent{
		ResellerID:    resellerID,
		ConfigID:      configID,
		Action:        action,
		RemoteSuccess: res.Success,
		Attempts:      res.Attempts,
		LastError:     res.LastError,
	}
	if err := m.events.Record(ev); err != nil {
		m.logger.Error("record provision event failed", zap.Error(err))
	}
}

func (m *Machine) notify(text string) {
	if err := m.notifier.Send(text); err != nil {
		m.logger.Warn("operator notification failed", zap.Error(err))
	}
}
