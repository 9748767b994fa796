package suspension

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"resellerd/internal/billing"
	"resellerd/internal/models"
	"resellerd/internal/provision"
)

type fakeResellers struct {
	reseller *models.Reseller
	updates  []string
}

func (f *fakeResellers) FindByID(id uint) (*models.Reseller, error) {
	return f.reseller, nil
}

func (f *fakeResellers) UpdateStatus(id uint, status string) error {
	f.updates = append(f.updates, status)
	f.reseller.Status = status
	return nil
}

type fakeConfigs struct {
	active       []models.ResellerConfig
	autoDisabled []models.ResellerConfig
	disabledIDs  []uint
	enabledIDs   []uint
}

func (f *fakeConfigs) FindActive(resellerID uint) ([]models.ResellerConfig, error) {
	return f.active, nil
}

func (f *fakeConfigs) FindAutoDisabled(resellerID uint, reason string) ([]models.ResellerConfig, error) {
	return f.autoDisabled, nil
}

func (f *fakeConfigs) MarkDisabled(cfg *models.ResellerConfig, reason string, at time.Time) error {
	f.disabledIDs = append(f.disabledIDs, cfg.ID)
	return nil
}

func (f *fakeConfigs) MarkEnabled(cfg *models.ResellerConfig) error {
	f.enabledIDs = append(f.enabledIDs, cfg.ID)
	return nil
}

type fakeRemote struct {
	results map[uint]provision.RemoteActionResult
}

func (f *fakeRemote) result(cfg *models.ResellerConfig) provision.RemoteActionResult {
	if res, ok := f.results[cfg.ID]; ok {
		return res
	}
	return provision.RemoteActionResult{Success: true, Attempts: 1}
}

func (f *fakeRemote) Enable(ctx context.Context, cfg *models.ResellerConfig) provision.RemoteActionResult {
	return f.result(cfg)
}

func (f *fakeRemote) Disable(ctx context.Context, cfg *models.ResellerConfig) provision.RemoteActionResult {
	return f.result(cfg)
}

type fakeEvents struct {
	events []models.ProvisionEvent
}

func (f *fakeEvents) Record(ev *models.ProvisionEvent) error {
	f.events = append(f.events, *ev)
	return nil
}

func testSettings() billing.Settings {
	return billing.Settings{
		SuspensionThreshold: -1000,
		WalletPricePerGB:    780,
		TrafficPricePerGB:   750,
	}
}

func TestNextStatusWalletThreshold(t *testing.T) {
	t.Parallel()

	st := testSettings()
	now := time.Now()

	tests := []struct {
		name    string
		balance int64
		want    string
	}{
		{name: "above threshold", balance: -999, want: models.ResellerActive},
		{name: "exactly on threshold stays active", balance: -1000, want: models.ResellerActive},
		{name: "below threshold suspends", balance: -1001, want: models.ResellerSuspendedWallet},
		{name: "positive balance", balance: 5000, want: models.ResellerActive},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &models.Reseller{
				BillingMode:   models.BillingModeWallet,
				Status:        models.ResellerActive,
				WalletBalance: tt.balance,
			}
			if got := NextStatus(r, st, now); got != tt.want {
				t.Fatalf("NextStatus(balance=%d) = %q, want %q", tt.balance, got, tt.want)
			}
		})
	}
}

func TestNextStatusTraffic(t *testing.T) {
	t.Parallel()

	st := testSettings()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	today := now

	tests := []struct {
		name     string
		reseller models.Reseller
		want     string
	}{
		{
			name: "under quota stays active",
			reseller: models.Reseller{
				TrafficTotalBytes: 100, TrafficUsedBytes: 50,
			},
			want: models.ResellerActive,
		},
		{
			name: "quota exhausted suspends",
			reseller: models.Reseller{
				TrafficTotalBytes: 100, TrafficUsedBytes: 100,
			},
			want: models.ResellerSuspendedTraffic,
		},
		{
			name: "forgiven bytes keep it active",
			reseller: models.Reseller{
				TrafficTotalBytes: 100, TrafficUsedBytes: 120, AdminForgivenBytes: 30,
			},
			want: models.ResellerActive,
		},
		{
			name: "window ended yesterday suspends",
			reseller: models.Reseller{
				TrafficTotalBytes: 100, TrafficUsedBytes: 10, WindowEndsAt: &yesterday,
			},
			want: models.ResellerSuspendedTraffic,
		},
		{
			name: "window ending today still active",
			reseller: models.Reseller{
				TrafficTotalBytes: 100, TrafficUsedBytes: 10, WindowEndsAt: &today,
			},
			want: models.ResellerActive,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := tt.reseller
			r.BillingMode = models.BillingModeTraffic
			r.Status = models.ResellerActive
			if got := NextStatus(&r, st, now); got != tt.want {
				t.Fatalf("NextStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextStatusOperatorStatusesAreSticky(t *testing.T) {
	t.Parallel()

	// A healthy balance must not lift any operator-applied status.
	for _, status := range []string{
		models.ResellerDisabled,
		models.ResellerSuspendedOther,
		models.ResellerSuspended,
	} {
		r := &models.Reseller{
			BillingMode:   models.BillingModeWallet,
			Status:        status,
			WalletBalance: 100000,
		}
		if got := NextStatus(r, testSettings(), time.Now()); got != status {
			t.Fatalf("NextStatus(%q) = %q, want it to stick", status, got)
		}
	}
}

func TestEvaluateLeavesOperatorSuspensionAlone(t *testing.T) {
	t.Parallel()

	resellers := &fakeResellers{reseller: &models.Reseller{
		ID:            9,
		Name:          "acme",
		BillingMode:   models.BillingModeWallet,
		Status:        models.ResellerSuspendedOther,
		WalletBalance: 50000,
	}}
	// Operator-disabled config: no auto-disable tag on it.
	configs := &fakeConfigs{autoDisabled: []models.ResellerConfig{
		{ID: 41, ResellerID: 9, Status: models.ConfigDisabled},
	}}
	events := &fakeEvents{}

	m := NewMachine(resellers, configs, &fakeRemote{}, events, nil, zap.NewNop())

	status, err := m.Evaluate(context.Background(), 9, testSettings())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if status != models.ResellerSuspendedOther {
		t.Fatalf("status = %q, want suspended_other to stick", status)
	}
	if len(configs.enabledIDs) != 0 {
		t.Fatalf("enabled %v, want operator-disabled configs untouched", configs.enabledIDs)
	}
	if len(resellers.updates) != 0 {
		t.Fatalf("status updates = %v, want none", resellers.updates)
	}
}

func TestReactivateRefusesEmptyReason(t *testing.T) {
	t.Parallel()

	r := &models.Reseller{ID: 9, Status: models.ResellerSuspendedOther}
	configs := &fakeConfigs{autoDisabled: []models.ResellerConfig{
		{ID: 41, ResellerID: 9, Status: models.ConfigDisabled},
	}}

	m := NewMachine(&fakeResellers{reseller: r}, configs, &fakeRemote{}, &fakeEvents{}, nil, zap.NewNop())
	report := m.reactivate(context.Background(), r, "")

	if report.Enabled != 0 || report.Failed != 0 {
		t.Fatalf("report = %+v, want nothing touched", report)
	}
	if len(configs.enabledIDs) != 0 {
		t.Fatalf("enabled %v, want none", configs.enabledIDs)
	}
}

func TestEvaluateSuspendsAndCascades(t *testing.T) {
	t.Parallel()

	panelID := uint(1)
	resellers := &fakeResellers{reseller: &models.Reseller{
		ID:            9,
		Name:          "acme",
		BillingMode:   models.BillingModeWallet,
		Status:        models.ResellerActive,
		WalletBalance: -5000,
	}}
	configs := &fakeConfigs{active: []models.ResellerConfig{
		{ID: 11, ResellerID: 9, PanelID: &panelID, PanelUserID: "acme_01"},
		{ID: 12, ResellerID: 9, PanelID: &panelID, PanelUserID: "acme_02"},
	}}
	remote := &fakeRemote{results: map[uint]provision.RemoteActionResult{
		12: {Success: false, Attempts: 3, LastError: "panel down"},
	}}
	events := &fakeEvents{}

	m := NewMachine(resellers, configs, remote, events, nil, zap.NewNop())

	status, err := m.Evaluate(context.Background(), 9, testSettings())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if status != models.ResellerSuspendedWallet {
		t.Fatalf("status = %q, want suspended_wallet", status)
	}

	// Local disable lands on every config even when the panel call failed.
	if len(configs.disabledIDs) != 2 {
		t.Fatalf("disabled %v, want both configs", configs.disabledIDs)
	}
	if len(events.events) != 2 {
		t.Fatalf("recorded %d events, want 2", len(events.events))
	}
	for _, ev := range events.events {
		if ev.ConfigID == 12 {
			if ev.RemoteSuccess || ev.Attempts != 3 || ev.LastError != "panel down" {
				t.Fatalf("failed config event = %+v", ev)
			}
		} else if !ev.RemoteSuccess {
			t.Fatalf("healthy config event = %+v", ev)
		}
	}
}

func TestReactivateIsBestEffort(t *testing.T) {
	t.Parallel()

	panelID := uint(1)
	resellers := &fakeResellers{reseller: &models.Reseller{
		ID:            9,
		Name:          "acme",
		BillingMode:   models.BillingModeWallet,
		Status:        models.ResellerSuspendedWallet,
		WalletBalance: 2000,
	}}
	meta := models.ConfigMeta{AutoDisabledReason: models.DisableReasonWallet}
	configs := &fakeConfigs{autoDisabled: []models.ResellerConfig{
		{ID: 21, ResellerID: 9, PanelID: &panelID, PanelUserID: "acme_01", Meta: meta},
		{ID: 22, ResellerID: 9, PanelID: &panelID, PanelUserID: "acme_02", Meta: meta},
		{ID: 23, ResellerID: 9, PanelID: &panelID, PanelUserID: "acme_03", Meta: meta},
	}}
	remote := &fakeRemote{results: map[uint]provision.RemoteActionResult{
		22: {Success: false, Attempts: 3, LastError: "panel down"},
	}}
	events := &fakeEvents{}

	m := NewMachine(resellers, configs, remote, events, nil, zap.NewNop())

	status, err := m.Evaluate(context.Background(), 9, testSettings())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if status != models.ResellerActive {
		t.Fatalf("status = %q, want active", status)
	}

	// One panel failure must not block the other configs, and the failed
	// config stays disabled for the next pass.
	if len(configs.enabledIDs) != 2 {
		t.Fatalf("enabled %v, want two configs", configs.enabledIDs)
	}
	for _, id := range configs.enabledIDs {
		if id == 22 {
			t.Fatalf("config 22 enabled locally despite remote failure")
		}
	}
	if len(events.events) != 3 {
		t.Fatalf("recorded %d events, want 3", len(events.events))
	}
}

func TestReactivateWithoutPanelEnablesLocally(t *testing.T) {
	t.Parallel()

	r := &models.Reseller{ID: 9, Status: models.ResellerSuspendedWallet}
	configs := &fakeConfigs{autoDisabled: []models.ResellerConfig{
		{ID: 31, ResellerID: 9},
	}}
	remote := &fakeRemote{results: map[uint]provision.RemoteActionResult{
		31: {Success: false, Attempts: 0, LastError: provision.NoPanelMessage},
	}}
	events := &fakeEvents{}

	m := NewMachine(&fakeResellers{reseller: r}, configs, remote, events, nil, zap.NewNop())
	report := m.reactivate(context.Background(), r, models.DisableReasonWallet)

	if report.Enabled != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, want local-only config enabled", report)
	}
}

func TestEvaluateWithoutTransitionTouchesNothing(t *testing.T) {
	t.Parallel()

	resellers := &fakeResellers{reseller: &models.Reseller{
		ID:            9,
		BillingMode:   models.BillingModeWallet,
		Status:        models.ResellerActive,
		WalletBalance: 100,
	}}
	configs := &fakeConfigs{}
	events := &fakeEvents{}

	m := NewMachine(resellers, configs, &fakeRemote{}, events, nil, zap.NewNop())

	status, err := m.Evaluate(context.Background(), 9, testSettings())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if status != models.ResellerActive {
		t.Fatalf("status = %q", status)
	}
	if len(resellers.updates) != 0 || len(events.events) != 0 {
		t.Fatalf("no-op evaluate wrote state: updates=%v events=%d", resellers.updates, len(events.events))
	}
}
