package billing

import (
	"testing"
	"time"

	"resellerd/internal/models"
)

func TestFoldUsageConservesBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		settled int64
		usage   int64
	}{
		{name: "first settlement", settled: 0, usage: 5 * BytesPerGB},
		{name: "accumulates on top of prior resets", settled: 12 * BytesPerGB, usage: 3*BytesPerGB + 7},
		{name: "small remainder", settled: 1, usage: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			meta := models.ConfigMeta{SettledUsageBytes: tt.settled}
			totalBefore := tt.settled + tt.usage

			now := time.Now()
			folded := foldUsage(meta, tt.usage, now)

			// usage moves to settled; all-time total is unchanged.
			if folded.SettledUsageBytes != totalBefore {
				t.Fatalf("settled after fold = %d, want %d", folded.SettledUsageBytes, totalBefore)
			}
			if folded.SettledUsageBytes < meta.SettledUsageBytes {
				t.Fatalf("settled counter went backwards")
			}
			if folded.LastResetAt == nil || !folded.LastResetAt.Equal(now) {
				t.Fatalf("last reset timestamp not stamped")
			}
		})
	}
}

func TestResetScenarioFiveGiB(t *testing.T) {
	t.Parallel()

	// 5 GiB of usage at 780 per GB: wallet debited ceil(5*780)=3900 and
	// every byte moves into the settled counter.
	const usage = int64(5_368_709_120)

	cost := CostForBytes(usage, 780)
	if cost != 3900 {
		t.Fatalf("cost = %d, want 3900", cost)
	}

	meta := foldUsage(models.ConfigMeta{}, usage, time.Now())
	if meta.SettledUsageBytes != usage {
		t.Fatalf("settled = %d, want %d", meta.SettledUsageBytes, usage)
	}
}

func TestLedgerEntriesChain(t *testing.T) {
	t.Parallel()

	r := &models.Reseller{ID: 7, WalletBalance: 10_000}
	cfg := &models.ResellerConfig{ID: 3, ResellerID: 7, PanelUserID: "acme_01", UsageBytes: 2 * BytesPerGB}

	first := newLedgerEntry(r, cfg, models.ActionResetTraffic, 1560, 780, 10_000, 8_440)
	second := newLedgerEntry(r, cfg, models.ActionHourlyCharge, 780, 780, 8_440, 7_660)

	if first.WalletBalanceAfter != second.WalletBalanceBefore {
		t.Fatalf("entries do not chain: after=%d next before=%d",
			first.WalletBalanceAfter, second.WalletBalanceBefore)
	}
	if first.EntryID == second.EntryID {
		t.Fatalf("entry IDs must be unique")
	}
	if first.ActionType != models.ActionResetTraffic {
		t.Fatalf("action type = %q", first.ActionType)
	}
}
