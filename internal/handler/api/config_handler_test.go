package api

import (
	"strings"
	"testing"

	"resellerd/internal/models"
	"resellerd/internal/provision"
)

func TestValidateTrafficLimit(t *testing.T) {
	t.Parallel()

	cfg := &models.ResellerConfig{UsageBytes: 5_000_000_000}

	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{name: "above usage", limit: 10_000_000_000},
		{name: "exactly at usage", limit: 5_000_000_000},
		{name: "below usage rejected", limit: 4_999_999_999, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateTrafficLimit(cfg, tt.limit)
			if tt.wantErr && err == nil {
				t.Fatalf("limit %d accepted below usage", tt.limit)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("limit %d rejected: %v", tt.limit, err)
			}
		})
	}
}

func TestRemoteMsgVariesOnOutcome(t *testing.T) {
	t.Parallel()

	ok := provision.RemoteActionResult{Success: true, Attempts: 1}
	if got := remoteMsg("Traffic reset", ok); got != "Traffic reset" {
		t.Fatalf("success msg = %q", got)
	}

	noPanel := provision.RemoteActionResult{LastError: provision.NoPanelMessage}
	if got := remoteMsg("Config disabled", noPanel); got != "Config disabled" {
		t.Fatalf("no-panel msg = %q", got)
	}

	failed := provision.RemoteActionResult{Attempts: 3, LastError: "panel down"}
	got := remoteMsg("Config deleted", failed)
	if !strings.Contains(got, "panel sync failed after 3 attempts") || !strings.Contains(got, "panel down") {
		t.Fatalf("failure msg = %q, want attempts and cause surfaced", got)
	}
}
