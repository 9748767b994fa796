package provision

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"resellerd/internal/models"
)

type fakeClient struct {
	disableCalls int
	disableErrs  []error
}

func (f *fakeClient) Authenticate(ctx context.Context) error { return nil }
func (f *fakeClient) GetUser(ctx context.Context, username string) (*RemoteUser, error) {
	return &RemoteUser{Username: username}, nil
}
func (f *fakeClient) EnableUser(ctx context.Context, username string) error { return nil }
func (f *fakeClient) DisableUser(ctx context.Context, username string) error {
	f.disableCalls++
	if f.disableCalls <= len(f.disableErrs) {
		return f.disableErrs[f.disableCalls-1]
	}
	return nil
}
func (f *fakeClient) DeleteUser(ctx context.Context, username string) error { return nil }
func (f *fakeClient) UpdateLimits(ctx context.Context, username string, req UpdateLimitsRequest) error {
	return nil
}
func (f *fakeClient) ResetTraffic(ctx context.Context, username string) error { return nil }
func (f *fakeClient) PanelType() string                                       { return "fake" }

func newTestAdapter(panelID uint, c Client) *Adapter {
	a := NewAdapter(nil, zap.NewNop())
	a.clients[panelID] = c
	return a
}

func TestRunWithoutPanelReportsNoPanel(t *testing.T) {
	t.Parallel()

	a := NewAdapter(nil, zap.NewNop())

	tests := []struct {
		name string
		cfg  models.ResellerConfig
	}{
		{name: "nil panel id", cfg: models.ResellerConfig{ID: 1, PanelUserID: "u1"}},
		{name: "empty panel user", cfg: models.ResellerConfig{ID: 2, PanelID: uintPtr(4)}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := a.Disable(context.Background(), &tt.cfg)
			if res.Success {
				t.Fatalf("expected failure")
			}
			if res.Attempts != 0 {
				t.Fatalf("attempts = %d, want 0", res.Attempts)
			}
			if res.LastError != NoPanelMessage {
				t.Fatalf("last error = %q, want %q", res.LastError, NoPanelMessage)
			}
		})
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{disableErrs: []error{errors.New("timeout"), errors.New("timeout")}}
	a := newTestAdapter(7, fake)
	cfg := models.ResellerConfig{ID: 3, PanelID: uintPtr(7), PanelUserID: "acme_01"}

	res := a.Disable(context.Background(), &cfg)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if fake.disableCalls != 3 {
		t.Fatalf("disable calls = %d, want 3", fake.disableCalls)
	}
}

func TestRetryExhaustsAndReportsLastError(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{disableErrs: []error{
		errors.New("first"), errors.New("second"), errors.New("third"),
	}}
	a := newTestAdapter(7, fake)
	cfg := models.ResellerConfig{ID: 3, PanelID: uintPtr(7), PanelUserID: "acme_01"}

	res := a.Disable(context.Background(), &cfg)
	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if res.LastError != "third" {
		t.Fatalf("last error = %q, want the final attempt's error", res.LastError)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := retry(ctx, func() error {
		calls++
		return errors.New("down")
	})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 before cancel wins", calls)
	}
}

func uintPtr(v uint) *uint { return &v }
