package provision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"resellerd/internal/models"
	"resellerd/internal/repository"
)

// Remote mutation retry policy.
const (
	maxAttempts  = 3
	retryBackoff = time.Second
)

// NoPanelMessage is the result error for configs with no remote side.
const NoPanelMessage = "No panel configured"

// Actions recorded in provision_events rows.
const (
	ActionEnable       = "enable"
	ActionDisable      = "disable"
	ActionDelete       = "delete"
	ActionResetTraffic = "reset_traffic"
	ActionUpdateLimits = "update_limits"
)

// Adapter is the single entry point for remote panel mutations. It owns
// the retry policy and the per-panel client cache; callers get back a
// RemoteActionResult and decide for themselves what to do with a remote
// failure. Adapter methods never return an error: remote state is
// best-effort by contract.
type Adapter struct {
	panels *repository.PanelRepository
	logger *zap.Logger

	mu      sync.Mutex
	clients map[uint]Client
}

func NewAdapter(panels *repository.PanelRepository, logger *zap.Logger) *Adapter {
	return &Adapter{
		panels:  panels,
		logger:  logger,
		clients: make(map[uint]Client),
	}
}

func (a *Adapter) Enable(ctx context.Context, cfg *models.ResellerConfig) RemoteActionResult {
	return a.run(ctx, cfg, ActionEnable, func(c Client) error {
		return c.EnableUser(ctx, cfg.PanelUserID)
	})
}

func (a *Adapter) Disable(ctx context.Context, cfg *models.ResellerConfig) RemoteActionResult {
	return a.run(ctx, cfg, ActionDisable, func(c Client) error {
		return c.DisableUser(ctx, cfg.PanelUserID)
	})
}

func (a *Adapter) Delete(ctx context.Context, cfg *models.ResellerConfig) RemoteActionResult {
	return a.run(ctx, cfg, ActionDelete, func(c Client) error {
		return c.DeleteUser(ctx, cfg.PanelUserID)
	})
}

func (a *Adapter) ResetTraffic(ctx context.Context, cfg *models.ResellerConfig) RemoteActionResult {
	return a.run(ctx, cfg, ActionResetTraffic, func(c Client) error {
		return c.ResetTraffic(ctx, cfg.PanelUserID)
	})
}

func (a *Adapter) UpdateLimits(ctx context.Context, cfg *models.ResellerConfig, req UpdateLimitsRequest) RemoteActionResult {
	return a.run(ctx, cfg, ActionUpdateLimits, func(c Client) error {
		return c.UpdateLimits(ctx, cfg.PanelUserID, req)
	})
}

func (a *Adapter) run(ctx context.Context, cfg *models.ResellerConfig, action string, fn func(Client) error) RemoteActionResult {
	if cfg.PanelID == nil || cfg.PanelUserID == "" {
		return RemoteActionResult{Success: false, Attempts: 0, LastError: NoPanelMessage}
	}

	client, err := a.clientFor(*cfg.PanelID)
	if err != nil {
		return RemoteActionResult{Success: false, Attempts: 0, LastError: err.Error()}
	}

	result := retry(ctx, func() error { return fn(client) })
	if !result.Success {
		a.logger.Warn("remote panel action failed",
			zap.String("action", action),
			zap.Uint("config_id", cfg.ID),
			zap.Int("attempts", result.Attempts),
			zap.String("error", result.LastError),
		)
	}
	return result
}

// retry runs fn up to maxAttempts times with linear backoff, stopping
// early when the context is done.
func retry(ctx context.Context, fn func() error) RemoteActionResult {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return RemoteActionResult{Success: true, Attempts: attempt}
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return RemoteActionResult{Success: false, Attempts: attempt, LastError: ctx.Err().Error()}
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return RemoteActionResult{Success: false, Attempts: maxAttempts, LastError: lastErr.Error()}
}

func (a *Adapter) clientFor(panelID uint) (Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[panelID]; ok {
		return c, nil
	}

	panel, err := a.panels.FindByID(panelID)
	if err != nil {
		return nil, fmt.Errorf("load panel %d: %w", panelID, err)
	}
	client, err := NewClient(panel)
	if err != nil {
		return nil, err
	}
	a.clients[panelID] = client
	return client, nil
}

// Invalidate drops a cached client so the next call rebuilds it from the
// panels table. Called after panel credentials change.
func (a *Adapter) Invalidate(panelID uint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.clients, panelID)
}
