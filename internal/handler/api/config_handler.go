package api

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"resellerd/internal/billing"
	"resellerd/internal/models"
	"resellerd/internal/pkg/utils"
	"resellerd/internal/provision"
	"resellerd/internal/suspension"
)

// ConfigHandler handles all config API actions. Every mutating action
// follows the same shape: attempt the remote panel call, record its
// outcome, commit the local state regardless, then re-evaluate the
// reseller's suspension thresholds.
type ConfigHandler struct {
	repos   *Repos
	engine  *billing.Engine
	adapter *provision.Adapter
	machine *suspension.Machine
	logger  *zap.Logger
}

func NewConfigHandler(repos *Repos, engine *billing.Engine, adapter *provision.Adapter, machine *suspension.Machine, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		repos:   repos,
		engine:  engine,
		adapter: adapter,
		machine: machine,
		logger:  logger,
	}
}

// Handle routes config API requests based on the "actions" field.
// POST /api/configs
func (h *ConfigHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "config":
		return h.getConfig(c, body)
	case "config_add":
		return h.addConfig(c, body)
	case "reset_traffic":
		return h.resetTraffic(c, body)
	case "delete_config":
		return h.deleteConfig(c, body)
	case "disable_config":
		return h.disableConfig(c, body)
	case "enable_config":
		return h.enableConfig(c, body)
	case "update_limits":
		return h.updateLimits(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

// getConfig - action: "config"
func (h *ConfigHandler) getConfig(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "config_id")
	if id == 0 {
		return errorResponse(c, "config_id is required")
	}

	cfg, err := h.repos.Config.FindByID(id)
	if err != nil {
		return errorResponse(c, "Config not found")
	}

	events, err := h.repos.Event.FindByConfigID(id, getIntField(body, "limit", 50))
	if err != nil {
		h.logger.Error("Failed to load provision events", zap.Error(err))
		return errorResponse(c, "Failed to retrieve events")
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"config": cfg,
		"events": events,
	})
}

// addConfig - action: "config_add"
func (h *ConfigHandler) addConfig(c echo.Context, body map[string]interface{}) error {
	resellerID := getUintField(body, "reseller_id")
	panelUserID := getStringField(body, "panel_user_id")
	if resellerID == 0 || panelUserID == "" {
		return errorResponse(c, "reseller_id and panel_user_id are required")
	}
	if _, err := h.repos.Reseller.FindByID(resellerID); err != nil {
		return errorResponse(c, "Reseller not found")
	}

	cfg := &models.ResellerConfig{
		ResellerID:        resellerID,
		PanelUserID:       panelUserID,
		TrafficLimitBytes: getInt64Field(body, "traffic_limit_bytes", 0),
		Status:            models.ConfigActive,
	}
	if panelID := getUintField(body, "panel_id"); panelID != 0 {
		if _, err := h.repos.Panel.FindByID(panelID); err != nil {
			return errorResponse(c, "Panel not found")
		}
		cfg.PanelID = &panelID
	}

	if err := h.repos.Config.Create(cfg); err != nil {
		h.logger.Error("Failed to create config", zap.Error(err))
		return errorResponse(c, "Failed to create config")
	}
	return successResponse(c, "Config created", cfg)
}

// resetTraffic - action: "reset_traffic"
// Settles the config's accumulated usage against the wallet, then resets
// the counter on the remote panel.
func (h *ConfigHandler) resetTraffic(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "config_id")
	if id == 0 {
		return errorResponse(c, "config_id is required")
	}
	cfg, err := h.repos.Config.FindByID(id)
	if err != nil {
		return errorResponse(c, "Config not found")
	}

	ctx := c.Request().Context()
	remote := h.adapter.ResetTraffic(ctx, cfg)
	h.recordEvent(cfg, provision.ActionResetTraffic, remote)

	st := billing.LoadSettings(h.repos.Setting)
	settlement, err := h.engine.Settle(ctx, id, models.ActionResetTraffic, st)
	if err != nil {
		h.logger.Error("Reset settlement failed", zap.Uint("config_id", id), zap.Error(err))
		return errorResponse(c, "Settlement failed")
	}

	status, err := h.machine.Evaluate(ctx, cfg.ResellerID, st)
	if err != nil {
		h.logger.Error("Post-reset evaluation failed", zap.Uint("reseller_id", cfg.ResellerID), zap.Error(err))
	}

	return successResponse(c, remoteMsg("Traffic reset", remote), map[string]interface{}{
		"settlement":      settlement,
		"remote":          remote,
		"reseller_status": status,
	})
}

// deleteConfig - action: "delete_config"
// Final settlement: any unbilled usage is charged before the config is
// removed, so deleting a config never discards billable bytes.
func (h *ConfigHandler) deleteConfig(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "config_id")
	if id == 0 {
		return errorResponse(c, "config_id is required")
	}
	cfg, err := h.repos.Config.FindByID(id)
	if err != nil {
		return errorResponse(c, "Config not found")
	}
	if cfg.Status == models.ConfigDeleted {
		return errorResponse(c, "Config already deleted")
	}

	ctx := c.Request().Context()
	remote := h.adapter.Delete(ctx, cfg)
	h.recordEvent(cfg, provision.ActionDelete, remote)

	st := billing.LoadSettings(h.repos.Setting)
	settlement, err := h.engine.Settle(ctx, id, models.ActionDeleteConfig, st)
	if err != nil {
		h.logger.Error("Final settlement failed", zap.Uint("config_id", id), zap.Error(err))
		return errorResponse(c, "Settlement failed")
	}

	if err := h.repos.Config.Update(id, map[string]interface{}{
		"status": models.ConfigDeleted,
	}); err != nil {
		h.logger.Error("Failed to mark config deleted", zap.Error(err))
		return errorResponse(c, "Failed to delete config")
	}

	status, err := h.machine.Evaluate(ctx, cfg.ResellerID, st)
	if err != nil {
		h.logger.Error("Post-delete evaluation failed", zap.Uint("reseller_id", cfg.ResellerID), zap.Error(err))
	}

	return successResponse(c, remoteMsg("Config deleted", remote), map[string]interface{}{
		"settlement":      settlement,
		"remote":          remote,
		"reseller_status": status,
	})
}

// disableConfig - action: "disable_config"
// Operator-initiated disable. Deliberately does not tag an auto-disable
// reason, so suspension reactivation passes leave it alone.
func (h *ConfigHandler) disableConfig(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "config_id")
	if id == 0 {
		return errorResponse(c, "config_id is required")
	}
	cfg, err := h.repos.Config.FindByID(id)
	if err != nil {
		return errorResponse(c, "Config not found")
	}

	ctx := c.Request().Context()
	remote := h.adapter.Disable(ctx, cfg)
	h.recordEvent(cfg, provision.ActionDisable, remote)

	if err := h.repos.Config.Update(id, map[string]interface{}{
		"status":      models.ConfigDisabled,
		"disabled_at": time.Now(),
	}); err != nil {
		h.logger.Error("Failed to disable config", zap.Error(err))
		return errorResponse(c, "Failed to disable config")
	}

	return successResponse(c, remoteMsg("Config disabled", remote), map[string]interface{}{"remote": remote})
}

// enableConfig - action: "enable_config"
func (h *ConfigHandler) enableConfig(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "config_id")
	if id == 0 {
		return errorResponse(c, "config_id is required")
	}
	cfg, err := h.repos.Config.FindByID(id)
	if err != nil {
		return errorResponse(c, "Config not found")
	}

	reseller, err := h.repos.Reseller.FindByID(cfg.ResellerID)
	if err != nil {
		return errorResponse(c, "Reseller not found")
	}
	if reseller.Suspended() {
		return errorResponse(c, "Reseller is suspended")
	}

	ctx := c.Request().Context()
	remote := h.adapter.Enable(ctx, cfg)
	h.recordEvent(cfg, provision.ActionEnable, remote)

	if err := h.repos.Config.MarkEnabled(cfg); err != nil {
		h.logger.Error("Failed to enable config", zap.Error(err))
		return errorResponse(c, "Failed to enable config")
	}

	return successResponse(c, remoteMsg("Config enabled", remote), map[string]interface{}{"remote": remote})
}

// updateLimits - action: "update_limits"
func (h *ConfigHandler) updateLimits(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "config_id")
	if id == 0 {
		return errorResponse(c, "config_id is required")
	}
	cfg, err := h.repos.Config.FindByID(id)
	if err != nil {
		return errorResponse(c, "Config not found")
	}

	limitBytes := getInt64Field(body, "traffic_limit_bytes", 0)
	expiresAt := getInt64Field(body, "expires_at", 0)
	if limitBytes <= 0 && expiresAt <= 0 {
		return errorResponse(c, "Nothing to update")
	}
	if limitBytes > 0 {
		if err := validateTrafficLimit(cfg, limitBytes); err != nil {
			return errorResponse(c, err.Error())
		}
	}

	ctx := c.Request().Context()
	remote := h.adapter.UpdateLimits(ctx, cfg, provision.UpdateLimitsRequest{
		DataLimit:  limitBytes,
		ExpireTime: expiresAt,
	})
	h.recordEvent(cfg, provision.ActionUpdateLimits, remote)

	updates := map[string]interface{}{}
	if limitBytes > 0 {
		updates["traffic_limit_bytes"] = limitBytes
	}
	if expiresAt > 0 {
		updates["expires_at"] = time.Unix(expiresAt, 0)
	}
	if err := h.repos.Config.Update(id, updates); err != nil {
		h.logger.Error("Failed to update config limits", zap.Error(err))
		return errorResponse(c, "Failed to update limits")
	}

	return successResponse(c, remoteMsg("Limits updated", remote), map[string]interface{}{"remote": remote})
}

// validateTrafficLimit rejects a limit below the bytes already consumed
// since the last reset: the panel would lock the user the moment the
// limit applied. Checked before the remote call so a bad limit has no
// side effects.
func validateTrafficLimit(cfg *models.ResellerConfig, limit int64) error {
	if limit < cfg.UsageBytes {
		return fmt.Errorf("limit %s is below current usage %s",
			utils.FormatBytes(limit), utils.FormatBytes(cfg.UsageBytes))
	}
	return nil
}

// remoteMsg folds the remote outcome into the action message, so the
// operator sees a partial success without digging into the payload.
func remoteMsg(base string, res provision.RemoteActionResult) string {
	if res.Success || res.LastError == provision.NoPanelMessage {
		return base
	}
	return fmt.Sprintf("%s locally, panel sync failed after %d attempts: %s",
		base, res.Attempts, res.LastError)
}

func (h *ConfigHandler) recordEvent(cfg *models.ResellerConfig, action string, res provision.RemoteActionResult) {
	ev := &models.ProvisionEvent{
		ResellerID:    cfg.ResellerID,
		ConfigID:      cfg.ID,
		Action:        action,
		RemoteSuccess: res.Success,
		Attempts:      res.Attempts,
		LastError:     res.LastError,
	}
	if err := h.repos.Event.Record(ev); err != nil {
		h.logger.Error("Failed to record provision event", zap.Error(err))
	}
}
