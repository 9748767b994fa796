package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"resellerd/internal/billing"
	"resellerd/internal/models"
	"resellerd/internal/suspension"
)

// ResellerHandler handles all reseller API actions.
type ResellerHandler struct {
	repos   *Repos
	machine *suspension.Machine
	logger  *zap.Logger
}

func NewResellerHandler(repos *Repos, machine *suspension.Machine, logger *zap.Logger) *ResellerHandler {
	return &ResellerHandler{repos: repos, machine: machine, logger: logger}
}

// Handle routes reseller API requests based on the "actions" field.
// POST /api/resellers
func (h *ResellerHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "resellers":
		return h.listResellers(c, body)
	case "reseller":
		return h.getReseller(c, body)
	case "reseller_add":
		return h.addReseller(c, body)
	case "reseller_update":
		return h.updateReseller(c, body)
	case "forgive_traffic":
		return h.forgiveTraffic(c, body)
	case "evaluate":
		return h.evaluate(c, body)
	case "ledger":
		return h.ledger(c, body)
	case "transactions":
		return h.transactions(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

// listResellers - action: "resellers"
func (h *ResellerHandler) listResellers(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)
	q := getStringField(body, "q")

	resellers, total, err := h.repos.Reseller.FindAll(limit, page, q)
	if err != nil {
		h.logger.Error("Failed to list resellers", zap.Error(err))
		return errorResponse(c, "Failed to retrieve resellers")
	}

	return successResponse(c, "Successful", paginatedResponse(resellers, total, page, limit))
}

// getReseller - action: "reseller"
func (h *ResellerHandler) getReseller(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "reseller_id")
	if id == 0 {
		return errorResponse(c, "reseller_id is required")
	}

	reseller, err := h.repos.Reseller.FindByID(id)
	if err != nil {
		return errorResponse(c, "Reseller not found")
	}

	configs, err := h.repos.Config.FindByResellerID(id)
	if err != nil {
		h.logger.Error("Failed to load reseller configs", zap.Error(err))
		return errorResponse(c, "Failed to retrieve configs")
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"reseller": reseller,
		"configs":  configs,
	})
}

// addReseller - action: "reseller_add"
func (h *ResellerHandler) addReseller(c echo.Context, body map[string]interface{}) error {
	name := getStringField(body, "name")
	if name == "" {
		return errorResponse(c, "name is required")
	}

	mode := getStringField(body, "billing_mode")
	switch mode {
	case models.BillingModeWallet, models.BillingModeTraffic, models.BillingModePlan:
	case "":
		mode = models.BillingModeWallet
	default:
		return errorResponse(c, "Unknown billing mode: "+mode)
	}

	reseller := &models.Reseller{
		Name:              name,
		BillingMode:       mode,
		Status:            models.ResellerActive,
		WalletBalance:     getInt64Field(body, "wallet_balance", 0),
		WalletPricePerGB:  getInt64Field(body, "wallet_price_per_gb", 0),
		TrafficTotalBytes: getInt64Field(body, "traffic_total_bytes", 0),
	}
	if err := h.repos.Reseller.Create(reseller); err != nil {
		h.logger.Error("Failed to create reseller", zap.Error(err))
		return errorResponse(c, "Failed to create reseller")
	}

	return successResponse(c, "Reseller created", reseller)
}

// updateReseller - action: "reseller_update"
func (h *ResellerHandler) updateReseller(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "reseller_id")
	if id == 0 {
		return errorResponse(c, "reseller_id is required")
	}
	if _, err := h.repos.Reseller.FindByID(id); err != nil {
		return errorResponse(c, "Reseller not found")
	}

	updates := map[string]interface{}{}
	if v := getStringField(body, "name"); v != "" {
		updates["name"] = v
	}
	if _, ok := body["wallet_price_per_gb"]; ok {
		updates["wallet_price_per_gb"] = getInt64Field(body, "wallet_price_per_gb", 0)
	}
	if _, ok := body["traffic_total_bytes"]; ok {
		updates["traffic_total_bytes"] = getInt64Field(body, "traffic_total_bytes", 0)
	}
	if len(updates) == 0 {
		return errorResponse(c, "Nothing to update")
	}

	if err := h.repos.Reseller.Update(id, updates); err != nil {
		h.logger.Error("Failed to update reseller", zap.Error(err))
		return errorResponse(c, "Failed to update reseller")
	}

	// Limit changes can cross a threshold in either direction.
	st := billing.LoadSettings(h.repos.Setting)
	status, err := h.machine.Evaluate(c.Request().Context(), id, st)
	if err != nil {
		h.logger.Error("Post-update evaluation failed", zap.Uint("reseller_id", id), zap.Error(err))
	}

	return successResponse(c, "Reseller updated", map[string]interface{}{
		"reseller_id": id,
		"status":      status,
	})
}

// forgiveTraffic - action: "forgive_traffic"
// Adds admin-forgiven bytes so an over-quota traffic reseller comes back
// without buying more volume.
func (h *ResellerHandler) forgiveTraffic(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "reseller_id")
	bytes := getInt64Field(body, "bytes", 0)
	if id == 0 || bytes <= 0 {
		return errorResponse(c, "reseller_id and positive bytes are required")
	}

	reseller, err := h.repos.Reseller.FindByID(id)
	if err != nil {
		return errorResponse(c, "Reseller not found")
	}

	if err := h.repos.Reseller.Update(id, map[string]interface{}{
		"admin_forgiven_bytes": reseller.AdminForgivenBytes + bytes,
	}); err != nil {
		h.logger.Error("Failed to forgive traffic", zap.Error(err))
		return errorResponse(c, "Failed to forgive traffic")
	}

	st := billing.LoadSettings(h.repos.Setting)
	status, err := h.machine.Evaluate(c.Request().Context(), id, st)
	if err != nil {
		h.logger.Error("Post-forgive evaluation failed", zap.Uint("reseller_id", id), zap.Error(err))
	}

	return successResponse(c, "Traffic forgiven", map[string]interface{}{
		"reseller_id": id,
		"status":      status,
	})
}

// evaluate - action: "evaluate"
func (h *ResellerHandler) evaluate(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "reseller_id")
	if id == 0 {
		return errorResponse(c, "reseller_id is required")
	}

	st := billing.LoadSettings(h.repos.Setting)
	status, err := h.machine.Evaluate(c.Request().Context(), id, st)
	if err != nil {
		h.logger.Error("Evaluation failed", zap.Uint("reseller_id", id), zap.Error(err))
		return errorResponse(c, "Evaluation failed")
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"reseller_id": id,
		"status":      status,
	})
}

// ledger - action: "ledger"
func (h *ResellerHandler) ledger(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "reseller_id")
	if id == 0 {
		return errorResponse(c, "reseller_id is required")
	}
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)

	entries, total, err := h.repos.Ledger.FindByResellerID(id, limit, page)
	if err != nil {
		h.logger.Error("Failed to list ledger entries", zap.Error(err))
		return errorResponse(c, "Failed to retrieve ledger")
	}

	return successResponse(c, "Successful", paginatedResponse(entries, total, page, limit))
}

// transactions - action: "transactions"
func (h *ResellerHandler) transactions(c echo.Context, body map[string]interface{}) error {
	id := getUintField(body, "reseller_id")
	if id == 0 {
		return errorResponse(c, "reseller_id is required")
	}
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)

	txns, total, err := h.repos.Transaction.FindByResellerID(id, limit, page)
	if err != nil {
		h.logger.Error("Failed to list transactions", zap.Error(err))
		return errorResponse(c, "Failed to retrieve transactions")
	}

	return successResponse(c, "Successful", paginatedResponse(txns, total, page, limit))
}
