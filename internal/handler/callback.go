package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"resellerd/internal/billing"
	"resellerd/internal/middleware"
	"resellerd/internal/models"
	"resellerd/internal/payment"
	"resellerd/internal/pkg/telegram"
	"resellerd/internal/pkg/utils"
	"resellerd/internal/repository"
)

// PaymentCallbackHandler handles gateway callbacks and manual payment
// approval. Gateway verification happens here; the reconciler only ever
// sees already-verified outcomes.
type PaymentCallbackHandler struct {
	txns       *repository.TransactionRepository
	settings   *repository.SettingRepository
	starsefar  *payment.StarsefarGateway
	tetra98    *payment.Tetra98Gateway
	reconciler *payment.Reconciler
	deduper    middleware.CallbackDeduper
	notifier   *telegram.Notifier
	logger     *zap.Logger
}

func NewPaymentCallbackHandler(
	txns *repository.TransactionRepository,
	settings *repository.SettingRepository,
	starsefar *payment.StarsefarGateway,
	tetra98 *payment.Tetra98Gateway,
	reconciler *payment.Reconciler,
	deduper middleware.CallbackDeduper,
	notifier *telegram.Notifier,
	logger *zap.Logger,
) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		txns:       txns,
		settings:   settings,
		starsefar:  starsefar,
		tetra98:    tetra98,
		reconciler: reconciler,
		deduper:    deduper,
		notifier:   notifier,
		logger:     logger,
	}
}

// ── Starsefar callback ───────────────────────────────────────────────

func (h *PaymentCallbackHandler) StarsefarCallback(c echo.Context) error {
	var data struct {
		OrderID   string `json:"order_id"`
		Authority string `json:"authority"`
		Status    int    `json:"status"`
	}
	if err := c.Bind(&data); err != nil || data.OrderID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if h.duplicate(c, "starsefar:"+data.OrderID) {
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	}

	txn, err := h.txns.FindByOrderID(data.OrderID)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "not_found"})
	}

	if data.Status != 100 {
		return c.JSON(http.StatusOK, map[string]string{"status": "not_paid"})
	}

	ctx := c.Request().Context()
	verify, err := h.starsefar.VerifyPayment(ctx, data.Authority, txn.Amount)
	if err != nil {
		h.logger.Error("Starsefar verify request failed", zap.Error(err))
		return c.JSON(http.StatusOK, map[string]string{"status": "verify_failed"})
	}
	if !verify.Verified {
		if _, err := h.reconciler.MarkFailed(ctx, data.OrderID, verify.Message); err != nil {
			h.logger.Error("Mark failed error", zap.String("order_id", data.OrderID), zap.Error(err))
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "not_verified"})
	}

	payload := map[string]interface{}{
		"order_id":  data.OrderID,
		"authority": data.Authority,
		"status":    data.Status,
	}
	result, err := h.reconciler.MarkPaid(ctx, data.OrderID, verify.RefID, payload, billing.LoadSettings(h.settings))
	if err != nil {
		h.logger.Error("Starsefar settlement failed", zap.String("order_id", data.OrderID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settlement failed"})
	}

	h.reportSettlement("Starsefar", txn, result)
	return c.JSON(http.StatusOK, result)
}

// ── Tetra98 callback ─────────────────────────────────────────────────

func (h *PaymentCallbackHandler) Tetra98Callback(c echo.Context) error {
	var data struct {
		HashID    string `json:"hashid"`
		Authority string `json:"authority"`
		Status    int    `json:"status"`
	}
	if err := c.Bind(&data); err != nil || data.HashID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if h.duplicate(c, "tetra98:"+data.HashID) {
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	}

	txn, err := h.txns.FindByOrderID(data.HashID)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "not_found"})
	}

	if data.Status != 100 {
		return c.JSON(http.StatusOK, map[string]string{"status": "not_paid"})
	}

	ctx := c.Request().Context()
	verify, err := h.tetra98.VerifyOrder(ctx, data.Authority, data.HashID)
	if err != nil {
		h.logger.Error("Tetra98 verify request failed", zap.Error(err))
		return c.JSON(http.StatusOK, map[string]string{"status": "verify_failed"})
	}
	if !verify.Verified {
		if _, err := h.reconciler.MarkFailed(ctx, data.HashID, verify.Message); err != nil {
			h.logger.Error("Mark failed error", zap.String("order_id", data.HashID), zap.Error(err))
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "not_verified"})
	}

	payload := map[string]interface{}{
		"hashid":    data.HashID,
		"authority": data.Authority,
		"status":    data.Status,
	}
	result, err := h.reconciler.MarkPaid(ctx, data.HashID, data.Authority, payload, billing.LoadSettings(h.settings))
	if err != nil {
		h.logger.Error("Tetra98 settlement failed", zap.String("order_id", data.HashID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settlement failed"})
	}

	h.reportSettlement("Tetra98", txn, result)
	return c.JSON(http.StatusOK, result)
}

// ── Manual card-to-card approval ─────────────────────────────────────

// CardApprove settles a card-to-card deposit after an operator checked
// the bank receipt by hand. Behind API auth.
func (h *PaymentCallbackHandler) CardApprove(c echo.Context) error {
	var data struct {
		OrderID string `json:"order_id"`
		Approve bool   `json:"approve"`
		Note    string `json:"note"`
	}
	if err := c.Bind(&data); err != nil || data.OrderID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	txn, err := h.txns.FindByOrderID(data.OrderID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "transaction not found"})
	}

	ctx := c.Request().Context()
	if !data.Approve {
		reason := data.Note
		if reason == "" {
			reason = "rejected by operator"
		}
		result, err := h.reconciler.MarkFailed(ctx, data.OrderID, reason)
		if err != nil {
			h.logger.Error("Card rejection failed", zap.String("order_id", data.OrderID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settlement failed"})
		}
		return c.JSON(http.StatusOK, result)
	}

	payload := map[string]interface{}{"approved_manually": true, "note": data.Note}
	result, err := h.reconciler.MarkPaid(ctx, data.OrderID, "manual", payload, billing.LoadSettings(h.settings))
	if err != nil {
		h.logger.Error("Card settlement failed", zap.String("order_id", data.OrderID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settlement failed"})
	}

	h.reportSettlement("card-to-card", txn, result)
	return c.JSON(http.StatusOK, result)
}

// ── Helpers ──────────────────────────────────────────────────────────

func (h *PaymentCallbackHandler) duplicate(c echo.Context, key string) bool {
	if h.deduper == nil {
		return false
	}
	seen, err := h.deduper.Seen(c.Request().Context(), key)
	if err != nil {
		// Dedup is an optimization; the reconciler's row lock still
		// guarantees exactly-once.
		return false
	}
	return seen
}

func (h *PaymentCallbackHandler) reportSettlement(gateway string, txn *models.Transaction, result *payment.ReconcileResult) {
	if result.AlreadyProcessed {
		return
	}
	text := fmt.Sprintf(
		"💵 Payment settled\n\nGateway: %s\nOrder: %s\nReseller: %d\nAmount: %s",
		gateway, txn.OrderID, txn.ResellerID, utils.FormatNumber(txn.Amount),
	)
	if result.TrafficBytes > 0 {
		text += fmt.Sprintf("\nTraffic: %s", utils.FormatBytes(result.TrafficBytes))
	}
	if err := h.notifier.Send(text); err != nil {
		h.logger.Warn("Payment report failed", zap.Error(err))
	}
}
