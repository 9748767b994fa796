package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"resellerd/internal/models"
	"resellerd/internal/payment"
	"resellerd/internal/pkg/utils"
)

// PaymentHandler handles deposit order creation and lookup.
type PaymentHandler struct {
	repos       *Repos
	gateways    map[string]payment.Gateway
	callbackURL string
	logger      *zap.Logger
}

func NewPaymentHandler(repos *Repos, gateways map[string]payment.Gateway, callbackURL string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		repos:       repos,
		gateways:    gateways,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// Handle routes payment API requests based on the "actions" field.
// POST /api/payments
func (h *PaymentHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "deposit_create":
		return h.createDeposit(c, body)
	case "deposit_status":
		return h.depositStatus(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

// createDeposit - action: "deposit_create"
// Records a pending transaction and initiates the gateway payment. The
// transaction stays pending until a verified callback or poll settles it.
func (h *PaymentHandler) createDeposit(c echo.Context, body map[string]interface{}) error {
	resellerID := getUintField(body, "reseller_id")
	amount := getInt64Field(body, "amount", 0)
	gatewayName := getStringField(body, "gateway")
	if resellerID == 0 || amount <= 0 || gatewayName == "" {
		return errorResponse(c, "reseller_id, amount and gateway are required")
	}

	reseller, err := h.repos.Reseller.FindByID(resellerID)
	if err != nil {
		return errorResponse(c, "Reseller not found")
	}

	mode := getStringField(body, "deposit_mode")
	switch mode {
	case models.DepositModeWallet, models.DepositModeTraffic:
	case "":
		mode = models.DepositModeWallet
	default:
		return errorResponse(c, "Unknown deposit mode: "+mode)
	}

	txn := &models.Transaction{
		OrderID:    utils.GenerateOrderID(),
		ResellerID: reseller.ID,
		Type:       models.TxDeposit,
		Gateway:    gatewayName,
		Amount:     amount,
		Status:     models.TxPending,
		Meta: models.TransactionMeta{
			DepositMode: mode,
			TrafficGB:   getInt64Field(body, "traffic_gb", 0),
		},
	}

	// Card-to-card has no online leg; the order waits for manual approval.
	if gatewayName == "card" {
		if err := h.repos.Transaction.Create(txn); err != nil {
			h.logger.Error("Failed to create transaction", zap.Error(err))
			return errorResponse(c, "Failed to create deposit")
		}
		return successResponse(c, "Deposit created", map[string]interface{}{
			"order_id": txn.OrderID,
		})
	}

	gw, ok := h.gateways[gatewayName]
	if !ok {
		return errorResponse(c, "Unknown gateway: "+gatewayName)
	}

	result, err := gw.CreatePayment(c.Request().Context(), amount, txn.OrderID,
		"Deposit for "+reseller.Name, h.callbackURL+"/payment/"+gw.Name()+"/callback")
	if err != nil {
		h.logger.Error("Gateway create payment failed",
			zap.String("gateway", gatewayName), zap.Error(err))
		return errorResponse(c, "Gateway rejected the payment")
	}

	txn.Meta.OrderID = result.OrderID
	txn.Meta.HashID = result.HashID
	txn.Meta.Authority = result.Authority
	if err := h.repos.Transaction.Create(txn); err != nil {
		h.logger.Error("Failed to create transaction", zap.Error(err))
		return errorResponse(c, "Failed to create deposit")
	}

	return successResponse(c, "Deposit created", map[string]interface{}{
		"order_id":    txn.OrderID,
		"payment_url": result.PaymentURL,
	})
}

// depositStatus - action: "deposit_status"
func (h *PaymentHandler) depositStatus(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "order_id")
	if orderID == "" {
		return errorResponse(c, "order_id is required")
	}

	txn, err := h.repos.Transaction.FindByOrderID(orderID)
	if err != nil {
		return errorResponse(c, "Transaction not found")
	}
	return successResponse(c, "Successful", txn)
}
