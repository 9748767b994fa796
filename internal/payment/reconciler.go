package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"resellerd/internal/billing"
	"resellerd/internal/models"
	"resellerd/internal/pkg/utils"
	"resellerd/internal/repository"
	"resellerd/internal/suspension"
)

// Store is the persistence the reconciler works through. The gorm
// implementation runs each unit of work inside one database transaction
// and scopes the other methods to it via the tx handle.
type Store interface {
	Transact(ctx context.Context, fn func(tx *gorm.DB) error) error
	LockTransaction(tx *gorm.DB, orderID string) (*models.Transaction, error)
	LockReseller(tx *gorm.DB, id uint) (*models.Reseller, error)
	UpdateReseller(tx *gorm.DB, r *models.Reseller, updates map[string]interface{}) error
	UpdateTransaction(tx *gorm.DB, txn *models.Transaction, updates map[string]interface{}) error
	CreateTransaction(tx *gorm.DB, txn *models.Transaction) error
}

// Evaluator re-checks a reseller's suspension thresholds after a credit.
type Evaluator interface {
	Evaluate(ctx context.Context, resellerID uint, st billing.Settings) (string, error)
}

var _ Evaluator = (*suspension.Machine)(nil)

// ReconcileResult reports one callback application.
type ReconcileResult struct {
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	AlreadyProcessed bool   `json:"already_processed"`
	WalletDelta      int64  `json:"wallet_delta,omitempty"`
	TrafficBytes     int64  `json:"traffic_bytes,omitempty"`
	ResellerStatus   string `json:"reseller_status,omitempty"`
}

// Reconciler applies verified gateway outcomes to pending transactions
// exactly once. The row lock on the transaction serializes duplicate
// deliveries; whichever wins sees pending and applies, the rest see a
// terminal status and no-op.
type Reconciler struct {
	store   Store
	machine Evaluator
	logger  *zap.Logger
}

func NewReconciler(store Store, machine Evaluator, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		machine: machine,
		logger:  logger,
	}
}

// MarkPaid credits a verified payment to its reseller. Re-delivery on a
// terminal transaction returns the stored outcome without touching state.
// The raw gateway payload is sanitized and kept on the transaction for
// audit.
func (r *Reconciler) MarkPaid(ctx context.Context, orderID, refID string, payload map[string]interface{}, st billing.Settings) (*ReconcileResult, error) {
	result := &ReconcileResult{OrderID: orderID}
	var resellerID uint

	err := r.store.Transact(ctx, func(tx *gorm.DB) error {
		txn, err := r.store.LockTransaction(tx, orderID)
		if err != nil {
			return fmt.Errorf("load transaction %s: %w", orderID, err)
		}

		if isTerminal(txn.Status) {
			result.Status = txn.Status
			result.AlreadyProcessed = true
			return nil
		}

		reseller, err := r.store.LockReseller(tx, txn.ResellerID)
		if err != nil {
			return fmt.Errorf("load reseller %d: %w", txn.ResellerID, err)
		}

		outcome, err := ApplyDeposit(txn, st)
		if err != nil {
			return err
		}

		if outcome.WalletDelta != 0 {
			if err := r.store.UpdateReseller(tx, reseller, map[string]interface{}{
				"wallet_balance": reseller.WalletBalance + outcome.WalletDelta,
			}); err != nil {
				return fmt.Errorf("credit wallet: %w", err)
			}
		}
		if outcome.TrafficBytes != 0 {
			if err := r.store.UpdateReseller(tx, reseller, map[string]interface{}{
				"traffic_total_bytes": reseller.TrafficTotalBytes + outcome.TrafficBytes,
			}); err != nil {
				return fmt.Errorf("credit traffic pool: %w", err)
			}
			if err := r.recordPurchase(tx, txn, outcome); err != nil {
				return err
			}
		}

		txn.Status = models.TxCompleted
		txn.Meta.Authority = refID
		txn.Meta.GatewayResponse = utils.SanitizePayload(payload)
		if err := r.store.UpdateTransaction(tx, txn, map[string]interface{}{
			"status":               txn.Status,
			"meta":                 txn.Meta,
			"callback_received_at": time.Now(),
		}); err != nil {
			return fmt.Errorf("complete transaction %s: %w", orderID, err)
		}

		resellerID = txn.ResellerID
		result.Status = models.TxCompleted
		result.WalletDelta = outcome.WalletDelta
		result.TrafficBytes = outcome.TrafficBytes
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.AlreadyProcessed {
		return result, nil
	}

	// A credit can lift a suspension; re-check outside the payment
	// transaction so a panel outage cannot roll back the credit.
	status, err := r.machine.Evaluate(ctx, resellerID, st)
	if err != nil {
		r.logger.Error("post-deposit evaluation failed",
			zap.Uint("reseller_id", resellerID),
			zap.Error(err),
		)
	} else {
		result.ResellerStatus = status
	}

	r.logger.Info("payment settled",
		zap.String("order_id", orderID),
		zap.Int64("wallet_delta", result.WalletDelta),
		zap.Int64("traffic_bytes", result.TrafficBytes),
	)
	return result, nil
}

// MarkFailed moves a pending transaction to failed. Terminal transactions
// are left alone, including already-failed ones.
func (r *Reconciler) MarkFailed(ctx context.Context, orderID, reason string) (*ReconcileResult, error) {
	result := &ReconcileResult{OrderID: orderID}

	err := r.store.Transact(ctx, func(tx *gorm.DB) error {
		txn, err := r.store.LockTransaction(tx, orderID)
		if err != nil {
			return fmt.Errorf("load transaction %s: %w", orderID, err)
		}

		if isTerminal(txn.Status) {
			result.Status = txn.Status
			result.AlreadyProcessed = true
			return nil
		}

		txn.Status = models.TxFailed
		txn.Meta.FailureReason = reason
		if err := r.store.UpdateTransaction(tx, txn, map[string]interface{}{
			"status":               txn.Status,
			"meta":                 txn.Meta,
			"callback_received_at": time.Now(),
		}); err != nil {
			return fmt.Errorf("fail transaction %s: %w", orderID, err)
		}

		result.Status = models.TxFailed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordPurchase writes the companion purchase row for a traffic credit,
// so the traffic pool history is reconstructable without parsing deposit
// metadata.
func (r *Reconciler) recordPurchase(tx *gorm.DB, txn *models.Transaction, outcome DepositOutcome) error {
	purchase := &models.Transaction{
		OrderID:    utils.GenerateOrderID(),
		ResellerID: txn.ResellerID,
		Type:       models.TxPurchase,
		Gateway:    txn.Gateway,
		Amount:     txn.Amount,
		Status:     models.TxCompleted,
		Meta: models.TransactionMeta{
			DepositMode: models.DepositModeTraffic,
			TrafficGB:   outcome.TrafficGB,
			OrderID:     txn.OrderID,
		},
	}
	if err := r.store.CreateTransaction(tx, purchase); err != nil {
		return fmt.Errorf("record traffic purchase: %w", err)
	}
	return nil
}

// isTerminal reports whether a transaction status can no longer change.
func isTerminal(status string) bool {
	return status == models.TxCompleted || status == models.TxFailed
}

// GormStore is the database-backed Store.
type GormStore struct {
	db        *gorm.DB
	resellers *repository.ResellerRepository
	txns      *repository.TransactionRepository
}

func NewGormStore(db *gorm.DB, resellers *repository.ResellerRepository, txns *repository.TransactionRepository) *GormStore {
	return &GormStore{db: db, resellers: resellers, txns: txns}
}

func (s *GormStore) Transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *GormStore) LockTransaction(tx *gorm.DB, orderID string) (*models.Transaction, error) {
	return s.txns.LockByOrderID(tx, orderID)
}

func (s *GormStore) LockReseller(tx *gorm.DB, id uint) (*models.Reseller, error) {
	return s.resellers.LockByID(tx, id)
}

func (s *GormStore) UpdateReseller(tx *gorm.DB, r *models.Reseller, updates map[string]interface{}) error {
	return tx.Model(r).Updates(updates).Error
}

func (s *GormStore) UpdateTransaction(tx *gorm.DB, txn *models.Transaction, updates map[string]interface{}) error {
	return tx.Model(txn).Updates(updates).Error
}

func (s *GormStore) CreateTransaction(tx *gorm.DB, txn *models.Transaction) error {
	return s.txns.CreateInTx(tx, txn)
}
