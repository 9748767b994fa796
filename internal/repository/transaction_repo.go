package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resellerd/internal/models"
)

// TransactionRepository handles payment transaction database operations.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// FindByOrderID returns a transaction by order ID.
func (r *TransactionRepository) FindByOrderID(orderID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.Where("order_id = ?", orderID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// LockByOrderID loads a transaction with a pessimistic row lock inside tx.
// This is the idempotency guard for duplicate gateway deliveries: the lock
// serializes concurrent callbacks and the caller checks status afterward.
func (r *TransactionRepository) LockByOrderID(tx *gorm.DB, orderID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByResellerID returns transactions for a reseller, newest first.
func (r *TransactionRepository) FindByResellerID(resellerID uint, limit, page int) ([]models.Transaction, int64, error) {
	var txns []models.Transaction
	var total int64

	db := r.db.Model(&models.Transaction{}).Where("reseller_id = ?", resellerID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("id DESC").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// FindPendingByGateway returns pending transactions for one gateway, used
// by the polling cron job.
func (r *TransactionRepository) FindPendingByGateway(gateway string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var txns []models.Transaction
	err := r.db.Where("status = ? AND gateway = ?", models.TxPending, gateway).
		Order("created_at").Limit(limit).Find(&txns).Error
	return txns, err
}

// FindPendingOlderThan returns pending transactions created before cutoff.
func (r *TransactionRepository) FindPendingOlderThan(cutoff time.Time) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.Where("status = ? AND created_at < ?", models.TxPending, cutoff).Find(&txns).Error
	return txns, err
}

// Create inserts a new transaction.
func (r *TransactionRepository) Create(txn *models.Transaction) error {
	return r.db.Create(txn).Error
}

// CreateInTx inserts a transaction within an existing database transaction.
func (r *TransactionRepository) CreateInTx(tx *gorm.DB, txn *models.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(txn).Error
}

// Update updates a transaction by order ID.
func (r *TransactionRepository) Update(orderID string, updates map[string]interface{}) error {
	return r.db.Model(&models.Transaction{}).Where("order_id = ?", orderID).Updates(updates).Error
}
