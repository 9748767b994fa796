package repository

import (
	"gorm.io/gorm"

	"resellerd/internal/models"
)

// LedgerRepository handles billing ledger entries. The ledger is
// append-only: there is deliberately no update or delete method here.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create appends a ledger entry. Callers run this inside the same
// transaction as the wallet mutation the entry documents.
func (r *LedgerRepository) Create(tx *gorm.DB, entry *models.LedgerEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(entry).Error
}

// FindByResellerID returns a reseller's ledger entries, newest first.
func (r *LedgerRepository) FindByResellerID(resellerID uint, limit, page int) ([]models.LedgerEntry, int64, error) {
	var entries []models.LedgerEntry
	var total int64

	db := r.db.Model(&models.LedgerEntry{}).Where("reseller_id = ?", resellerID)
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

	if err := db.Limit(limit).Offset(offset).Order("id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
