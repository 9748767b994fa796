package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resellerd/internal/models"
)

// ResellerRepository handles reseller database operations.
type ResellerRepository struct {
	db *gorm.DB
}

func NewResellerRepository(db *gorm.DB) *ResellerRepository {
	return &ResellerRepository{db: db}
}

// FindAll returns resellers with pagination and optional search.
func (r *ResellerRepository) FindAll(limit, page int, query string) ([]models.Reseller, int64, error) {
	var resellers []models.Reseller
	var total int64

	db := r.db.Model(&models.Reseller{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("name LIKE ? OR status LIKE ?", search, search)
	}

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

	if err := db.Limit(limit).Offset(offset).Order("id DESC").Find(&resellers).Error; err != nil {
		return nil, 0, err
	}
	return resellers, total, nil
}

// FindByID finds a reseller by ID.
func (r *ResellerRepository) FindByID(id uint) (*models.Reseller, error) {
	var reseller models.Reseller
	if err := r.db.First(&reseller, id).Error; err != nil {
		return nil, err
	}
	return &reseller, nil
}

// LockByID loads a reseller with a pessimistic row lock. Must be called
// inside a transaction; the lock holds until that transaction ends.
func (r *ResellerRepository) LockByID(tx *gorm.DB, id uint) (*models.Reseller, error) {
	var reseller models.Reseller
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reseller, id).Error; err != nil {
		return nil, err
	}
	return &reseller, nil
}

// FindByMode returns resellers in the given billing mode and status.
func (r *ResellerRepository) FindByMode(mode, status string) ([]models.Reseller, error) {
	var resellers []models.Reseller
	err := r.db.Where("billing_mode = ? AND status = ?", mode, status).Find(&resellers).Error
	return resellers, err
}

// Create inserts a new reseller.
func (r *ResellerRepository) Create(reseller *models.Reseller) error {
	return r.db.Create(reseller).Error
}

// Update updates reseller fields.
func (r *ResellerRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Reseller{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateStatus sets the reseller status.
func (r *ResellerRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Reseller{}).Where("id = ?", id).Update("status", status).Error
}
