package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resellerd/internal/models"
)

// ConfigRepository handles reseller config database operations.
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// FindByID finds a config by ID.
func (r *ConfigRepository) FindByID(id uint) (*models.ResellerConfig, error) {
	var cfg models.ResellerConfig
	if err := r.db.First(&cfg, id).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LockByID loads a config with a pessimistic row lock inside tx.
func (r *ConfigRepository) LockByID(tx *gorm.DB, id uint) (*models.ResellerConfig, error) {
	var cfg models.ResellerConfig
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cfg, id).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindByResellerID returns all non-deleted configs of a reseller.
func (r *ConfigRepository) FindByResellerID(resellerID uint) ([]models.ResellerConfig, error) {
	var configs []models.ResellerConfig
	err := r.db.Where("reseller_id = ? AND status != ?", resellerID, models.ConfigDeleted).
		Find(&configs).Error
	return configs, err
}

// FindActive returns a reseller's active configs.
func (r *ConfigRepository) FindActive(resellerID uint) ([]models.ResellerConfig, error) {
	var configs []models.ResellerConfig
	err := r.db.Where("reseller_id = ? AND status = ?", resellerID, models.ConfigActive).
		Find(&configs).Error
	return configs, err
}

// FindAutoDisabled returns configs auto-disabled for the given suspension
// reason, the candidate set for a bulk re-enable pass.
func (r *ConfigRepository) FindAutoDisabled(resellerID uint, reason string) ([]models.ResellerConfig, error) {
	var all []models.ResellerConfig
	if err := r.db.Where("reseller_id = ? AND status = ?", resellerID, models.ConfigDisabled).
		Find(&all).Error; err != nil {
		return nil, err
	}

	// The reason lives inside the meta JSON blob; filter after decoding.
	configs := all[:0]
	for _, cfg := range all {
		if cfg.Meta.AutoDisabledReason == reason {
			configs = append(configs, cfg)
		}
	}
	return configs, nil
}

// FindSettleable returns configs with unsettled usage belonging to
// wallet-mode resellers, oldest usage first, for the hourly charge sweep.
func (r *ConfigRepository) FindSettleable(limit int) ([]models.ResellerConfig, error) {
	if limit <= 0 {
		limit = 100
	}
	var configs []models.ResellerConfig
	err := r.db.
		Joins("JOIN resellers ON resellers.id = reseller_configs.reseller_id").
		Where("reseller_configs.usage_bytes > 0 AND resellers.billing_mode = ?", models.BillingModeWallet).
		Order("reseller_configs.updated_at").
		Limit(limit).
		Find(&configs).Error
	return configs, err
}

// Create inserts a new config.
func (r *ConfigRepository) Create(cfg *models.ResellerConfig) error {
	return r.db.Create(cfg).Error
}

// Update updates config fields.
func (r *ConfigRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.ResellerConfig{}).Where("id = ?", id).Updates(updates).Error
}

// MarkDisabled flags a config disabled locally, tagging the suspension
// reason so a later reactivation pass can find it.
func (r *ConfigRepository) MarkDisabled(cfg *models.ResellerConfig, reason string, at time.Time) error {
	cfg.Status = models.ConfigDisabled
	cfg.DisabledAt = &at
	cfg.Meta.AutoDisabledReason = reason
	return r.db.Model(cfg).Select("status", "disabled_at", "meta").Updates(cfg).Error
}

// MarkEnabled flags a config active again and clears the auto-disable tag.
func (r *ConfigRepository) MarkEnabled(cfg *models.ResellerConfig) error {
	cfg.Status = models.ConfigActive
	cfg.DisabledAt = nil
	cfg.Meta.AutoDisabledReason = ""
	return r.db.Model(cfg).Select("status", "disabled_at", "meta").Updates(map[string]interface{}{
		"status":      cfg.Status,
		"disabled_at": nil,
		"meta":        cfg.Meta,
	}).Error
}
