package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resellerd/internal/models"
)

// SettingRepository handles hot-reloadable billing settings.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// DB returns the underlying gorm.DB instance.
func (r *SettingRepository) DB() *gorm.DB {
	return r.db
}

// Get returns the raw value for a setting name, or "" when unset.
func (r *SettingRepository) Get(name string) (string, error) {
	var setting models.BillingSetting
	err := r.db.Where("name = ?", name).First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Set upserts a setting value.
func (r *SettingRepository) Set(name, value string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.BillingSetting{Name: name, Value: value}).Error
}
