package bootstrap

import (
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"resellerd/internal/billing"
	"resellerd/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts baseline rows for singleton tables.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		// Core entities
		&models.Reseller{},
		&models.ResellerConfig{},
		&models.Panel{},
		// Billing records
		&models.LedgerEntry{},
		&models.Transaction{},
		// Audit / operator values
		&models.ProvisionEvent{},
		&models.BillingSetting{},
	}
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return ensureDefaultBillingSettings(tx)
	})
}

func ensureDefaultBillingSettings(tx *gorm.DB) error {
	defaults := map[string]string{
		billing.SettingSuspensionThreshold: strconv.FormatInt(billing.DefaultSuspensionThreshold, 10),
		billing.SettingWalletPricePerGB:    strconv.FormatInt(billing.DefaultWalletPricePerGB, 10),
		billing.SettingTrafficPricePerGB:   strconv.FormatInt(billing.DefaultTrafficPricePerGB, 10),
	}

	for name, value := range defaults {
		var count int64
		if err := tx.Model(&models.BillingSetting{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		row := models.BillingSetting{Name: name, Value: value}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
