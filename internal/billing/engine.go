package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"resellerd/internal/models"
	"resellerd/internal/pkg/utils"
	"resellerd/internal/repository"
)

// Settlement statuses.
const (
	StatusSettled = "settled"
	StatusSkipped = "skipped"
)

// SettlementResult reports one settlement run for caller-side messaging.
type SettlementResult struct {
	Status       string `json:"status"`
	CostCharged  int64  `json:"cost_charged"`
	BytesCharged int64  `json:"bytes_charged"`
}

// Engine converts accumulated config usage into wallet charges. Every
// settlement runs inside one database transaction holding a row lock on
// the reseller: the wallet debit, the ledger entry, and the usage fold
// commit together or not at all.
type Engine struct {
	db        *gorm.DB
	resellers *repository.ResellerRepository
	configs   *repository.ConfigRepository
	ledger    *repository.LedgerRepository
	logger    *zap.Logger
}

func NewEngine(db *gorm.DB, resellers *repository.ResellerRepository, configs *repository.ConfigRepository, ledger *repository.LedgerRepository, logger *zap.Logger) *Engine {
	return &Engine{
		db:        db,
		resellers: resellers,
		configs:   configs,
		ledger:    ledger,
		logger:    logger,
	}
}

// Settle charges a config's unsettled usage against its reseller's wallet.
// Non-wallet resellers and configs with no usage are skipped. The caller
// re-evaluates suspension thresholds after a successful debit.
func (e *Engine) Settle(ctx context.Context, configID uint, reason string, st Settings) (SettlementResult, error) {
	result := SettlementResult{Status: StatusSkipped}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := e.configs.LockByID(tx, configID)
		if err != nil {
			return fmt.Errorf("load config %d: %w", configID, err)
		}

		// Lock the reseller before reading usage: two concurrent
		// settlements for the same reseller serialize here.
		reseller, err := e.resellers.LockByID(tx, cfg.ResellerID)
		if err != nil {
			return fmt.Errorf("load reseller %d: %w", cfg.ResellerID, err)
		}

		if reseller.BillingMode != models.BillingModeWallet {
			return nil
		}
		if cfg.UsageBytes <= 0 {
			return nil
		}

		price := PricePerGBFor(reseller, st)
		cost := CostForBytes(cfg.UsageBytes, price)

		balanceBefore := reseller.WalletBalance
		balanceAfter := balanceBefore - cost

		if err := tx.Model(reseller).Update("wallet_balance", balanceAfter).Error; err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}

		entry := newLedgerEntry(reseller, cfg, reason, cost, price, balanceBefore, balanceAfter)
		if err := e.ledger.Create(tx, entry); err != nil {
			return fmt.Errorf("write ledger entry: %w", err)
		}

		charged := cfg.UsageBytes
		cfg.Meta = foldUsage(cfg.Meta, charged, time.Now())
		cfg.UsageBytes = 0
		if err := tx.Model(cfg).Select("usage_bytes", "meta").Updates(map[string]interface{}{
			"usage_bytes": cfg.UsageBytes,
			"meta":        cfg.Meta,
		}).Error; err != nil {
			return fmt.Errorf("fold usage: %w", err)
		}

		result = SettlementResult{
			Status:       StatusSettled,
			CostCharged:  cost,
			BytesCharged: charged,
		}
		return nil
	})
	if err != nil {
		return SettlementResult{Status: StatusSkipped}, err
	}

	if result.Status == StatusSettled {
		e.logger.Info("usage settled",
			zap.Uint("config_id", configID),
			zap.String("reason", reason),
			zap.Int64("bytes", result.BytesCharged),
			zap.Int64("cost", result.CostCharged),
		)
	}
	return result, nil
}

// foldUsage moves charged bytes from the live counter into the cumulative
// settled counter. Bytes are moved, never created or destroyed:
// usage + settled is invariant across the fold.
func foldUsage(meta models.ConfigMeta, chargedBytes int64, at time.Time) models.ConfigMeta {
	meta.SettledUsageBytes += chargedBytes
	meta.LastResetAt = &at
	return meta
}

func newLedgerEntry(r *models.Reseller, cfg *models.ResellerConfig, reason string, cost, price, before, after int64) *models.LedgerEntry {
	metaJSON, _ := json.Marshal(map[string]interface{}{
		"panel_user_id": cfg.PanelUserID,
		"trigger":       reason,
	})
	configID := cfg.ID
	return &models.LedgerEntry{
		EntryID:             utils.GenerateEntryID(),
		ResellerID:          r.ID,
		ConfigID:            &configID,
		ActionType:          reason,
		ChargedBytes:        cfg.UsageBytes,
		AmountCharged:       cost,
		PricePerGB:          price,
		WalletBalanceBefore: before,
		WalletBalanceAfter:  after,
		Meta:                string(metaJSON),
	}
}
