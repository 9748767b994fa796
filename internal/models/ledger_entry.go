package models

import "time"

// Ledger action types.
const (
	ActionResetTraffic = "reset_traffic"
	ActionDeleteConfig = "delete_config"
	ActionHourlyCharge = "hourly_charge"
)

// LedgerEntry maps to the `billing_ledger_entries` table. Entries are
// append-only: the repository exposes no update or delete path, and
// WalletBalanceAfter of one entry equals WalletBalanceBefore of the next
// entry for the same reseller.
type LedgerEntry struct {
	ID                  uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EntryID             string    `gorm:"column:entry_id;size:100;uniqueIndex" json:"entry_id"`
	ResellerID          uint      `gorm:"column:reseller_id;index" json:"reseller_id"`
	ConfigID            *uint     `gorm:"column:config_id" json:"config_id"`
	ActionType          string    `gorm:"column:action_type;size:50" json:"action_type"`
	ChargedBytes        int64     `gorm:"column:charged_bytes" json:"charged_bytes"`
	AmountCharged       int64     `gorm:"column:amount_charged" json:"amount_charged"`
	PricePerGB          int64     `gorm:"column:price_per_gb" json:"price_per_gb"`
	WalletBalanceBefore int64     `gorm:"column:wallet_balance_before" json:"wallet_balance_before"`
	WalletBalanceAfter  int64     `gorm:"column:wallet_balance_after" json:"wallet_balance_after"`
	Meta                string    `gorm:"column:meta;type:text" json:"meta"`
	CreatedAt           time.Time `gorm:"column:created_at" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "billing_ledger_entries"
}
