package models

import "time"

// Billing modes. Exactly one mode is active per reseller.
const (
	BillingModePlan    = "plan"
	BillingModeTraffic = "traffic"
	BillingModeWallet  = "wallet"
)

// Reseller statuses. Suspension statuses are derived from mode-specific
// thresholds; a reseller is never suspended for both wallet and traffic
// reasons at the same time.
const (
	ResellerActive           = "active"
	ResellerDisabled         = "disabled"
	ResellerSuspended        = "suspended"
	ResellerSuspendedWallet  = "suspended_wallet"
	ResellerSuspendedTraffic = "suspended_traffic"
	ResellerSuspendedOther   = "suspended_other"
)

// Reseller maps to the `resellers` table.
type Reseller struct {
	ID                 uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name               string     `gorm:"column:name;size:300" json:"name"`
	BillingMode        string     `gorm:"column:billing_mode;size:50;default:'wallet'" json:"billing_mode"`
	Status             string     `gorm:"column:status;size:50;default:'active'" json:"status"`
	WalletBalance      int64      `gorm:"column:wallet_balance;default:0" json:"wallet_balance"`
	WalletPricePerGB   int64      `gorm:"column:wallet_price_per_gb;default:0" json:"wallet_price_per_gb"`
	TrafficTotalBytes  int64      `gorm:"column:traffic_total_bytes;default:0" json:"traffic_total_bytes"`
	TrafficUsedBytes   int64      `gorm:"column:traffic_used_bytes;default:0" json:"traffic_used_bytes"`
	AdminForgivenBytes int64      `gorm:"column:admin_forgiven_bytes;default:0" json:"admin_forgiven_bytes"`
	WindowStartsAt     *time.Time `gorm:"column:window_starts_at" json:"window_starts_at"`
	WindowEndsAt       *time.Time `gorm:"column:window_ends_at" json:"window_ends_at"`
	CreatedAt          time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Reseller) TableName() string {
	return "resellers"
}

// Suspended reports whether the reseller is in any suspended state.
func (r *Reseller) Suspended() bool {
	switch r.Status {
	case ResellerSuspended, ResellerSuspendedWallet, ResellerSuspendedTraffic, ResellerSuspendedOther:
		return true
	}
	return false
}
