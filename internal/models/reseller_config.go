package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Config statuses.
const (
	ConfigActive   = "active"
	ConfigDisabled = "disabled"
	ConfigExpired  = "expired"
	ConfigDeleted  = "deleted"
)

// Reasons a config was auto-disabled, used to scope bulk re-enable.
const (
	DisableReasonWallet  = "wallet"
	DisableReasonTraffic = "traffic"
)

// ConfigMeta is the typed per-config extension blob. It is stored as JSON
// in a text column; the struct keeps the settlement invariants
// (settled_usage_bytes only ever grows) out of stringly-typed territory.
type ConfigMeta struct {
	SettledUsageBytes  int64      `json:"settled_usage_bytes,omitempty"`
	LastResetAt        *time.Time `json:"last_reset_at,omitempty"`
	AutoDisabledReason string     `json:"auto_disabled_reason,omitempty"`
	MaxClients         int        `json:"max_clients,omitempty"`
	NodeIDs            []int      `json:"node_ids,omitempty"`
}

func (m ConfigMeta) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *ConfigMeta) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = ConfigMeta{}
		return nil
	case []byte:
		if len(v) == 0 {
			*m = ConfigMeta{}
			return nil
		}
		return json.Unmarshal(v, m)
	case string:
		if v == "" {
			*m = ConfigMeta{}
			return nil
		}
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported config meta type %T", value)
	}
}

// ResellerConfig maps to the `reseller_configs` table. UsageBytes is the
// current-cycle counter; settled bytes accumulate in Meta so that
// UsageBytes + Meta.SettledUsageBytes is the all-time total.
type ResellerConfig struct {
	ID                uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ResellerID        uint       `gorm:"column:reseller_id;index" json:"reseller_id"`
	PanelID           *uint      `gorm:"column:panel_id" json:"panel_id"`
	PanelUserID       string     `gorm:"column:panel_user_id;size:300" json:"panel_user_id"`
	UsageBytes        int64      `gorm:"column:usage_bytes;default:0" json:"usage_bytes"`
	TrafficLimitBytes int64      `gorm:"column:traffic_limit_bytes;default:0" json:"traffic_limit_bytes"`
	ExpiresAt         *time.Time `gorm:"column:expires_at" json:"expires_at"`
	Status            string     `gorm:"column:status;size:50;default:'active'" json:"status"`
	DisabledAt        *time.Time `gorm:"column:disabled_at" json:"disabled_at"`
	Meta              ConfigMeta `gorm:"column:meta;type:text" json:"meta"`
	CreatedAt         time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (ResellerConfig) TableName() string {
	return "reseller_configs"
}
