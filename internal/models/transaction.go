package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Transaction statuses. A transaction moves pending -> completed or
// pending -> failed exactly once; both end states are terminal.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
)

// Transaction types.
const (
	TxDeposit  = "deposit"
	TxPurchase = "purchase"
	TxRefund   = "refund"
)

// Deposit modes carried in transaction metadata.
const (
	DepositModeWallet  = "wallet"
	DepositModeTraffic = "traffic"
)

// TransactionMeta is the typed gateway metadata blob, stored as JSON.
// GatewayResponse holds the sanitized raw callback payload for audit.
type TransactionMeta struct {
	DepositMode     string                 `json:"deposit_mode,omitempty"`
	TrafficGB       int64                  `json:"traffic_gb,omitempty"`
	OrderID         string                 `json:"order_id,omitempty"`
	HashID          string                 `json:"hash_id,omitempty"`
	Authority       string                 `json:"authority,omitempty"`
	GatewayResponse map[string]interface{} `json:"gateway_response,omitempty"`
	FailureReason   string                 `json:"failure_reason,omitempty"`
}

func (m TransactionMeta) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *TransactionMeta) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = TransactionMeta{}
		return nil
	case []byte:
		if len(v) == 0 {
			*m = TransactionMeta{}
			return nil
		}
		return json.Unmarshal(v, m)
	case string:
		if v == "" {
			*m = TransactionMeta{}
			return nil
		}
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported transaction meta type %T", value)
	}
}

// Transaction maps to the `transactions` table.
type Transaction struct {
	ID                 uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID            string          `gorm:"column:order_id;size:200;uniqueIndex" json:"order_id"`
	ResellerID         uint            `gorm:"column:reseller_id;index" json:"reseller_id"`
	Type               string          `gorm:"column:type;size:50" json:"type"`
	Gateway            string          `gorm:"column:gateway;size:100" json:"gateway"`
	Amount             int64           `gorm:"column:amount" json:"amount"`
	Status             string          `gorm:"column:status;size:50;default:'pending'" json:"status"`
	Meta               TransactionMeta `gorm:"column:meta;type:text" json:"meta"`
	CallbackReceivedAt *time.Time      `gorm:"column:callback_received_at" json:"callback_received_at"`
	CreatedAt          time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
