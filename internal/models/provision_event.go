package models

import "time"

// ProvisionEvent maps to the `provision_events` table. One row per remote
// panel call made on behalf of a local mutation, recording the combined
// outcome the operator sees ("succeeded locally, remote failed after N
// attempts").
type ProvisionEvent struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ResellerID    uint      `gorm:"column:reseller_id;index" json:"reseller_id"`
	ConfigID      uint      `gorm:"column:config_id;index" json:"config_id"`
	Action        string    `gorm:"column:action;size:100" json:"action"`
	RemoteSuccess bool      `gorm:"column:remote_success" json:"remote_success"`
	Attempts      int       `gorm:"column:attempts" json:"attempts"`
	LastError     string    `gorm:"column:last_error;type:text" json:"last_error"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ProvisionEvent) TableName() string {
	return "provision_events"
}
