package models

// BillingSetting maps to the `billing_settings` table: hot-reloadable
// operator values (prices, thresholds) keyed by name.
type BillingSetting struct {
	ID    uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"column:name;size:200;uniqueIndex" json:"name"`
	Value string `gorm:"column:value;size:500" json:"value"`
}

func (BillingSetting) TableName() string {
	return "billing_settings"
}
