package models

// Supported panel types.
const (
	PanelMarzban    = "marzban"
	PanelMarzneshin = "marzneshin"
	PanelXUI        = "xui"
	PanelEylandoo   = "eylandoo"
)

// Panel maps to the `panels` table. A panel is an external VPN account
// management system; the local database stays authoritative for billing
// and the panel is best-effort mirrored state.
type Panel struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"column:name;size:300" json:"name"`
	Type      string `gorm:"column:type;size:100" json:"type"`
	URL       string `gorm:"column:url;size:2000" json:"url"`
	Username  string `gorm:"column:username;size:200" json:"username"`
	Password  string `gorm:"column:password;size:200" json:"password"`
	APIKey    string `gorm:"column:api_key;size:300" json:"api_key"`
	InboundID string `gorm:"column:inbound_id;size:100" json:"inbound_id"`
	Status    string `gorm:"column:status;size:50;default:'active'" json:"status"`
}

func (Panel) TableName() string {
	return "panels"
}
