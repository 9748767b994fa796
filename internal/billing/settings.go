package billing

import (
	"strconv"
	"strings"

	"resellerd/internal/repository"
)

// Setting names in the billing_settings table.
const (
	SettingSuspensionThreshold = "wallet_suspension_threshold"
	SettingWalletPricePerGB    = "wallet_price_per_gb"
	SettingTrafficPricePerGB   = "traffic_price_per_gb"
)

// Defaults applied when a setting row is missing or unparsable.
const (
	DefaultSuspensionThreshold = -1000
	DefaultWalletPricePerGB    = 780
	DefaultTrafficPricePerGB   = 750
)

// Settings is an immutable snapshot of the operator billing values,
// loaded per call so settlement and suspension decisions are made against
// one consistent view (and tests can pin exact thresholds).
type Settings struct {
	SuspensionThreshold int64
	WalletPricePerGB    int64
	TrafficPricePerGB   int64
}

// DefaultSettings returns the compiled-in fallback values.
func DefaultSettings() Settings {
	return Settings{
		SuspensionThreshold: DefaultSuspensionThreshold,
		WalletPricePerGB:    DefaultWalletPricePerGB,
		TrafficPricePerGB:   DefaultTrafficPricePerGB,
	}
}

// LoadSettings reads the current operator values from the settings table,
// falling back to defaults per missing key.
func LoadSettings(repo *repository.SettingRepository) Settings {
	st := DefaultSettings()
	st.SuspensionThreshold = loadInt64(repo, SettingSuspensionThreshold, st.SuspensionThreshold)
	st.WalletPricePerGB = loadInt64(repo, SettingWalletPricePerGB, st.WalletPricePerGB)
	st.TrafficPricePerGB = loadInt64(repo, SettingTrafficPricePerGB, st.TrafficPricePerGB)
	return st
}

func loadInt64(repo *repository.SettingRepository, name string, fallback int64) int64 {
	raw, err := repo.Get(name)
	if err != nil || strings.TrimSpace(raw) == "" {
		return fallback
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
