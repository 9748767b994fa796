package billing

import "resellerd/internal/models"

// BytesPerGB is the conversion base for all byte-to-cost arithmetic.
const BytesPerGB int64 = 1024 * 1024 * 1024

// CostForBytes converts settled bytes into a wallet charge. Charging is
// always rounded in the operator's favor: the ceiling of the exact
// fractional cost, never the floor.
func CostForBytes(usageBytes, pricePerGB int64) int64 {
	if usageBytes <= 0 || pricePerGB <= 0 {
		return 0
	}
	return (usageBytes*pricePerGB + BytesPerGB - 1) / BytesPerGB
}

// PricePerGBFor returns the reseller-level price override when set,
// otherwise the global wallet price.
func PricePerGBFor(r *models.Reseller, st Settings) int64 {
	if r.WalletPricePerGB > 0 {
		return r.WalletPricePerGB
	}
	return st.WalletPricePerGB
}
