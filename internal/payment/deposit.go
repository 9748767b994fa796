package payment

import (
	"fmt"

	"resellerd/internal/billing"
	"resellerd/internal/models"
)

// DepositOutcome is what applying a completed deposit writes onto the
// reseller.
type DepositOutcome struct {
	WalletDelta  int64 `json:"wallet_delta"`
	TrafficGB    int64 `json:"traffic_gb"`
	TrafficBytes int64 `json:"traffic_bytes"`
}

// ApplyDeposit computes the credit a completed deposit grants. Pure: the
// caller persists the outcome inside its own transaction.
//
// Wallet deposits credit the full amount. Traffic deposits credit the
// gigabytes recorded at order time, falling back to amount divided by
// the current traffic price when the order predates that field.
func ApplyDeposit(txn *models.Transaction, st billing.Settings) (DepositOutcome, error) {
	if txn.Amount <= 0 {
		return DepositOutcome{}, fmt.Errorf("transaction %s has non-positive amount %d", txn.OrderID, txn.Amount)
	}

	switch txn.Meta.DepositMode {
	case models.DepositModeTraffic:
		gb := txn.Meta.TrafficGB
		if gb <= 0 {
			if st.TrafficPricePerGB <= 0 {
				return DepositOutcome{}, fmt.Errorf("transaction %s: no traffic price to derive volume", txn.OrderID)
			}
			gb = txn.Amount / st.TrafficPricePerGB
		}
		if gb <= 0 {
			return DepositOutcome{}, fmt.Errorf("transaction %s resolves to zero traffic", txn.OrderID)
		}
		return DepositOutcome{TrafficGB: gb, TrafficBytes: gb * billing.BytesPerGB}, nil
	default:
		return DepositOutcome{WalletDelta: txn.Amount}, nil
	}
}
