package billing

import (
	"testing"

	"resellerd/internal/models"
)

func TestCostForBytesRoundsUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		usageBytes int64
		pricePerGB int64
		want       int64
	}{
		{name: "exact five gib", usageBytes: 5 * BytesPerGB, pricePerGB: 780, want: 3900},
		{name: "one byte over charges next unit", usageBytes: 5*BytesPerGB + 1, pricePerGB: 780, want: 3901},
		{name: "fractional gb ceils", usageBytes: BytesPerGB / 2, pricePerGB: 781, want: 391},
		{name: "single byte", usageBytes: 1, pricePerGB: 780, want: 1},
		{name: "zero usage", usageBytes: 0, pricePerGB: 780, want: 0},
		{name: "negative usage", usageBytes: -100, pricePerGB: 780, want: 0},
		{name: "zero price", usageBytes: BytesPerGB, pricePerGB: 0, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := CostForBytes(tt.usageBytes, tt.pricePerGB)
			if got != tt.want {
				t.Fatalf("CostForBytes(%d, %d) = %d, want %d", tt.usageBytes, tt.pricePerGB, got, tt.want)
			}
		})
	}
}

func TestCostNeverBelowExactFraction(t *testing.T) {
	t.Parallel()

	// Ceiling means cost*BytesPerGB >= usage*price for every input.
	cases := []int64{1, 1023, BytesPerGB - 1, BytesPerGB, BytesPerGB + 1, 3*BytesPerGB + 12345}
	for _, usage := range cases {
		cost := CostForBytes(usage, 780)
		if cost*BytesPerGB < usage*780 {
			t.Fatalf("undercharged: usage=%d cost=%d", usage, cost)
		}
		if (cost-1)*BytesPerGB >= usage*780 {
			t.Fatalf("overcharged by more than one unit: usage=%d cost=%d", usage, cost)
		}
	}
}

func TestPricePerGBForPrefersResellerOverride(t *testing.T) {
	t.Parallel()

	st := Settings{WalletPricePerGB: 780}

	r := &models.Reseller{WalletPricePerGB: 900}
	if got := PricePerGBFor(r, st); got != 900 {
		t.Fatalf("override price = %d, want 900", got)
	}

	r = &models.Reseller{}
	if got := PricePerGBFor(r, st); got != 780 {
		t.Fatalf("global price = %d, want 780", got)
	}
}
