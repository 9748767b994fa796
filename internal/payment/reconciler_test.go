package payment

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"resellerd/internal/billing"
	"resellerd/internal/models"
)

type fakeStore struct {
	txns     map[string]*models.Transaction
	reseller *models.Reseller
	created  []models.Transaction
	credits  int
}

func (f *fakeStore) Transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (f *fakeStore) LockTransaction(tx *gorm.DB, orderID string) (*models.Transaction, error) {
	txn, ok := f.txns[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return txn, nil
}

func (f *fakeStore) LockReseller(tx *gorm.DB, id uint) (*models.Reseller, error) {
	return f.reseller, nil
}

func (f *fakeStore) UpdateReseller(tx *gorm.DB, r *models.Reseller, updates map[string]interface{}) error {
	f.credits++
	if v, ok := updates["wallet_balance"]; ok {
		r.WalletBalance = v.(int64)
	}
	if v, ok := updates["traffic_total_bytes"]; ok {
		r.TrafficTotalBytes = v.(int64)
	}
	return nil
}

func (f *fakeStore) UpdateTransaction(tx *gorm.DB, txn *models.Transaction, updates map[string]interface{}) error {
	return nil
}

func (f *fakeStore) CreateTransaction(tx *gorm.DB, txn *models.Transaction) error {
	f.created = append(f.created, *txn)
	return nil
}

type fakeEvaluator struct {
	status string
	calls  int
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, resellerID uint, st billing.Settings) (string, error) {
	f.calls++
	return f.status, nil
}

func TestApplyDepositWallet(t *testing.T) {
	t.Parallel()

	st := billing.DefaultSettings()
	txn := &models.Transaction{
		OrderID: "ORD-1",
		Amount:  50_000,
		Meta:    models.TransactionMeta{DepositMode: models.DepositModeWallet},
	}

	out, err := ApplyDeposit(txn, st)
	if err != nil {
		t.Fatalf("ApplyDeposit: %v", err)
	}
	if out.WalletDelta != 50_000 {
		t.Fatalf("wallet delta = %d, want full amount", out.WalletDelta)
	}
	if out.TrafficBytes != 0 {
		t.Fatalf("wallet deposit credited traffic: %d", out.TrafficBytes)
	}
}

func TestApplyDepositTraffic(t *testing.T) {
	t.Parallel()

	st := billing.Settings{TrafficPricePerGB: 750}

	tests := []struct {
		name    string
		amount  int64
		gb      int64
		wantGB  int64
		wantErr bool
	}{
		{name: "explicit volume", amount: 75_000, gb: 100, wantGB: 100},
		{name: "derived from amount", amount: 7_500, gb: 0, wantGB: 10},
		{name: "amount below one gb", amount: 500, gb: 0, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			txn := &models.Transaction{
				OrderID: "ORD-2",
				Amount:  tt.amount,
				Meta: models.TransactionMeta{
					DepositMode: models.DepositModeTraffic,
					TrafficGB:   tt.gb,
				},
			}

			out, err := ApplyDeposit(txn, st)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyDeposit: %v", err)
			}
			if out.TrafficGB != tt.wantGB {
				t.Fatalf("traffic gb = %d, want %d", out.TrafficGB, tt.wantGB)
			}
			if out.TrafficBytes != tt.wantGB*billing.BytesPerGB {
				t.Fatalf("traffic bytes = %d, want %d", out.TrafficBytes, tt.wantGB*billing.BytesPerGB)
			}
			if out.WalletDelta != 0 {
				t.Fatalf("traffic deposit credited wallet: %d", out.WalletDelta)
			}
		})
	}
}

func TestApplyDepositRejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()

	txn := &models.Transaction{OrderID: "ORD-3", Amount: 0}
	if _, err := ApplyDeposit(txn, billing.DefaultSettings()); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestMarkPaidCreditsWalletExactlyOnce(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		txns: map[string]*models.Transaction{
			"ORD-10": {
				OrderID:    "ORD-10",
				ResellerID: 9,
				Amount:     5_000,
				Status:     models.TxPending,
				Meta:       models.TransactionMeta{DepositMode: models.DepositModeWallet},
			},
		},
		reseller: &models.Reseller{ID: 9, WalletBalance: 100},
	}
	evaluator := &fakeEvaluator{status: models.ResellerActive}
	r := NewReconciler(store, evaluator, zap.NewNop())

	st := billing.DefaultSettings()
	first, err := r.MarkPaid(context.Background(), "ORD-10", "ref-1", nil, st)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if first.AlreadyProcessed || first.WalletDelta != 5_000 {
		t.Fatalf("first result = %+v", first)
	}
	if store.reseller.WalletBalance != 5_100 {
		t.Fatalf("balance = %d, want 5100", store.reseller.WalletBalance)
	}
	if evaluator.calls != 1 {
		t.Fatalf("evaluator called %d times, want 1", evaluator.calls)
	}

	// Duplicate delivery: no second credit, no re-evaluation.
	second, err := r.MarkPaid(context.Background(), "ORD-10", "ref-1", nil, st)
	if err != nil {
		t.Fatalf("duplicate MarkPaid: %v", err)
	}
	if !second.AlreadyProcessed || second.Status != models.TxCompleted {
		t.Fatalf("second result = %+v, want terminal no-op", second)
	}
	if store.reseller.WalletBalance != 5_100 {
		t.Fatalf("balance after duplicate = %d, want 5100", store.reseller.WalletBalance)
	}
	if store.credits != 1 || evaluator.calls != 1 {
		t.Fatalf("credits=%d evaluations=%d, want 1 each", store.credits, evaluator.calls)
	}
}

func TestMarkPaidTrafficWritesOnePurchaseRow(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		txns: map[string]*models.Transaction{
			"ORD-11": {
				OrderID:    "ORD-11",
				ResellerID: 9,
				Gateway:    "starsefar",
				Amount:     7_500,
				Status:     models.TxPending,
				Meta: models.TransactionMeta{
					DepositMode: models.DepositModeTraffic,
					TrafficGB:   10,
				},
			},
		},
		reseller: &models.Reseller{ID: 9, BillingMode: models.BillingModeTraffic},
	}
	r := NewReconciler(store, &fakeEvaluator{status: models.ResellerActive}, zap.NewNop())

	st := billing.DefaultSettings()
	result, err := r.MarkPaid(context.Background(), "ORD-11", "ref-2", nil, st)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if result.TrafficBytes != 10*billing.BytesPerGB {
		t.Fatalf("traffic bytes = %d, want 10 GiB", result.TrafficBytes)
	}
	if store.reseller.TrafficTotalBytes != 10*billing.BytesPerGB {
		t.Fatalf("traffic pool = %d, want 10 GiB", store.reseller.TrafficTotalBytes)
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d companion rows, want 1", len(store.created))
	}
	purchase := store.created[0]
	if purchase.Type != models.TxPurchase || purchase.Meta.OrderID != "ORD-11" {
		t.Fatalf("purchase row = %+v", purchase)
	}

	if _, err := r.MarkPaid(context.Background(), "ORD-11", "ref-2", nil, st); err != nil {
		t.Fatalf("duplicate MarkPaid: %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("duplicate delivery wrote %d purchase rows, want 1", len(store.created))
	}
}

func TestMarkPaidAfterMarkFailedIsNoOp(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		txns: map[string]*models.Transaction{
			"ORD-12": {
				OrderID:    "ORD-12",
				ResellerID: 9,
				Amount:     5_000,
				Status:     models.TxPending,
			},
		},
		reseller: &models.Reseller{ID: 9, WalletBalance: 0},
	}
	evaluator := &fakeEvaluator{status: models.ResellerActive}
	r := NewReconciler(store, evaluator, zap.NewNop())

	failed, err := r.MarkFailed(context.Background(), "ORD-12", "not verified")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if failed.Status != models.TxFailed {
		t.Fatalf("status = %q, want failed", failed.Status)
	}

	paid, err := r.MarkPaid(context.Background(), "ORD-12", "ref-3", nil, billing.DefaultSettings())
	if err != nil {
		t.Fatalf("MarkPaid after failure: %v", err)
	}
	if !paid.AlreadyProcessed || paid.Status != models.TxFailed {
		t.Fatalf("result = %+v, want terminal failed no-op", paid)
	}
	if store.reseller.WalletBalance != 0 || evaluator.calls != 0 {
		t.Fatalf("failed order credited: balance=%d evaluations=%d", store.reseller.WalletBalance, evaluator.calls)
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status string
		want   bool
	}{
		{status: models.TxPending, want: false},
		{status: models.TxCompleted, want: true},
		{status: models.TxFailed, want: true},
	}
	for _, tt := range tests {
		if got := isTerminal(tt.status); got != tt.want {
			t.Fatalf("isTerminal(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
