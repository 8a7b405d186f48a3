package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

func TestMovementKindDelta(t *testing.T) {
	cases := []struct {
		kind  domain.MovementKind
		delta int32
	}{
		{domain.MovementReceived, 10},
		{domain.MovementReturned, 10},
		{domain.MovementTransferredIn, 10},
		{domain.MovementAdjustment, 10},
		{domain.MovementSold, -10},
		{domain.MovementDamaged, -10},
		{domain.MovementTransferredOut, -10},
	}

	for _, tc := range cases {
		if got := tc.kind.Delta(10); got != tc.delta {
			t.Fatalf("%s: expected delta %d, got %d", tc.kind, tc.delta, got)
		}
	}
}

func TestStockStatus(t *testing.T) {
	rec := domain.InventoryRecord{QuantityOnHand: 0, ReorderLevel: 50}
	if rec.StockStatus() != domain.StockStatusOutOfStock {
		t.Fatalf("expected out_of_stock, got %s", rec.StockStatus())
	}

	rec.QuantityOnHand = 50
	if rec.StockStatus() != domain.StockStatusLow {
		t.Fatalf("expected low_stock, got %s", rec.StockStatus())
	}

	rec.QuantityOnHand = 51
	if rec.StockStatus() != domain.StockStatusOK {
		t.Fatalf("expected ok, got %s", rec.StockStatus())
	}
}

func TestStockAdjustmentValidate(t *testing.T) {
	adj := domain.StockAdjustment{RecordID: "rec-1", Kind: domain.MovementSold, Quantity: 1}
	if errs := adj.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	adj = domain.StockAdjustment{Kind: "bogus", Quantity: 0}
	if errs := adj.Validate(); len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
}
