package inventory

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

func TestMockService(t *testing.T) {
	mock := NewMockService()
	if mock == nil {
		t.Fatal("expected non-nil mock")
	}

	items := []domain.OrderLineItem{{ID: "i-1", ProductID: "p-1", SKU: "SKU", Qty: 1, UnitPriceMinor: 100, SubtotalMinor: 100}}
	if err := mock.ReserveForOrder("o-1", items); err != nil {
		t.Fatalf("unexpected reserve error: %v", err)
	}
	if err := mock.RestoreForOrder("o-1", items); err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}
	if mock.ReserveCalls != 1 || mock.RestoreCalls != 1 {
		t.Fatalf("unexpected call counters: reserve=%d restore=%d", mock.ReserveCalls, mock.RestoreCalls)
	}

	mock.ReserveErr = errors.New("reserve failed")
	mock.RestoreErr = errors.New("restore failed")
	if err := mock.ReserveForOrder("o-2", items); err == nil {
		t.Fatal("expected reserve error")
	}
	if err := mock.RestoreForOrder("o-2", items); err == nil {
		t.Fatal("expected restore error")
	}

	mock.Total = 42
	total, err := mock.TotalStock("p-1")
	if err != nil {
		t.Fatalf("unexpected total error: %v", err)
	}
	if total != 42 {
		t.Fatalf("expected total 42, got %d", total)
	}
}
