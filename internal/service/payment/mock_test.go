package payment

import (
	"errors"
	"testing"
)

func TestMockConfirmer(t *testing.T) {
	mock := NewMockConfirmer()
	if mock == nil {
		t.Fatal("expected non-nil mock")
	}

	order, err := mock.ConfirmOrder("order-1")
	if err != nil {
		t.Fatalf("unexpected confirm error: %v", err)
	}
	if order.ID != "order-1" {
		t.Fatalf("expected order-1, got %s", order.ID)
	}
	if mock.ConfirmCalls != 1 || mock.LastOrderID != "order-1" {
		t.Fatalf("unexpected call counters: calls=%d last=%s", mock.ConfirmCalls, mock.LastOrderID)
	}

	mock.ConfirmErr = errors.New("confirm failed")
	if _, err := mock.ConfirmOrder("order-2"); err == nil {
		t.Fatal("expected confirm error")
	}
}
