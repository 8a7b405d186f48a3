package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/storage/memory"
)

func newPayment(id, orderID string, status domain.PaymentStatus) domain.Payment {
	now := time.Now().UTC()
	return domain.Payment{
		ID:             id,
		Reference:      "PAY-" + id,
		OrderID:        orderID,
		CustomerID:     "customer-1",
		GatewayOrderID: "GW-" + id,
		Status:         status,
		Currency:       "LKR",
		AmountMinor:    1000,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPaymentRepository_CreateGet(t *testing.T) {
	repo := memory.NewPaymentRepository()
	payment := newPayment("pay-1", "order-1", domain.PaymentStatusPending)

	if err := repo.Create(payment); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.GetByReference(payment.Reference)
	if err != nil {
		t.Fatalf("get by reference failed: %v", err)
	}
	if stored.ID != payment.ID {
		t.Fatalf("expected id %s, got %s", payment.ID, stored.ID)
	}

	byGateway, err := repo.GetByGatewayOrderID(payment.GatewayOrderID)
	if err != nil {
		t.Fatalf("get by gateway order failed: %v", err)
	}
	if byGateway.ID != payment.ID {
		t.Fatalf("expected id %s, got %s", payment.ID, byGateway.ID)
	}
}

func TestPaymentRepository_HasSuccessfulForOrder(t *testing.T) {
	repo := memory.NewPaymentRepository()
	if err := repo.Create(newPayment("pay-1", "order-1", domain.PaymentStatusFailed)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	ok, err := repo.HasSuccessfulForOrder("order-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if ok {
		t.Fatal("expected no successful payment yet")
	}

	if err := repo.Create(newPayment("pay-2", "order-1", domain.PaymentStatusSuccess)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	ok, err = repo.HasSuccessfulForOrder("order-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !ok {
		t.Fatal("expected successful payment to be found")
	}
}

func TestPaymentRepository_GetMissing(t *testing.T) {
	repo := memory.NewPaymentRepository()

	if _, err := repo.GetByReference("missing"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestPaymentRepository_ListByOrder(t *testing.T) {
	repo := memory.NewPaymentRepository()
	if err := repo.Create(newPayment("pay-1", "order-1", domain.PaymentStatusFailed)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newPayment("pay-2", "order-1", domain.PaymentStatusSuccess)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newPayment("pay-3", "order-2", domain.PaymentStatusPending)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	payments, err := repo.ListByOrder("order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
}
