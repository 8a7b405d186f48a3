package order_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/service/inventory"
	"github.com/vladislavdragonenkov/dms/internal/service/order"
	"github.com/vladislavdragonenkov/dms/internal/storage/memory"
)

type stubCart struct {
	mu       sync.Mutex
	items    []domain.CartItem
	itemsErr error
	clearErr error
	clearCnt int
	itemsCnt int
}

func (s *stubCart) Items(customerID string) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemsCnt++
	return s.items, s.itemsErr
}

func (s *stubCart) Clear(customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCnt++
	return s.clearErr
}

type stubDispatcher struct {
	mu       sync.Mutex
	enqueued []domain.Order
}

func (s *stubDispatcher) EnqueueInvoice(order domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued = append(s.enqueued, order)
}

func (s *stubDispatcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.enqueued)
}

type workflowEnv struct {
	workflow *order.Workflow
	orders   domain.OrderRepository
	stock    *inventory.MockService
	cart     *stubCart
	outbox   interface {
		AllPending() []domain.OutboxMessage
	}
	invoices *stubDispatcher
}

func newWorkflowEnv(items []domain.CartItem, opts order.Options) *workflowEnv {
	orders := memory.NewOrderRepository()
	stock := inventory.NewMockService()
	stock.Total = 1000
	cart := &stubCart{items: items}
	outbox := memory.NewOutboxRepository()
	invoices := &stubDispatcher{}

	if opts.Invoices == nil {
		opts.Invoices = invoices
	}

	return &workflowEnv{
		workflow: order.NewWorkflow(orders, stock, cart, outbox, opts),
		orders:   orders,
		stock:    stock,
		cart:     cart,
		outbox:   outbox,
		invoices: invoices,
	}
}

func cartItems() []domain.CartItem {
	return []domain.CartItem{
		{ProductID: "product-1", SKU: "sku-1", Name: "Widget", Qty: 2, UnitPriceMinor: 500},
		{ProductID: "product-2", SKU: "sku-2", Name: "Gadget", Qty: 1, UnitPriceMinor: 1500},
	}
}

func placeRequest() order.PlaceOrderRequest {
	return order.PlaceOrderRequest{
		CustomerName:    "Test Customer",
		CustomerEmail:   "customer@example.com",
		DepotID:         "depot-1",
		Currency:        "LKR",
		PaymentMethod:   domain.PaymentMethodOnline,
		DeliveryAddress: "12 Main St",
		ContactNumber:   "0770000000",
	}
}

func TestWorkflow_PlaceOrder(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{})

	placed, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	if placed.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %s", placed.Status)
	}
	if placed.AmountMinor != 2500 {
		t.Fatalf("expected amount 2500, got %d", placed.AmountMinor)
	}
	if len(placed.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(placed.Items))
	}
	if placed.OrderNumber == "" {
		t.Fatal("expected generated order number")
	}
	if placed.EstimatedDeliveryDate.Before(placed.OrderDate) {
		t.Fatal("estimated delivery date must be after order date")
	}
	if env.stock.ReserveCalls != 1 {
		t.Fatalf("expected 1 reserve call, got %d", env.stock.ReserveCalls)
	}
	if env.cart.clearCnt != 1 {
		t.Fatalf("expected cart cleared once, got %d", env.cart.clearCnt)
	}

	stored, err := env.orders.Get(placed.ID)
	if err != nil {
		t.Fatalf("order must be persisted: %v", err)
	}
	if stored.AmountMinor != placed.AmountMinor {
		t.Fatalf("persisted amount mismatch: %d", stored.AmountMinor)
	}

	events := env.outbox.AllPending()
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events))
	}
	if events[0].EventType != "order.placed" {
		t.Fatalf("expected order.placed event, got %s", events[0].EventType)
	}
}

func TestWorkflow_PlaceOrderEmptyCart(t *testing.T) {
	env := newWorkflowEnv(nil, order.Options{})

	_, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if env.stock.ReserveCalls != 0 {
		t.Fatal("reserve must not be called for empty cart")
	}
}

func TestWorkflow_PlaceOrderAdvisoryInsufficient(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{})
	env.stock.Total = 1

	_, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if env.stock.ReserveCalls != 0 {
		t.Fatal("reserve must not be called after advisory rejection")
	}

	orders, err := env.orders.List(0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatal("no order must be persisted on failure")
	}
}

func TestWorkflow_PlaceOrderReserveFails(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{})
	env.stock.ReserveErr = &domain.InsufficientStockError{ProductID: "product-1", Requested: 2, Available: 0}

	_, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	orders, err := env.orders.List(0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatal("no order must be persisted when reservation fails")
	}
	if env.cart.clearCnt != 0 {
		t.Fatal("cart must not be cleared on failure")
	}
}

func TestWorkflow_ConfirmOrder(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{})

	placed, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	confirmed, err := env.workflow.ConfirmOrder(placed.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if env.invoices.count() != 1 {
		t.Fatalf("expected 1 invoice enqueued, got %d", env.invoices.count())
	}

	// Повторное подтверждение — недопустимый переход, счёт не дублируется.
	if _, err := env.workflow.ConfirmOrder(placed.ID); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
	if env.invoices.count() != 1 {
		t.Fatalf("invoice must not be enqueued twice, got %d", env.invoices.count())
	}
}

func TestWorkflow_CancelOrder(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{})

	placed, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	if _, err := env.workflow.CancelOrder("intruder", placed.ID); !errors.Is(err, domain.ErrNotOrderOwner) {
		t.Fatalf("expected ErrNotOrderOwner, got %v", err)
	}

	cancelled, err := env.workflow.CancelOrder("customer-1", placed.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if env.stock.RestoreCalls != 1 {
		t.Fatalf("expected 1 restore call, got %d", env.stock.RestoreCalls)
	}
}

func TestWorkflow_CancelOrderRestoreFailure(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{})

	placed, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	env.stock.RestoreErr = errors.New("restore unavailable")
	if _, err := env.workflow.CancelOrder("customer-1", placed.ID); err == nil {
		t.Fatal("expected restore failure to surface")
	}

	// Отмена уже зафиксирована: недолив стока устраняется приёмкой, а не
	// повторной отменой.
	stored, err := env.orders.Get(placed.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != domain.OrderStatusCancelled {
		t.Fatalf("order must stay cancelled after failed restore, got %s", stored.Status)
	}

	env.stock.RestoreErr = nil
	if _, err := env.workflow.CancelOrder("customer-1", placed.ID); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("repeated cancel must not restore twice, got %v", err)
	}
	if env.stock.RestoreCalls != 1 {
		t.Fatalf("expected single restore attempt, got %d", env.stock.RestoreCalls)
	}
}

func TestWorkflow_CancelDeliveredOrder(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{AllowOverride: true})

	placed, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}
	if _, err := env.workflow.UpdateStatus(placed.ID, domain.OrderStatusDelivered); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if _, err := env.workflow.CancelOrder("customer-1", placed.ID); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestWorkflow_UpdateStatusForwardOnly(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{})

	placed, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	// Прыжок через статусы запрещён по умолчанию.
	if _, err := env.workflow.UpdateStatus(placed.ID, domain.OrderStatusOutForDelivery); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}

	chain := []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusReadyForDelivery,
		domain.OrderStatusOutForDelivery,
		domain.OrderStatusDelivered,
	}
	var updated domain.Order
	for _, status := range chain {
		updated, err = env.workflow.UpdateStatus(placed.ID, status)
		if err != nil {
			t.Fatalf("update to %s failed: %v", status, err)
		}
	}
	if updated.ActualDeliveryDate.IsZero() {
		t.Fatal("DELIVERED must stamp actual delivery date")
	}
}

func TestWorkflow_UpdateStatusOverride(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{AllowOverride: true})

	placed, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	updated, err := env.workflow.UpdateStatus(placed.ID, domain.OrderStatusOutForDelivery)
	if err != nil {
		t.Fatalf("override update failed: %v", err)
	}
	if updated.Status != domain.OrderStatusOutForDelivery {
		t.Fatalf("expected out_for_delivery, got %s", updated.Status)
	}
}

func TestWorkflow_GetOwnerChecked(t *testing.T) {
	env := newWorkflowEnv(cartItems(), order.Options{})

	placed, err := env.workflow.PlaceOrder("customer-1", placeRequest())
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	if _, err := env.workflow.Get("intruder", placed.ID); !errors.Is(err, domain.ErrNotOrderOwner) {
		t.Fatalf("expected ErrNotOrderOwner, got %v", err)
	}
	if _, err := env.workflow.Get("customer-1", placed.ID); err != nil {
		t.Fatalf("owner get failed: %v", err)
	}
}
