package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
)

const (
	// estimatedDeliveryOffset — ожидаемый срок доставки от даты заказа.
	estimatedDeliveryOffset = 48 * time.Hour

	persistMaxRetries = 3
	persistBaseDelay  = 10 * time.Millisecond
)

// PlaceOrderRequest содержит данные запроса на размещение заказа.
type PlaceOrderRequest struct {
	CustomerName    string
	CustomerEmail   string
	DepotID         string
	Currency        string
	PaymentMethod   domain.PaymentMethod
	DeliveryAddress string
	ContactNumber   string
	Notes           string
}

// Workflow управляет жизненным циклом заказа.
type Workflow struct {
	orders   domain.OrderRepository
	stock    domain.StockService
	cart     domain.CartService
	outbox   domain.OutboxRepository
	invoices domain.InvoiceDispatcher
	logger   *log.Entry
	metrics  *metrics.FulfillmentMetrics

	// allowOverride разрешает сотрудникам произвольные смены статуса в обход
	// таблицы переходов.
	allowOverride bool
}

// Options настраивает Workflow.
type Options struct {
	Invoices      domain.InvoiceDispatcher
	Logger        *log.Entry
	Metrics       *metrics.FulfillmentMetrics
	AllowOverride bool
}

// NewWorkflow создаёт рабочий экземпляр workflow заказов.
func NewWorkflow(
	orders domain.OrderRepository,
	stock domain.StockService,
	cart domain.CartService,
	outbox domain.OutboxRepository,
	opts Options,
) *Workflow {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "order-workflow")
	}
	return &Workflow{
		orders:        orders,
		stock:         stock,
		cart:          cart,
		outbox:        outbox,
		invoices:      opts.Invoices,
		logger:        logger,
		metrics:       opts.Metrics,
		allowOverride: opts.AllowOverride,
	}
}

// PlaceOrder размещает заказ из корзины клиента. Либо заказ создан и сток
// списан, либо ничего не записано.
func (w *Workflow) PlaceOrder(customerID string, req PlaceOrderRequest) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordPlacementDuration(time.Since(start))
		}
	}()

	items, err := w.cart.Items(customerID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(items) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}

	// Предварительная проверка по суммарному остатку. Совещательная:
	// авторитетная проверка происходит внутри резервирования.
	requested := make(map[string]int32)
	for _, item := range items {
		requested[item.ProductID] += item.Qty
	}
	for productID, qty := range requested {
		total, err := w.stock.TotalStock(productID)
		if err != nil {
			return domain.Order{}, err
		}
		if total < qty {
			w.recordPlacementFailed()
			return domain.Order{}, &domain.InsufficientStockError{
				ProductID: productID,
				Requested: qty,
				Available: total,
			}
		}
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:                    uuid.NewString(),
		OrderNumber:           domain.GenerateOrderNumber(now),
		CustomerID:            customerID,
		CustomerName:          req.CustomerName,
		CustomerEmail:         req.CustomerEmail,
		DepotID:               req.DepotID,
		Status:                domain.OrderStatusPending,
		Currency:              req.Currency,
		PaymentMethod:         req.PaymentMethod,
		DeliveryAddress:       req.DeliveryAddress,
		ContactNumber:         req.ContactNumber,
		Notes:                 req.Notes,
		OrderDate:             now,
		EstimatedDeliveryDate: now.Add(estimatedDeliveryOffset),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	var amount int64
	for _, item := range items {
		subtotal := int64(item.Qty) * item.UnitPriceMinor
		order.Items = append(order.Items, domain.OrderLineItem{
			ID:             uuid.NewString(),
			ProductID:      item.ProductID,
			SKU:            item.SKU,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
			SubtotalMinor:  subtotal,
			CreatedAt:      now,
		})
		amount += subtotal
	}
	order.AmountMinor = amount

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		w.recordPlacementFailed()
		return domain.Order{}, errs[0]
	}

	if err := w.stock.ReserveForOrder(order.ID, order.Items); err != nil {
		w.recordPlacementFailed()
		return domain.Order{}, err
	}

	if err := w.orders.Create(order); err != nil {
		// Компенсация: возвращаем уже списанный сток.
		if restoreErr := w.stock.RestoreForOrder(order.ID, order.Items); restoreErr != nil {
			w.logger.WithError(restoreErr).WithField("order_id", order.ID).
				Error("failed to restore stock after create failure")
		}
		w.recordPlacementFailed()
		return domain.Order{}, err
	}

	if err := w.cart.Clear(customerID); err != nil {
		w.logger.WithError(err).WithField("customer_id", customerID).Warn("failed to clear cart")
	}

	w.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"customer_id":  customerID,
		"amount_minor": order.AmountMinor,
	}).Info("order placed")
	if w.metrics != nil {
		w.metrics.RecordOrderPlaced()
	}
	w.emitEvent(&order, kafka.EventTypeOrderPlaced, map[string]any{
		"amount_minor": order.AmountMinor,
		"currency":     order.Currency,
		"items_count":  len(order.Items),
	})

	return order, nil
}

// ConfirmOrder подтверждает заказ. Легален только из PENDING; счёт и письмо
// уходят fire-and-forget.
func (w *Workflow) ConfirmOrder(orderID string) (domain.Order, error) {
	order, err := w.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusPending {
		return domain.Order{}, domain.ErrInvalidStatusTransition
	}

	updated, err := w.persistStatus(order, domain.OrderStatusConfirmed, nil)
	if err != nil {
		return domain.Order{}, err
	}

	w.logger.WithField("order_id", orderID).Info("order confirmed")
	if w.metrics != nil {
		w.metrics.RecordOrderConfirmed()
	}
	if w.invoices != nil {
		w.invoices.EnqueueInvoice(updated)
	}
	w.emitEvent(&updated, kafka.EventTypeOrderConfirmed, nil)

	return updated, nil
}

// CancelOrder отменяет заказ владельца и возвращает сток на склад.
func (w *Workflow) CancelOrder(customerID, orderID string) (domain.Order, error) {
	order, err := w.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.CustomerID != customerID {
		return domain.Order{}, domain.ErrNotOrderOwner
	}
	if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusConfirmed {
		return domain.Order{}, domain.ErrInvalidStatusTransition
	}

	// Статус фиксируется до возврата стока: конкурентная повторная отмена
	// срезается на проверке статуса и не вернёт сток дважды. Если возврат
	// не удался, заказ остаётся отменённым, ошибка уходит вызывающему, а
	// недосчитанный остаток доливается вручную через приёмку (received).
	updated, err := w.persistStatus(order, domain.OrderStatusCancelled, nil)
	if err != nil {
		return domain.Order{}, err
	}

	if err := w.stock.RestoreForOrder(updated.ID, updated.Items); err != nil {
		w.logger.WithError(err).WithField("order_id", orderID).
			Error("failed to restore stock for cancelled order")
		return domain.Order{}, err
	}

	w.logger.WithField("order_id", orderID).Info("order cancelled")
	if w.metrics != nil {
		w.metrics.RecordOrderCancelled()
	}
	w.emitEvent(&updated, kafka.EventTypeOrderCancelled, nil)

	return updated, nil
}

// UpdateStatus напрямую меняет статус заказа (операция сотрудника). По
// умолчанию переход сверяется с таблицей; override-режим снимает проверку.
func (w *Workflow) UpdateStatus(orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatusTransition
	}

	order, err := w.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == status {
		return order, nil
	}
	if !w.allowOverride && !order.Status.CanTransitionTo(status) {
		return domain.Order{}, domain.ErrInvalidStatusTransition
	}

	var mutate func(*domain.Order)
	if status == domain.OrderStatusDelivered {
		mutate = func(o *domain.Order) {
			o.ActualDeliveryDate = time.Now().UTC()
		}
	}

	updated, err := w.persistStatus(order, status, mutate)
	if err != nil {
		return domain.Order{}, err
	}

	w.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("order status updated")
	w.emitEvent(&updated, kafka.EventTypeOrderStatusChanged, map[string]any{
		"status": string(status),
	})

	return updated, nil
}

// Get возвращает заказ владельцу.
func (w *Workflow) Get(customerID, orderID string) (domain.Order, error) {
	order, err := w.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.CustomerID != customerID {
		return domain.Order{}, domain.ErrNotOrderOwner
	}
	return order, nil
}

// GetByNumber возвращает заказ по номеру (операция сотрудника).
func (w *Workflow) GetByNumber(orderNumber string) (domain.Order, error) {
	return w.orders.GetByNumber(orderNumber)
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (w *Workflow) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	return w.orders.ListByCustomer(customerID, limit)
}

// ListByStatus возвращает заказы в заданном статусе.
func (w *Workflow) ListByStatus(status domain.OrderStatus) ([]domain.Order, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatusTransition
	}
	return w.orders.ListByStatus(status)
}

// ListByDepot возвращает заказы склада.
func (w *Workflow) ListByDepot(depotID string) ([]domain.Order, error) {
	return w.orders.ListByDepot(depotID)
}

// List возвращает все заказы с опциональным лимитом.
func (w *Workflow) List(limit int) ([]domain.Order, error) {
	return w.orders.List(limit)
}

// persistStatus сохраняет смену статуса с retry по version conflict: при
// конфликте заказ перечитывается и переход проверяется заново.
func (w *Workflow) persistStatus(order domain.Order, status domain.OrderStatus, mutate func(*domain.Order)) (domain.Order, error) {
	for attempt := 0; attempt < persistMaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(persistBaseDelay * time.Duration(1<<(attempt-1)))

			fresh, err := w.orders.Get(order.ID)
			if err != nil {
				return domain.Order{}, err
			}
			if fresh.Status == status {
				return fresh, nil
			}
			if !w.allowOverride && !fresh.Status.CanTransitionTo(status) {
				return domain.Order{}, domain.ErrInvalidStatusTransition
			}
			order = fresh
		}

		order.Status = status
		order.UpdatedAt = time.Now().UTC()
		if mutate != nil {
			mutate(&order)
		}

		err := w.orders.Save(order)
		if err == nil {
			order.Version++
			return order, nil
		}
		if !domain.IsVersionConflict(err) {
			return domain.Order{}, err
		}
		w.logger.WithField("order_id", order.ID).Debug("order save conflicted, retrying")
	}

	return domain.Order{}, domain.ErrVersionConflict
}

// emitEvent кладёт событие жизненного цикла заказа в transactional outbox.
// Ошибка постановки логируется и не прерывает операцию.
func (w *Workflow) emitEvent(order *domain.Order, eventType kafka.EventType, extra map[string]any) {
	if w.outbox == nil {
		return
	}

	payload := map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"status":       string(order.Status),
		"ts":           time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to marshal outbox payload")
		return
	}

	if _, err := w.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       data,
	}); err != nil {
		w.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue outbox event")
		return
	}
	if w.metrics != nil {
		w.metrics.RecordOutboxEvent()
	}
}

func (w *Workflow) recordPlacementFailed() {
	if w.metrics != nil {
		w.metrics.RecordPlacementFailed()
	}
}
