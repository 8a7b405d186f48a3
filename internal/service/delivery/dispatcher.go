package delivery

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
)

// Координаты назначения по умолчанию, пока не подключён геокодер.
var defaultDestination = domain.Coordinates{Lat: 6.9271, Lng: 79.8612}

const defaultEstimatedDistanceKm = 15.5

// Dispatcher управляет доставками и доступностью водителей.
type Dispatcher struct {
	deliveries domain.DeliveryRepository
	drivers    domain.DriverRepository
	orders     domain.OrderRepository
	outbox     domain.OutboxRepository
	logger     *log.Entry
	metrics    *metrics.FulfillmentMetrics

	// allowOverride разрешает UpdateStatus произвольные переходы.
	allowOverride bool
}

// Options настраивает Dispatcher.
type Options struct {
	Outbox        domain.OutboxRepository
	Logger        *log.Entry
	Metrics       *metrics.FulfillmentMetrics
	AllowOverride bool
}

// NewDispatcher создаёт рабочий экземпляр диспетчера доставок.
func NewDispatcher(
	deliveries domain.DeliveryRepository,
	drivers domain.DriverRepository,
	orders domain.OrderRepository,
	opts Options,
) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "delivery-dispatcher")
	}
	return &Dispatcher{
		deliveries:    deliveries,
		drivers:       drivers,
		orders:        orders,
		outbox:        opts.Outbox,
		logger:        logger,
		metrics:       opts.Metrics,
		allowOverride: opts.AllowOverride,
	}
}

// Assign назначает водителя на заказ. Заказ должен быть CONFIRMED, водитель —
// AVAILABLE. Доставка создаётся лениво; повторное назначение переиспользует
// существующую запись в PENDING_ASSIGNMENT.
func (d *Dispatcher) Assign(orderID, driverID, notes string, destination *domain.Coordinates) (domain.Delivery, error) {
	order, err := d.orders.Get(orderID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if order.Status != domain.OrderStatusConfirmed {
		return domain.Delivery{}, domain.ErrInvalidStatusTransition
	}

	driver, err := d.drivers.Get(driverID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if !driver.Active || driver.Status != domain.DriverStatusAvailable {
		return domain.Delivery{}, domain.ErrDriverNotAvailable
	}

	now := time.Now().UTC()

	delivery, err := d.deliveries.GetByOrder(orderID)
	switch {
	case err == nil:
		if delivery.Status != domain.DeliveryStatusPendingAssignment {
			return domain.Delivery{}, domain.ErrInvalidStatusTransition
		}
	case errors.Is(err, domain.ErrDeliveryNotFound):
		delivery = domain.Delivery{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			Status:    domain.DeliveryStatusPendingAssignment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := d.deliveries.Create(delivery); err != nil {
			return domain.Delivery{}, err
		}
	default:
		return domain.Delivery{}, err
	}

	dest := defaultDestination
	if destination != nil {
		dest = *destination
	}

	delivery.DriverID = driverID
	delivery.Status = domain.DeliveryStatusAssigned
	delivery.AssignedAt = now
	delivery.Destination = dest
	delivery.EstimatedDistanceKm = defaultEstimatedDistanceKm
	delivery.Notes = notes
	delivery.UpdatedAt = now
	if err := d.deliveries.Save(delivery); err != nil {
		return domain.Delivery{}, err
	}
	delivery.Version++

	driver.Status = domain.DriverStatusOnDelivery
	driver.UpdatedAt = now
	if err := d.drivers.Save(driver); err != nil {
		return domain.Delivery{}, err
	}

	if _, err := d.advanceOrder(order, domain.OrderStatusReadyForDelivery, nil); err != nil {
		return domain.Delivery{}, err
	}

	d.logger.WithFields(log.Fields{
		"delivery_id": delivery.ID,
		"order_id":    orderID,
		"driver_id":   driverID,
	}).Info("delivery assigned")
	if d.metrics != nil {
		d.metrics.RecordDeliveryStarted()
	}
	d.emitEvent(&delivery, kafka.EventTypeDeliveryAssigned, nil)

	return delivery, nil
}

// Pickup фиксирует выдачу заказа водителю.
func (d *Dispatcher) Pickup(deliveryID string) (domain.Delivery, error) {
	return d.transition(deliveryID, domain.DeliveryStatusPickedUp, func(delivery *domain.Delivery, now time.Time) {
		delivery.PickedUpAt = now
	})
}

// Start фиксирует начало движения к адресату; заказ переводится
// в OUT_FOR_DELIVERY.
func (d *Dispatcher) Start(deliveryID string) (domain.Delivery, error) {
	delivery, err := d.transition(deliveryID, domain.DeliveryStatusInTransit, nil)
	if err != nil {
		return domain.Delivery{}, err
	}
	d.propagateOrderStatus(delivery.OrderID, domain.OrderStatusOutForDelivery, nil)
	return delivery, nil
}

// Arrive фиксирует прибытие на адрес.
func (d *Dispatcher) Arrive(deliveryID string) (domain.Delivery, error) {
	return d.transition(deliveryID, domain.DeliveryStatusArrived, nil)
}

// Complete завершает доставку: водитель освобождается, заказ получает
// DELIVERED и фактическую дату доставки.
func (d *Dispatcher) Complete(deliveryID, proofURL string) (domain.Delivery, error) {
	delivery, err := d.transition(deliveryID, domain.DeliveryStatusDelivered, func(delivery *domain.Delivery, now time.Time) {
		delivery.DeliveredAt = now
		delivery.ProofURL = proofURL
	})
	if err != nil {
		return domain.Delivery{}, err
	}

	d.releaseDriver(delivery.DriverID)
	d.propagateOrderStatus(delivery.OrderID, domain.OrderStatusDelivered, func(o *domain.Order) {
		o.ActualDeliveryDate = time.Now().UTC()
	})

	if d.metrics != nil {
		d.metrics.RecordDeliveryCompleted()
	}
	d.emitEvent(&delivery, kafka.EventTypeDeliveryCompleted, nil)
	return delivery, nil
}

// Fail помечает доставку неуспешной. Легален из любого нетерминального
// состояния; водитель освобождается, заказ получает FAILED_DELIVERY.
func (d *Dispatcher) Fail(deliveryID, reason string) (domain.Delivery, error) {
	delivery, err := d.transition(deliveryID, domain.DeliveryStatusFailed, func(delivery *domain.Delivery, now time.Time) {
		if reason != "" {
			delivery.Notes = reason
		}
	})
	if err != nil {
		return domain.Delivery{}, err
	}

	d.releaseDriver(delivery.DriverID)
	d.propagateOrderStatus(delivery.OrderID, domain.OrderStatusFailedDelivery, nil)

	if d.metrics != nil {
		d.metrics.RecordDeliveryFailed()
	}
	d.emitEvent(&delivery, kafka.EventTypeDeliveryFailed, map[string]any{"reason": reason})
	return delivery, nil
}

// UpdateStatus — прямой перевод статуса (операция сотрудника) с теми же
// побочными эффектами, что и у узких операций. По умолчанию переход сверяется
// с таблицей; override-режим снимает проверку.
func (d *Dispatcher) UpdateStatus(deliveryID string, status domain.DeliveryStatus) (domain.Delivery, error) {
	if !status.Valid() {
		return domain.Delivery{}, domain.ErrInvalidStatusTransition
	}

	switch status {
	case domain.DeliveryStatusDelivered:
		return d.Complete(deliveryID, "")
	case domain.DeliveryStatusFailed:
		return d.Fail(deliveryID, "")
	default:
		var mutate func(*domain.Delivery, time.Time)
		if status == domain.DeliveryStatusPickedUp {
			mutate = func(delivery *domain.Delivery, now time.Time) {
				delivery.PickedUpAt = now
			}
		}
		return d.transition(deliveryID, status, mutate)
	}
}

// UpdateDriverLocation обновляет координаты водителя и проносит их во все его
// доставки в пути.
func (d *Dispatcher) UpdateDriverLocation(driverID string, location domain.Coordinates) error {
	driver, err := d.drivers.Get(driverID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	driver.Current = location
	driver.LastLocationAt = now
	driver.UpdatedAt = now
	if err := d.drivers.Save(driver); err != nil {
		return err
	}

	inTransit, err := d.deliveries.ListByDriverAndStatus(driverID, domain.DeliveryStatusInTransit)
	if err != nil {
		return err
	}
	for _, delivery := range inTransit {
		delivery.Current = location
		delivery.UpdatedAt = now
		if err := d.deliveries.Save(delivery); err != nil {
			d.logger.WithError(err).WithField("delivery_id", delivery.ID).
				Warn("failed to propagate driver location")
		}
	}

	return nil
}

// UpdateDriverStatus меняет статус доступности водителя.
func (d *Dispatcher) UpdateDriverStatus(driverID string, status domain.DriverStatus) (domain.Driver, error) {
	if !status.Valid() {
		return domain.Driver{}, domain.ErrInvalidStatusTransition
	}

	driver, err := d.drivers.Get(driverID)
	if err != nil {
		return domain.Driver{}, err
	}
	driver.Status = status
	driver.UpdatedAt = time.Now().UTC()
	if err := d.drivers.Save(driver); err != nil {
		return domain.Driver{}, err
	}
	return driver, nil
}

// Get возвращает доставку по идентификатору.
func (d *Dispatcher) Get(deliveryID string) (domain.Delivery, error) {
	return d.deliveries.Get(deliveryID)
}

// ByOrder возвращает доставку заказа.
func (d *Dispatcher) ByOrder(orderID string) (domain.Delivery, error) {
	return d.deliveries.GetByOrder(orderID)
}

// ByDriver возвращает доставки водителя.
func (d *Dispatcher) ByDriver(driverID string) ([]domain.Delivery, error) {
	return d.deliveries.ListByDriver(driverID)
}

// Active возвращает доставки в нетерминальных статусах с назначенным водителем.
func (d *Dispatcher) Active() ([]domain.Delivery, error) {
	return d.deliveries.ListByStatuses([]domain.DeliveryStatus{
		domain.DeliveryStatusAssigned,
		domain.DeliveryStatusPickedUp,
		domain.DeliveryStatusInTransit,
		domain.DeliveryStatusArrived,
	})
}

// AvailableDrivers возвращает свободных водителей склада.
func (d *Dispatcher) AvailableDrivers(depotID string) ([]domain.Driver, error) {
	return d.drivers.ListAvailableByDepot(depotID)
}

// transition выполняет один переход статуса доставки со строгой проверкой
// предшественника (если не включён override).
func (d *Dispatcher) transition(deliveryID string, status domain.DeliveryStatus, mutate func(*domain.Delivery, time.Time)) (domain.Delivery, error) {
	delivery, err := d.deliveries.Get(deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if delivery.Status == status {
		return domain.Delivery{}, domain.ErrInvalidStatusTransition
	}
	if !d.allowOverride && !delivery.Status.CanTransitionTo(status) {
		return domain.Delivery{}, domain.ErrInvalidStatusTransition
	}
	if d.allowOverride && delivery.Status.Terminal() {
		return domain.Delivery{}, domain.ErrInvalidStatusTransition
	}

	now := time.Now().UTC()
	delivery.Status = status
	delivery.UpdatedAt = now
	if mutate != nil {
		mutate(&delivery, now)
	}

	if err := d.deliveries.Save(delivery); err != nil {
		return domain.Delivery{}, err
	}
	delivery.Version++

	d.logger.WithFields(log.Fields{
		"delivery_id": deliveryID,
		"status":      status,
	}).Info("delivery status updated")

	return delivery, nil
}

// releaseDriver возвращает водителя в AVAILABLE. Ошибка логируется: терминал
// доставки уже зафиксирован.
func (d *Dispatcher) releaseDriver(driverID string) {
	if driverID == "" {
		return
	}

	driver, err := d.drivers.Get(driverID)
	if err != nil {
		d.logger.WithError(err).WithField("driver_id", driverID).Warn("failed to load driver for release")
		return
	}
	driver.Status = domain.DriverStatusAvailable
	driver.UpdatedAt = time.Now().UTC()
	if err := d.drivers.Save(driver); err != nil {
		d.logger.WithError(err).WithField("driver_id", driverID).Warn("failed to release driver")
	}
}

// propagateOrderStatus проносит терминал доставки в статус заказа.
func (d *Dispatcher) propagateOrderStatus(orderID string, status domain.OrderStatus, mutate func(*domain.Order)) {
	order, err := d.orders.Get(orderID)
	if err != nil {
		d.logger.WithError(err).WithField("order_id", orderID).Warn("failed to load order for status propagation")
		return
	}
	if order.Status == status {
		return
	}

	if _, err := d.advanceOrder(order, status, mutate); err != nil {
		d.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"status":   status,
		}).Warn("failed to propagate order status")
	}
}

// advanceOrder сохраняет смену статуса заказа с retry по version conflict.
func (d *Dispatcher) advanceOrder(order domain.Order, status domain.OrderStatus, mutate func(*domain.Order)) (domain.Order, error) {
	const maxRetries = 3

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			fresh, err := d.orders.Get(order.ID)
			if err != nil {
				return domain.Order{}, err
			}
			if fresh.Status == status {
				return fresh, nil
			}
			order = fresh
		}

		order.Status = status
		order.UpdatedAt = time.Now().UTC()
		if mutate != nil {
			mutate(&order)
		}

		err := d.orders.Save(order)
		if err == nil {
			order.Version++
			return order, nil
		}
		if !domain.IsVersionConflict(err) {
			return domain.Order{}, err
		}
	}

	return domain.Order{}, domain.ErrVersionConflict
}

func (d *Dispatcher) emitEvent(delivery *domain.Delivery, eventType kafka.EventType, extra map[string]any) {
	if d.outbox == nil {
		return
	}

	payload := map[string]any{
		"delivery_id": delivery.ID,
		"order_id":    delivery.OrderID,
		"driver_id":   delivery.DriverID,
		"status":      string(delivery.Status),
		"ts":          time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.WithError(err).WithField("delivery_id", delivery.ID).Warn("failed to marshal outbox payload")
		return
	}

	if _, err := d.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "delivery",
		AggregateID:   delivery.OrderID,
		EventType:     string(eventType),
		Payload:       data,
	}); err != nil {
		d.logger.WithError(err).WithField("delivery_id", delivery.ID).Warn("failed to enqueue outbox event")
		return
	}
	if d.metrics != nil {
		d.metrics.RecordOutboxEvent()
	}
}
