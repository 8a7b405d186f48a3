package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics содержит метрики основных операций сервиса.
type FulfillmentMetrics struct {
	// Счётчики заказов
	ordersPlaced    prometheus.Counter
	ordersConfirmed prometheus.Counter
	ordersCancelled prometheus.Counter
	placementFailed prometheus.Counter

	// Счётчики склада
	reservationConflicts prometheus.Counter
	stockMovements       *prometheus.CounterVec

	// Счётчики платёжных уведомлений
	notificationsAccepted  prometheus.Counter
	notificationsRejected  prometheus.Counter
	notificationsDuplicate prometheus.Counter

	// Счётчики доставок
	deliveriesCompleted prometheus.Counter
	deliveriesFailed    prometheus.Counter

	// Гистограммы времени выполнения
	placementDuration    prometheus.Histogram
	notificationDuration prometheus.Histogram

	// Gauge активных доставок
	activeDeliveries prometheus.Gauge

	// Счётчик событий outbox
	outboxEvents prometheus.Counter
}

// NewFulfillmentMetrics создаёт метрики сервиса в default registry.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return newFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		ordersConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_orders_confirmed_total",
			Help: "Total number of orders confirmed",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		placementFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_order_placement_failed_total",
			Help: "Total number of failed order placements",
		}),
		reservationConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_stock_reservation_conflicts_total",
			Help: "Total number of stock reservation retries caused by concurrent writes",
		}),
		stockMovements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dms_stock_movements_total",
			Help: "Total number of stock movements recorded",
		}, []string{"kind"}),
		notificationsAccepted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_payment_notifications_accepted_total",
			Help: "Total number of gateway notifications processed",
		}),
		notificationsRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_payment_notifications_rejected_total",
			Help: "Total number of gateway notifications rejected by hash verification",
		}),
		notificationsDuplicate: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_payment_notifications_duplicate_total",
			Help: "Total number of replayed gateway notifications short-circuited",
		}),
		deliveriesCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_deliveries_completed_total",
			Help: "Total number of deliveries completed",
		}),
		deliveriesFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_deliveries_failed_total",
			Help: "Total number of deliveries failed",
		}),
		placementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "dms_order_placement_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		notificationDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "dms_payment_notification_duration_seconds",
			Help:    "Duration of gateway notification processing in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		activeDeliveries: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "dms_active_deliveries",
			Help: "Number of deliveries currently in flight",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderPlaced увеличивает счётчик размещённых заказов.
func (m *FulfillmentMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordOrderConfirmed увеличивает счётчик подтверждённых заказов.
func (m *FulfillmentMetrics) RecordOrderConfirmed() {
	m.ordersConfirmed.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *FulfillmentMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordPlacementFailed увеличивает счётчик неудачных размещений.
func (m *FulfillmentMetrics) RecordPlacementFailed() {
	m.placementFailed.Inc()
}

// RecordReservationConflict увеличивает счётчик повторов резервирования.
func (m *FulfillmentMetrics) RecordReservationConflict() {
	m.reservationConflicts.Inc()
}

// RecordStockMovement увеличивает счётчик движений склада по виду.
func (m *FulfillmentMetrics) RecordStockMovement(kind string) {
	m.stockMovements.WithLabelValues(kind).Inc()
}

// RecordNotificationAccepted увеличивает счётчик обработанных уведомлений шлюза.
func (m *FulfillmentMetrics) RecordNotificationAccepted() {
	m.notificationsAccepted.Inc()
}

// RecordNotificationRejected увеличивает счётчик отклонённых уведомлений.
func (m *FulfillmentMetrics) RecordNotificationRejected() {
	m.notificationsRejected.Inc()
}

// RecordNotificationDuplicate увеличивает счётчик повторных уведомлений.
func (m *FulfillmentMetrics) RecordNotificationDuplicate() {
	m.notificationsDuplicate.Inc()
}

// RecordDeliveryStarted увеличивает количество активных доставок.
func (m *FulfillmentMetrics) RecordDeliveryStarted() {
	m.activeDeliveries.Inc()
}

// RecordDeliveryCompleted фиксирует успешное завершение доставки.
func (m *FulfillmentMetrics) RecordDeliveryCompleted() {
	m.deliveriesCompleted.Inc()
	m.activeDeliveries.Dec()
}

// RecordDeliveryFailed фиксирует неуспешное завершение доставки.
func (m *FulfillmentMetrics) RecordDeliveryFailed() {
	m.deliveriesFailed.Inc()
	m.activeDeliveries.Dec()
}

// RecordPlacementDuration записывает время размещения заказа.
func (m *FulfillmentMetrics) RecordPlacementDuration(duration time.Duration) {
	m.placementDuration.Observe(duration.Seconds())
}

// RecordNotificationDuration записывает время обработки уведомления шлюза.
func (m *FulfillmentMetrics) RecordNotificationDuration(duration time.Duration) {
	m.notificationDuration.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *FulfillmentMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
