package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderPlaced        EventType = "order.placed"
	EventTypeOrderConfirmed     EventType = "order.confirmed"
	EventTypeOrderCancelled     EventType = "order.cancelled"
	EventTypeOrderStatusChanged EventType = "order.status_changed"

	// Payment события
	EventTypePaymentSucceeded EventType = "payment.succeeded"
	EventTypePaymentFailed    EventType = "payment.failed"

	// Delivery события
	EventTypeDeliveryAssigned  EventType = "delivery.assigned"
	EventTypeDeliveryCompleted EventType = "delivery.completed"
	EventTypeDeliveryFailed    EventType = "delivery.failed"

	// Inventory события
	EventTypeStockLow EventType = "inventory.stock_low"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "dms.order.events"
	TopicPaymentEvents   = "dms.payment.events"
	TopicDeliveryEvents  = "dms.delivery.events"
	TopicInventoryEvents = "dms.inventory.events"
	TopicDeadLetterQueue = "dms.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// TopicForAggregate возвращает topic для типа агрегата outbox-сообщения.
func TopicForAggregate(aggregateType string) string {
	switch aggregateType {
	case "order":
		return TopicOrderEvents
	case "payment":
		return TopicPaymentEvents
	case "delivery":
		return TopicDeliveryEvents
	case "inventory":
		return TopicInventoryEvents
	default:
		return TopicOrderEvents
	}
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}
