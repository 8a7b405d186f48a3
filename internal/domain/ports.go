package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByNumber возвращает заказ по номеру или ErrOrderNotFound.
	GetByNumber(orderNumber string) (Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// ListByStatus возвращает заказы в заданном статусе, новые первыми.
	ListByStatus(status OrderStatus) ([]Order, error)
	// ListByDepot возвращает заказы склада, новые первыми.
	ListByDepot(depotID string) ([]Order, error)
	// List возвращает все заказы с опциональным лимитом, новые первыми.
	List(limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	// Позиции заказа неизменяемы и при сохранении не переписываются.
	Save(order Order) error
	// Delete удаляет заказ. Используется только для компенсации неудачного
	// размещения; размещённые заказы физически не удаляются.
	Delete(id string) error
}

// InventoryRepository описывает хранилище складских записей и движений.
type InventoryRepository interface {
	// Create сохраняет новую складскую запись.
	Create(record InventoryRecord) error
	// Get возвращает запись по идентификатору или ErrInventoryNotFound.
	Get(id string) (InventoryRecord, error)
	// GetByProductAndDepot возвращает запись по ключу (product, depot).
	GetByProductAndDepot(productID, depotID string) (InventoryRecord, error)
	// ListByProduct возвращает записи товара по всем складам,
	// отсортированные по идентификатору склада. Порядок детерминирован:
	// на него опирается раскладка резервирования.
	ListByProduct(productID string) ([]InventoryRecord, error)
	// ListByDepot возвращает все записи склада.
	ListByDepot(depotID string) ([]InventoryRecord, error)
	// ListLowStock возвращает записи склада с остатком не выше порога дозаказа.
	ListLowStock(depotID string) ([]InventoryRecord, error)
	// TotalStockForProduct суммирует остаток товара по всем складам.
	TotalStockForProduct(productID string) (int32, error)
	// ApplyAdjustments атомарно применяет набор изменений: каждая запись
	// обновляется, к ней добавляется ровно одно движение. Если хотя бы одно
	// изменение увело бы остаток в минус, ничего не применяется и
	// возвращается InsufficientStockError.
	ApplyAdjustments(adjustments []StockAdjustment) ([]StockMovement, error)
	// MovementsByRecord возвращает движения записи, новые первыми.
	MovementsByRecord(recordID string) ([]StockMovement, error)
	// MovementsByDepot возвращает движения всех записей склада, новые первыми.
	MovementsByDepot(depotID string) ([]StockMovement, error)
}

// PaymentRepository описывает хранилище платежей.
type PaymentRepository interface {
	Create(payment Payment) error
	// GetByReference возвращает платёж по ссылке или ErrPaymentNotFound.
	GetByReference(reference string) (Payment, error)
	// GetByGatewayOrderID возвращает платёж по идентификатору заказа шлюза.
	GetByGatewayOrderID(gatewayOrderID string) (Payment, error)
	// ListByOrder возвращает платежи заказа, новые первыми.
	ListByOrder(orderID string) ([]Payment, error)
	// ListByCustomer возвращает платежи клиента, новые первыми.
	ListByCustomer(customerID string) ([]Payment, error)
	// HasSuccessfulForOrder сообщает, есть ли по заказу успешный платёж.
	HasSuccessfulForOrder(orderID string) (bool, error)
	Save(payment Payment) error
}

// DeliveryRepository описывает хранилище доставок.
type DeliveryRepository interface {
	Create(delivery Delivery) error
	Get(id string) (Delivery, error)
	// GetByOrder возвращает доставку заказа или ErrDeliveryNotFound.
	GetByOrder(orderID string) (Delivery, error)
	// ListByDriver возвращает доставки водителя, новые первыми.
	ListByDriver(driverID string) ([]Delivery, error)
	// ListByDriverAndStatus возвращает доставки водителя в заданном статусе.
	ListByDriverAndStatus(driverID string, status DeliveryStatus) ([]Delivery, error)
	// ListByStatuses возвращает доставки в любом из перечисленных статусов.
	ListByStatuses(statuses []DeliveryStatus) ([]Delivery, error)
	Save(delivery Delivery) error
}

// DriverRepository описывает хранилище водителей.
type DriverRepository interface {
	Create(driver Driver) error
	Get(id string) (Driver, error)
	// ListAvailableByDepot возвращает активных свободных водителей склада.
	ListAvailableByDepot(depotID string) ([]Driver, error)
	Save(driver Driver) error
}

// CartService — внешний сервис корзины: отдаёт позиции при размещении заказа
// и очищается после успешного размещения.
type CartService interface {
	Items(customerID string) ([]CartItem, error)
	Clear(customerID string) error
}

// CartStore — корзина с полным набором операций для HTTP-слоя.
type CartStore interface {
	CartService
	// Add добавляет позицию; повторное добавление того же товара
	// суммирует количество.
	Add(customerID string, item CartItem) error
	// Remove убирает позицию товара из корзины.
	Remove(customerID, productID string) error
}

// StockService описывает взаимодействие со складским леджером со стороны
// заказного workflow.
type StockService interface {
	// ReserveForOrder резервирует сток под заказ: либо все позиции, либо ни одной.
	ReserveForOrder(orderID string, items []OrderLineItem) error
	// RestoreForOrder возвращает сток отменённого заказа на склад.
	RestoreForOrder(orderID string, items []OrderLineItem) error
	// TotalStock возвращает суммарный остаток товара по всем складам.
	TotalStock(productID string) (int32, error)
}

// InvoiceGenerator рендерит счёт по заказу. Реальная реализация — внешний
// сервис генерации PDF.
type InvoiceGenerator interface {
	Generate(order Order) ([]byte, error)
}

// EmailSender отправляет счёт клиенту. Реальная реализация — внешний SMTP/ESP.
type EmailSender interface {
	SendInvoice(recipient, customerName, orderNumber string, invoice []byte) error
}

// InvoiceDispatcher принимает заявку на выставление счёта в режиме
// fire-and-forget: вызов не блокирует и никогда не возвращает ошибку наружу.
type InvoiceDispatcher interface {
	EnqueueInvoice(order Order)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// NotificationJournal хранит обработанные уведомления платёжного шлюза.
type NotificationJournal interface {
	// Record фиксирует обработанное уведомление.
	Record(entry NotificationRecord) error
	// Seen сообщает, было ли уже обработано уведомление с той же тройкой
	// (gateway order id, status code, signature).
	Seen(gatewayOrderID string, statusCode int32, signature string) (bool, error)
	// DeleteExpired удаляет записи с истёкшим TTL, не более limit за вызов.
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
