package domain

import "time"

// DeliveryStatus описывает жизненный цикл доставки.
type DeliveryStatus string

const (
	// DeliveryStatusPendingAssignment — доставка создана, водитель не назначен.
	DeliveryStatusPendingAssignment DeliveryStatus = "pending_assignment"
	// DeliveryStatusAssigned — водитель назначен, заказ ожидает выдачи.
	DeliveryStatusAssigned DeliveryStatus = "assigned"
	// DeliveryStatusPickedUp — водитель забрал заказ со склада.
	DeliveryStatusPickedUp DeliveryStatus = "picked_up"
	// DeliveryStatusInTransit — водитель в пути к клиенту.
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	// DeliveryStatusArrived — водитель прибыл по адресу доставки.
	DeliveryStatusArrived DeliveryStatus = "arrived"
	// DeliveryStatusDelivered — заказ вручён; терминальный статус.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusFailed — доставка не удалась; терминальный статус.
	DeliveryStatusFailed DeliveryStatus = "failed"
	// DeliveryStatusReturned — заказ возвращён на склад; терминальный статус.
	DeliveryStatusReturned DeliveryStatus = "returned"
)

// deliveryPredecessor задаёт единственный допустимый предшествующий статус
// для каждого прямого перехода цепочки assigned -> ... -> delivered.
var deliveryPredecessor = map[DeliveryStatus]DeliveryStatus{
	DeliveryStatusPickedUp:  DeliveryStatusAssigned,
	DeliveryStatusInTransit: DeliveryStatusPickedUp,
	DeliveryStatusArrived:   DeliveryStatusInTransit,
	DeliveryStatusDelivered: DeliveryStatusArrived,
}

// Valid проверяет статус доставки.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPendingAssignment, DeliveryStatusAssigned, DeliveryStatusPickedUp,
		DeliveryStatusInTransit, DeliveryStatusArrived, DeliveryStatusDelivered,
		DeliveryStatusFailed, DeliveryStatusReturned:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус конечным.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusReturned:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода s -> next. Прямая цепочка
// требует ровно одного предшественника; failed и returned достижимы из любого
// нетерминального in-flight статуса.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case DeliveryStatusFailed, DeliveryStatusReturned:
		return true
	case DeliveryStatusAssigned:
		return s == DeliveryStatusPendingAssignment
	default:
		pred, ok := deliveryPredecessor[next]
		return ok && pred == s
	}
}

// Coordinates — географические координаты точки.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Delivery описывает доставку одного заказа. Связь с заказом 1:1, запись
// создаётся лениво при первом назначении водителя.
type Delivery struct {
	ID       string
	OrderID  string
	DriverID string // пустой, пока водитель не назначен
	Status   DeliveryStatus

	AssignedAt  time.Time
	PickedUpAt  time.Time
	DeliveredAt time.Time

	Current             Coordinates
	Destination         Coordinates
	EstimatedDistanceKm float64

	Notes    string
	ProofURL string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DriverStatus описывает доступность водителя.
type DriverStatus string

const (
	DriverStatusAvailable  DriverStatus = "available"
	DriverStatusOnDelivery DriverStatus = "on_delivery"
	DriverStatusOffDuty    DriverStatus = "off_duty"
	DriverStatusOnBreak    DriverStatus = "on_break"
)

// Valid проверяет статус водителя.
func (s DriverStatus) Valid() bool {
	switch s {
	case DriverStatusAvailable, DriverStatusOnDelivery, DriverStatusOffDuty, DriverStatusOnBreak:
		return true
	default:
		return false
	}
}

// Driver описывает водителя, закреплённого за складом.
type Driver struct {
	ID            string
	Name          string
	DepotID       string
	LicenseNumber string
	VehicleNumber string
	Status        DriverStatus

	Current        Coordinates
	LastLocationAt time.Time

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
