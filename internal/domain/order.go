package domain

import (
	"fmt"
	"time"
)

// OrderStatus описывает жизненный цикл заказа в системе дистрибуции.
type OrderStatus string

const (
	// OrderStatusPending — заказ размещён, сток зарезервирован, оплата не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — оплата подтверждена или заказ подтверждён сотрудником.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ комплектуется на складе.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusReadyForDelivery — заказ собран и назначен водителю.
	OrderStatusReadyForDelivery OrderStatus = "ready_for_delivery"
	// OrderStatusOutForDelivery — водитель забрал заказ и везёт его клиенту.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered — заказ доставлен; терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до доставки; терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusFailedDelivery — доставка не удалась; терминальный статус.
	OrderStatusFailedDelivery OrderStatus = "failed_delivery"
)

// orderTransitions задаёт допустимые переходы между статусами заказа.
// Побочные эффекты переходов живут в сервисном слое; здесь только допустимость.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:        {OrderStatusProcessing, OrderStatusReadyForDelivery, OrderStatusCancelled},
	OrderStatusProcessing:       {OrderStatusReadyForDelivery},
	OrderStatusReadyForDelivery: {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery:   {OrderStatusDelivered, OrderStatusFailedDelivery},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusReadyForDelivery, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailedDelivery:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус конечным.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailedDelivery:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость прямого перехода s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodOnline — онлайн-оплата через платёжный шлюз.
	PaymentMethodOnline PaymentMethod = "online_payment"
	// PaymentMethodCashOnDelivery — оплата наличными при доставке.
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Valid проверяет способ оплаты.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodOnline || m == PaymentMethodCashOnDelivery
}

// OrderLineItem — одна позиция заказа. Цена фиксируется на момент размещения
// и не меняется при последующих изменениях каталога.
type OrderLineItem struct {
	ID             string
	ProductID      string
	SKU            string
	Name           string
	Qty            int32
	UnitPriceMinor int64
	SubtotalMinor  int64
	CreatedAt      time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	OrderNumber     string
	CustomerID      string
	CustomerName    string
	CustomerEmail   string
	DepotID         string
	Status          OrderStatus
	Currency        string
	AmountMinor     int64
	PaymentMethod   PaymentMethod
	DeliveryAddress string
	ContactNumber   string
	Notes           string
	OrderDate       time.Time
	// EstimatedDeliveryDate и ActualDeliveryDate нулевые, пока не выставлены.
	EstimatedDeliveryDate time.Time
	ActualDeliveryDate    time.Time
	Items                 []OrderLineItem
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// GenerateOrderNumber формирует человекочитаемый номер заказа.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d", now.UnixMilli())
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.SubtotalMinor != int64(item.Qty)*item.UnitPriceMinor {
			errs = append(errs, ErrItemSubtotalMismatch)
		}
		calc += item.SubtotalMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
