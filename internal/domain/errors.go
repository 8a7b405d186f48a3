package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия subtotal позиции произведению qty * price.
	ErrItemSubtotalMismatch = errors.New("item subtotal does not match qty * unit price")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка неподдерживаемого способа оплаты.
	ErrPaymentMethodInvalid = errors.New("payment method is not supported")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInventoryNotFound возвращается, если складская запись не найдена.
	ErrInventoryNotFound = errors.New("inventory record not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrDeliveryNotFound возвращается, если доставка не найдена.
	ErrDeliveryNotFound = errors.New("delivery not found")
	// ErrDriverNotFound возвращается, если водитель не найден.
	ErrDriverNotFound = errors.New("driver not found")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")

	// ErrEmptyCart — попытка разместить заказ с пустой корзиной.
	ErrEmptyCart = errors.New("cannot place order with empty cart")
	// ErrNotOrderOwner — заказ принадлежит другому клиенту.
	ErrNotOrderOwner = errors.New("order does not belong to this customer")
	// ErrInvalidStatusTransition — недопустимый переход статуса.
	ErrInvalidStatusTransition = errors.New("status transition is not allowed")

	// ErrInsufficientStock — нехватка стока. Детали несёт InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrSameDepotTransfer — перемещение внутри одного склада запрещено.
	ErrSameDepotTransfer = errors.New("cannot transfer stock to the same depot")
	// ErrInventoryRecordRequired — не указана складская запись движения.
	ErrInventoryRecordRequired = errors.New("inventory record id is required")
	// ErrMovementKindInvalid — неподдерживаемый тип движения стока.
	ErrMovementKindInvalid = errors.New("movement kind is not supported")
	// ErrMovementQtyInvalid — количество движения должно быть > 0.
	ErrMovementQtyInvalid = errors.New("movement qty must be greater than zero")

	// ErrOrderIDRequired — не указан идентификатор заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// ErrPaymentReferenceRequired — не указана ссылка платежа.
	ErrPaymentReferenceRequired = errors.New("payment reference is required")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")
	// ErrPaymentMethodNotOnline — оплату через шлюз можно инициировать только
	// для заказов со способом оплаты online_payment.
	ErrPaymentMethodNotOnline = errors.New("order payment method is not online_payment")
	// ErrDuplicateSuccessfulPayment — по заказу уже есть успешный платёж.
	ErrDuplicateSuccessfulPayment = errors.New("successful payment already exists for this order")
	// ErrHashMismatch — подпись уведомления шлюза не прошла проверку.
	ErrHashMismatch = errors.New("payment notification hash mismatch")

	// ErrDriverNotAvailable — водитель занят или вне смены.
	ErrDriverNotAvailable = errors.New("driver is not available")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError несёт детали нехватки стока по конкретному товару.
// Сопоставляется с ErrInsufficientStock через errors.Is.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

// Error реализует error.
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is позволяет errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
