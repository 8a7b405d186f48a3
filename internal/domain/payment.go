package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// PaymentStatus описывает состояние платежа в системе.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж инициирован, уведомление от шлюза не получено.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusProcessing — шлюз принял платёж в обработку.
	PaymentStatusProcessing PaymentStatus = "processing"
	// PaymentStatusSuccess — платёж успешно завершён. Не более одного на заказ.
	PaymentStatusSuccess PaymentStatus = "success"
	// PaymentStatusCancelled — клиент отменил оплату на стороне шлюза.
	PaymentStatusCancelled PaymentStatus = "cancelled"
	// PaymentStatusFailed — шлюз отклонил платёж.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusChargedback — по платежу оформлен chargeback.
	PaymentStatusChargedback PaymentStatus = "chargedback"
)

// Коды статусов платёжного шлюза.
const (
	GatewayCodeSuccess     int32 = 2
	GatewayCodeProcessing  int32 = 0
	GatewayCodeCancelled   int32 = -1
	GatewayCodeFailed      int32 = -2
	GatewayCodeChargedback int32 = -3
)

// PaymentStatusFromGatewayCode переводит код статуса шлюза во внутренний статус.
// Неизвестные коды трактуются как pending.
func PaymentStatusFromGatewayCode(code int32) PaymentStatus {
	switch code {
	case GatewayCodeSuccess:
		return PaymentStatusSuccess
	case GatewayCodeProcessing:
		return PaymentStatusProcessing
	case GatewayCodeCancelled:
		return PaymentStatusCancelled
	case GatewayCodeFailed:
		return PaymentStatusFailed
	case GatewayCodeChargedback:
		return PaymentStatusChargedback
	default:
		return PaymentStatusPending
	}
}

// Payment описывает платёж, связанный с заказом.
// GatewayOrderID уникален для каждой попытки оплаты и служит ключом корреляции
// входящих уведомлений шлюза.
type Payment struct {
	ID          string
	Reference   string
	OrderID     string
	CustomerID  string
	AmountMinor int64
	Currency    string
	Status      PaymentStatus

	// Поля, заполняемые из уведомления шлюза.
	GatewayOrderID   string
	GatewayPaymentID string
	StatusCode       int32
	StatusMessage    string
	Signature        string
	Method           string
	CardHolderName   string
	CardNo           string
	CardExpiry       string
	CustomerToken    string
	RecurringToken   string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// GeneratePaymentReference формирует уникальную ссылку платежа.
func GeneratePaymentReference(now time.Time) string {
	return fmt.Sprintf("PAY-%d-%04d", now.UnixMilli(), rand.Intn(10000))
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.Reference == "" {
		errs = append(errs, ErrPaymentReferenceRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}

	return errs
}

// NotificationRecord — журнальная запись обработанного уведомления шлюза.
// Точный повтор уже обработанного уведомления отсекается до каких-либо записей.
type NotificationRecord struct {
	ID             string
	GatewayOrderID string
	StatusCode     int32
	Signature      string
	Outcome        string
	TTLAt          time.Time
	CreatedAt      time.Time
}
