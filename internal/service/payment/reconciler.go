package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
)

const defaultJournalTTL = 24 * time.Hour

// GatewayConfig содержит реквизиты платёжного шлюза.
type GatewayConfig struct {
	MerchantID     string
	MerchantSecret string
	CheckoutURL    string
	NotifyURL      string
	ReturnURL      string
	CancelURL      string
	// JournalTTL — время жизни записи журнала уведомлений.
	JournalTTL time.Duration
}

// OrderConfirmer подтверждает заказ после успешной оплаты.
type OrderConfirmer interface {
	ConfirmOrder(orderID string) (domain.Order, error)
}

// GatewayForm — поля формы, отправляемой клиентом на hosted-страницу шлюза.
type GatewayForm struct {
	CheckoutURL    string
	MerchantID     string
	GatewayOrderID string
	Items          string
	Amount         string
	Currency       string
	Hash           string
	FirstName      string
	Email          string
	Phone          string
	Address        string
	ReturnURL      string
	CancelURL      string
	NotifyURL      string
	// Custom1/Custom2 возвращаются шлюзом как есть и несут внутренние ссылки.
	Custom1 string
	Custom2 string
}

// Notification — разобранное уведомление шлюза (server-to-server callback).
type Notification struct {
	MerchantID       string
	GatewayOrderID   string
	GatewayPaymentID string
	Amount           string
	Currency         string
	StatusCode       int32
	Signature        string
	StatusMessage    string
	Method           string
	CardHolderName   string
	CardNo           string
	CardExpiry       string
	CustomerToken    string
	RecurringToken   string
}

// Reconciler принимает уведомления платёжного шлюза и сводит их с платежами
// и заказами.
type Reconciler struct {
	payments domain.PaymentRepository
	orders   domain.OrderRepository
	journal  domain.NotificationJournal
	outbox   domain.OutboxRepository
	confirm  OrderConfirmer
	config   GatewayConfig
	logger   *log.Entry
	metrics  *metrics.FulfillmentMetrics
}

// ReconcilerOptions настраивает Reconciler.
type ReconcilerOptions struct {
	Journal domain.NotificationJournal
	Outbox  domain.OutboxRepository
	Confirm OrderConfirmer
	Logger  *log.Entry
	Metrics *metrics.FulfillmentMetrics
}

// NewReconciler создаёт рабочий экземпляр.
func NewReconciler(
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	config GatewayConfig,
	opts ReconcilerOptions,
) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "payment-reconciler")
	}
	if config.JournalTTL <= 0 {
		config.JournalTTL = defaultJournalTTL
	}
	return &Reconciler{
		payments: payments,
		orders:   orders,
		journal:  opts.Journal,
		outbox:   opts.Outbox,
		confirm:  opts.Confirm,
		config:   config,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// Initiate создаёт платёж PENDING и возвращает поля формы шлюза.
func (r *Reconciler) Initiate(customerID, orderID, returnURL, cancelURL string) (GatewayForm, error) {
	order, err := r.orders.Get(orderID)
	if err != nil {
		return GatewayForm{}, err
	}
	if order.CustomerID != customerID {
		return GatewayForm{}, domain.ErrNotOrderOwner
	}
	if order.Status != domain.OrderStatusPending {
		return GatewayForm{}, domain.ErrInvalidStatusTransition
	}
	if order.PaymentMethod != domain.PaymentMethodOnline {
		return GatewayForm{}, domain.ErrPaymentMethodNotOnline
	}

	hasSuccess, err := r.payments.HasSuccessfulForOrder(orderID)
	if err != nil {
		return GatewayForm{}, err
	}
	if hasSuccess {
		return GatewayForm{}, domain.ErrDuplicateSuccessfulPayment
	}

	now := time.Now().UTC()
	// Суффикс с временем подачи делает gateway order id уникальным между
	// повторными попытками оплаты одного заказа.
	gatewayOrderID := fmt.Sprintf("%s-%d", order.OrderNumber, now.UnixMilli())
	amount := FormatAmountMinor(order.AmountMinor)

	pay := domain.Payment{
		ID:             uuid.NewString(),
		Reference:      domain.GeneratePaymentReference(now),
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		AmountMinor:    order.AmountMinor,
		Currency:       order.Currency,
		Status:         domain.PaymentStatusPending,
		GatewayOrderID: gatewayOrderID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.payments.Create(pay); err != nil {
		return GatewayForm{}, err
	}

	if returnURL == "" {
		returnURL = r.config.ReturnURL
	}
	if cancelURL == "" {
		cancelURL = r.config.CancelURL
	}

	r.logger.WithFields(log.Fields{
		"order_id":         order.ID,
		"payment_ref":      pay.Reference,
		"gateway_order_id": gatewayOrderID,
	}).Info("payment initiated")

	return GatewayForm{
		CheckoutURL:    r.config.CheckoutURL,
		MerchantID:     r.config.MerchantID,
		GatewayOrderID: gatewayOrderID,
		Items:          fmt.Sprintf("Order %s", order.OrderNumber),
		Amount:         amount,
		Currency:       order.Currency,
		Hash:           PaymentHash(r.config.MerchantID, gatewayOrderID, amount, order.Currency, r.config.MerchantSecret),
		FirstName:      order.CustomerName,
		Email:          order.CustomerEmail,
		Phone:          order.ContactNumber,
		Address:        order.DeliveryAddress,
		ReturnURL:      returnURL,
		CancelURL:      cancelURL,
		NotifyURL:      r.config.NotifyURL,
		Custom1:        order.ID,
		Custom2:        pay.Reference,
	}, nil
}

// HandleNotification обрабатывает server-to-server уведомление шлюза.
// Повторные доставки одного уведомления безопасны.
func (r *Reconciler) HandleNotification(n Notification) error {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordNotificationDuration(time.Since(start))
		}
	}()

	expected := NotificationHash(
		r.config.MerchantID,
		n.GatewayOrderID,
		n.Amount,
		n.Currency,
		strconv.FormatInt(int64(n.StatusCode), 10),
		r.config.MerchantSecret,
	)
	if !VerifySignature(expected, n.Signature) {
		r.logger.WithField("gateway_order_id", n.GatewayOrderID).Warn("notification signature mismatch")
		if r.metrics != nil {
			r.metrics.RecordNotificationRejected()
		}
		return domain.ErrHashMismatch
	}

	// Точный повтор уже обработанного уведомления гасится до любых записей.
	if r.journal != nil {
		seen, err := r.journal.Seen(n.GatewayOrderID, n.StatusCode, expected)
		if err != nil {
			r.logger.WithError(err).Warn("notification journal lookup failed")
		} else if seen {
			r.logger.WithField("gateway_order_id", n.GatewayOrderID).Info("duplicate notification short-circuited")
			if r.metrics != nil {
				r.metrics.RecordNotificationDuplicate()
			}
			return nil
		}
	}

	pay, err := r.payments.GetByGatewayOrderID(n.GatewayOrderID)
	if err != nil {
		return err
	}

	// Успешный платёж плюс повторный успешный код — no-op: подтверждение
	// заказа и побочные эффекты не повторяются.
	if pay.Status == domain.PaymentStatusSuccess && n.StatusCode == domain.GatewayCodeSuccess {
		r.recordJournal(n, expected, "noop")
		if r.metrics != nil {
			r.metrics.RecordNotificationDuplicate()
		}
		return nil
	}

	newStatus := domain.PaymentStatusFromGatewayCode(n.StatusCode)
	becameSuccess := newStatus == domain.PaymentStatusSuccess && pay.Status != domain.PaymentStatusSuccess

	// Заказ, уже оплаченный другой попыткой, второй SUCCESS не получает:
	// уведомление гасится так же, как повтор по тому же платежу.
	if becameSuccess {
		alreadyPaid, err := r.payments.HasSuccessfulForOrder(pay.OrderID)
		if err != nil {
			return err
		}
		if alreadyPaid {
			r.logger.WithFields(log.Fields{
				"gateway_order_id": n.GatewayOrderID,
				"order_id":         pay.OrderID,
			}).Info("order already has a successful payment, notification ignored")
			r.recordJournal(n, expected, "noop")
			if r.metrics != nil {
				r.metrics.RecordNotificationDuplicate()
			}
			return nil
		}
	}

	pay.GatewayPaymentID = n.GatewayPaymentID
	pay.StatusCode = n.StatusCode
	pay.StatusMessage = n.StatusMessage
	pay.Signature = n.Signature
	pay.Method = n.Method
	pay.CardHolderName = n.CardHolderName
	pay.CardNo = n.CardNo
	pay.CardExpiry = n.CardExpiry
	pay.CustomerToken = n.CustomerToken
	pay.RecurringToken = n.RecurringToken
	pay.Status = newStatus
	pay.UpdatedAt = time.Now().UTC()
	if becameSuccess {
		pay.CompletedAt = pay.UpdatedAt
	}

	if err := r.payments.Save(pay); err != nil {
		return err
	}

	r.logger.WithFields(log.Fields{
		"gateway_order_id": n.GatewayOrderID,
		"payment_ref":      pay.Reference,
		"status":           newStatus,
	}).Info("payment notification processed")
	if r.metrics != nil {
		r.metrics.RecordNotificationAccepted()
	}

	if becameSuccess {
		r.confirmOrder(pay.OrderID)
		r.emitEvent(&pay, kafka.EventTypePaymentSucceeded)
	} else if newStatus == domain.PaymentStatusFailed || newStatus == domain.PaymentStatusCancelled || newStatus == domain.PaymentStatusChargedback {
		r.emitEvent(&pay, kafka.EventTypePaymentFailed)
	}

	r.recordJournal(n, expected, string(newStatus))
	return nil
}

// ByReference возвращает платёж по ссылке.
func (r *Reconciler) ByReference(reference string) (domain.Payment, error) {
	return r.payments.GetByReference(reference)
}

// ByOrder возвращает платежи заказа.
func (r *Reconciler) ByOrder(orderID string) ([]domain.Payment, error) {
	return r.payments.ListByOrder(orderID)
}

// ByCustomer возвращает платежи клиента.
func (r *Reconciler) ByCustomer(customerID string) ([]domain.Payment, error) {
	return r.payments.ListByCustomer(customerID)
}

// confirmOrder переводит всё ещё ожидающий заказ в CONFIRMED. Ошибка здесь не
// откатывает платёж: деньги уже получены.
func (r *Reconciler) confirmOrder(orderID string) {
	if r.confirm == nil {
		return
	}

	order, err := r.orders.Get(orderID)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Error("order lookup after successful payment failed")
		return
	}
	if order.Status != domain.OrderStatusPending {
		r.logger.WithFields(log.Fields{
			"order_id": orderID,
			"status":   order.Status,
		}).Debug("order not pending, skipping confirmation")
		return
	}

	if _, err := r.confirm.ConfirmOrder(orderID); err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Error("order confirmation after payment failed")
	}
}

func (r *Reconciler) recordJournal(n Notification, signature, outcome string) {
	if r.journal == nil {
		return
	}

	now := time.Now().UTC()
	err := r.journal.Record(domain.NotificationRecord{
		ID:             uuid.NewString(),
		GatewayOrderID: n.GatewayOrderID,
		StatusCode:     n.StatusCode,
		Signature:      signature,
		Outcome:        outcome,
		TTLAt:          now.Add(r.config.JournalTTL),
		CreatedAt:      now,
	})
	if err != nil {
		r.logger.WithError(err).Warn("failed to record notification journal entry")
	}
}

func (r *Reconciler) emitEvent(pay *domain.Payment, eventType kafka.EventType) {
	if r.outbox == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"payment_ref":      pay.Reference,
		"order_id":         pay.OrderID,
		"gateway_order_id": pay.GatewayOrderID,
		"status":           string(pay.Status),
		"amount_minor":     pay.AmountMinor,
		"currency":         pay.Currency,
		"ts":               time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		r.logger.WithError(err).Warn("failed to marshal outbox payload")
		return
	}

	if _, err := r.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   pay.OrderID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		r.logger.WithError(err).Warn("failed to enqueue outbox event")
		return
	}
	if r.metrics != nil {
		r.metrics.RecordOutboxEvent()
	}
}
