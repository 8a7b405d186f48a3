package notify

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

const (
	defaultQueueSize       = 256
	defaultBreakerTimeout  = 30 * time.Second
	defaultBreakerFailures = 5
)

var (
	invoicesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dms_invoices_sent_total",
		Help: "Total number of invoice send attempts grouped by result.",
	}, []string{"result"})
	invoicesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dms_invoices_dropped_total",
		Help: "Total number of invoices dropped because the queue was full.",
	})
	invoiceQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dms_invoice_queue_depth",
		Help: "Current number of invoices waiting to be sent.",
	})
)

// WorkerOptions задаёт параметры invoice worker.
type WorkerOptions struct {
	Logger          *log.Entry
	QueueSize       int
	BreakerTimeout  time.Duration
	BreakerFailures uint32
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithQueueSize задаёт ёмкость очереди счетов.
func WithQueueSize(size int) Option {
	return func(opts *WorkerOptions) {
		opts.QueueSize = size
	}
}

// WithBreakerTimeout задаёт паузу circuit breaker перед half-open.
func WithBreakerTimeout(timeout time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.BreakerTimeout = timeout
	}
}

// WithBreakerFailures задаёт число подряд идущих ошибок до открытия breaker.
func WithBreakerFailures(failures uint32) Option {
	return func(opts *WorkerOptions) {
		opts.BreakerFailures = failures
	}
}

// Worker асинхронно рендерит и отправляет счета по подтверждённым заказам.
// Отправка идёт через circuit breaker: при деградации почтового шлюза
// воркер перестаёт долбить его и пропускает счета с логом вместо ошибки.
type Worker struct {
	generator domain.InvoiceGenerator
	sender    domain.EmailSender
	logger    *log.Entry
	queue     chan domain.Order
	breaker   *gobreaker.CircuitBreaker
}

var _ domain.InvoiceDispatcher = (*Worker)(nil)

// NewWorker создаёт invoice worker.
func NewWorker(generator domain.InvoiceGenerator, sender domain.EmailSender, options ...Option) *Worker {
	opts := WorkerOptions{
		QueueSize:       defaultQueueSize,
		BreakerTimeout:  defaultBreakerTimeout,
		BreakerFailures: defaultBreakerFailures,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "invoice-worker")
	}

	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = defaultBreakerTimeout
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = defaultBreakerFailures
	}

	failures := opts.BreakerFailures
	settings := gobreaker.Settings{
		Name:    "invoice-mailer",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &Worker{
		generator: generator,
		sender:    sender,
		logger:    logger,
		queue:     make(chan domain.Order, opts.QueueSize),
		breaker:   gobreaker.NewCircuitBreaker(settings),
	}
}

// EnqueueInvoice ставит заказ в очередь на выставление счёта. Вызов не
// блокирует: при переполненной очереди счёт отбрасывается с логом.
func (w *Worker) EnqueueInvoice(order domain.Order) {
	select {
	case w.queue <- order:
		invoiceQueueDepth.Set(float64(len(w.queue)))
	default:
		invoicesDropped.Inc()
		w.logger.WithFields(log.Fields{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		}).Warn("invoice queue is full, dropping invoice")
	}
}

// Run обрабатывает очередь счетов до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.generator == nil || w.sender == nil {
		w.logger.Warn("invoice worker is disabled: generator or sender is nil")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case order := <-w.queue:
			invoiceQueueDepth.Set(float64(len(w.queue)))
			w.process(order)
		}
	}
}

// ProcessQueued синхронно выгребает накопившиеся счета. Используется
// в тестах и при graceful shutdown.
func (w *Worker) ProcessQueued() {
	for {
		select {
		case order := <-w.queue:
			invoiceQueueDepth.Set(float64(len(w.queue)))
			w.process(order)
		default:
			return
		}
	}
}

func (w *Worker) process(order domain.Order) {
	logger := w.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})

	invoice, err := w.generator.Generate(order)
	if err != nil {
		invoicesSent.WithLabelValues("generate_error").Inc()
		logger.WithError(err).Warn("failed to generate invoice")
		return
	}

	_, err = w.breaker.Execute(func() (interface{}, error) {
		return nil, w.sender.SendInvoice(order.CustomerEmail, order.CustomerName, order.OrderNumber, invoice)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			invoicesSent.WithLabelValues("breaker_open").Inc()
			logger.Warn("invoice mailer circuit breaker is open, skipping invoice")
			return
		}
		invoicesSent.WithLabelValues("send_error").Inc()
		logger.WithError(err).Warn("failed to send invoice")
		return
	}

	invoicesSent.WithLabelValues("success").Inc()
	logger.Info("invoice sent")
}
