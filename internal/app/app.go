package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	httpapi "github.com/vladislavdragonenkov/dms/internal/api/http"
	healthcheck "github.com/vladislavdragonenkov/dms/internal/health"
	"github.com/vladislavdragonenkov/dms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
	"github.com/vladislavdragonenkov/dms/internal/service/delivery"
	"github.com/vladislavdragonenkov/dms/internal/service/inventory"
	"github.com/vladislavdragonenkov/dms/internal/service/invoice"
	"github.com/vladislavdragonenkov/dms/internal/service/journal"
	"github.com/vladislavdragonenkov/dms/internal/service/mail"
	"github.com/vladislavdragonenkov/dms/internal/service/notify"
	"github.com/vladislavdragonenkov/dms/internal/service/order"
	"github.com/vladislavdragonenkov/dms/internal/service/outbox"
	"github.com/vladislavdragonenkov/dms/internal/service/payment"
	"github.com/vladislavdragonenkov/dms/internal/version"
)

// Run собирает все компоненты сервиса и блокирует до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		// Сервис работоспособен без Kafka: outbox-сообщения копятся до
		// появления брокера.
		logger.WithError(err).Warn("starting without kafka producer")
	}
	defer closeKafka(kafkaProducer, logger)

	m := metrics.NewFulfillmentMetrics()

	// Фоновая отправка счетов, только если настроен SMTP.
	var invoiceWorker *notify.Worker
	if cfg.SMTPHost != "" {
		invoiceWorker = notify.NewWorker(
			invoice.NewHTMLGenerator(),
			mail.NewSMTPSender(mail.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				From:     cfg.SMTPFrom,
				Password: cfg.SMTPPassword,
			}, logger.WithField("component", "smtp-sender")),
			notify.WithLogger(logger.WithField("component", "invoice-mailer")),
			notify.WithQueueSize(cfg.InvoiceQueueSize),
		)
	} else {
		logger.Info("smtp is not configured, invoice emails are disabled")
	}

	ledger := inventory.NewLedger(deps.Inventory, logger.WithField("component", "inventory-ledger")).
		WithOutbox(deps.Outbox)

	workflowOpts := order.Options{
		Logger:        logger.WithField("component", "order-workflow"),
		Metrics:       m,
		AllowOverride: cfg.OrderAllowOverride,
	}
	if invoiceWorker != nil {
		workflowOpts.Invoices = invoiceWorker
	}
	workflow := order.NewWorkflow(deps.Orders, ledger, deps.Cart, deps.Outbox, workflowOpts)

	reconciler := payment.NewReconciler(deps.Payments, deps.Orders, payment.GatewayConfig{
		MerchantID:     cfg.GatewayMerchantID,
		MerchantSecret: cfg.GatewayMerchantSecret,
		CheckoutURL:    cfg.GatewayCheckoutURL,
		NotifyURL:      cfg.GatewayNotifyURL,
		ReturnURL:      cfg.GatewayReturnURL,
		CancelURL:      cfg.GatewayCancelURL,
		JournalTTL:     cfg.JournalTTL,
	}, payment.ReconcilerOptions{
		Journal: deps.Journal,
		Outbox:  deps.Outbox,
		Confirm: workflow,
		Logger:  logger.WithField("component", "payment-reconciler"),
		Metrics: m,
	})

	dispatcher := delivery.NewDispatcher(deps.Deliveries, deps.Drivers, deps.Orders, delivery.Options{
		Outbox:        deps.Outbox,
		Logger:        logger.WithField("component", "delivery-dispatcher"),
		Metrics:       m,
		AllowOverride: cfg.DeliveryAllowOverride,
	})

	// Фоновые воркеры.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if invoiceWorker != nil {
		go invoiceWorker.Run(workerCtx)
	}

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer)
		outboxWorker := outbox.NewWorker(deps.Outbox, publisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		go outboxWorker.Run(workerCtx)
	}

	cleanupWorker := journal.NewCleanupWorker(deps.Journal,
		journal.WithLogger(logger.WithField("component", "journal-cleanup")),
		journal.WithInterval(cfg.JournalCleanupInterval),
		journal.WithBatchSize(cfg.JournalCleanupBatchSize),
	)
	go cleanupWorker.Run(workerCtx)

	// HTTP-поверхности: API и отдельный порт для метрик и health-check.
	server := httpapi.NewServer(workflow, reconciler, ledger, dispatcher, deps.Cart,
		logger.WithField("component", "http-server"))

	healthHandler := healthcheck.NewHandler(version.String())
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Store.Ping(pingCtx)
		}))
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- server.Listen(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown with error")
		}
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
