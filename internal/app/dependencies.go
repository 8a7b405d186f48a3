package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/storage/memory"
	"github.com/vladislavdragonenkov/dms/internal/storage/postgres"
)

// Dependencies содержит хранилища, от которых строятся доменные сервисы.
type Dependencies struct {
	Orders     domain.OrderRepository
	Payments   domain.PaymentRepository
	Inventory  domain.InventoryRepository
	Deliveries domain.DeliveryRepository
	Drivers    domain.DriverRepository
	Outbox     domain.OutboxRepository
	Journal    domain.NotificationJournal
	Cart       domain.CartStore

	// Store не nil только для postgres-драйвера; нужен для health-check и Close.
	Store *postgres.Store

	Logger *log.Entry
}

// NewDependencies собирает хранилища по конфигурации. memory-драйвер не
// требует внешних сервисов и используется для разработки и тестов.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		// Корзина живёт в памяти при любом драйвере: это рабочее состояние
		// покупателя, а не учётные данные.
		Cart:   memory.NewCartStore(),
		Logger: logger,
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		deps.Orders = memory.NewOrderRepository()
		deps.Payments = memory.NewPaymentRepository()
		deps.Inventory = memory.NewInventoryRepository()
		deps.Deliveries = memory.NewDeliveryRepository()
		deps.Drivers = memory.NewDriverRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Journal = memory.NewNotificationJournal()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires postgres_dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.Store = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Payments = postgres.NewPaymentRepository(store)
		deps.Inventory = postgres.NewInventoryRepository(store)
		deps.Deliveries = postgres.NewDeliveryRepository(store)
		deps.Drivers = postgres.NewDriverRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Journal = postgres.NewNotificationJournal(store)
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	return deps, nil
}

// Close освобождает ресурсы хранилищ.
func (d *Dependencies) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}
