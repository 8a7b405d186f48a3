package integration

import (
	"strconv"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/service/delivery"
	"github.com/vladislavdragonenkov/dms/internal/service/inventory"
	"github.com/vladislavdragonenkov/dms/internal/service/order"
	"github.com/vladislavdragonenkov/dms/internal/service/payment"
	"github.com/vladislavdragonenkov/dms/internal/storage/memory"
)

const (
	lifecycleMerchantID = "1211149"
	lifecycleSecret     = "TESTSECRET"
)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказа: размещение,
// оплату через webhook шлюза, назначение доставки и доведение до вручения.
type OrderLifecycleTestSuite struct {
	suite.Suite
	orders     domain.OrderRepository
	payments   domain.PaymentRepository
	inventory  domain.InventoryRepository
	deliveries domain.DeliveryRepository
	drivers    domain.DriverRepository

	cart       domain.CartStore
	ledger     *inventory.Ledger
	workflow   *order.Workflow
	reconciler *payment.Reconciler
	dispatcher *delivery.Dispatcher
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.orders = memory.NewOrderRepository()
	suite.payments = memory.NewPaymentRepository()
	suite.inventory = memory.NewInventoryRepository()
	suite.deliveries = memory.NewDeliveryRepository()
	suite.drivers = memory.NewDriverRepository()
	outbox := memory.NewOutboxRepository()
	journal := memory.NewNotificationJournal()

	suite.cart = memory.NewCartStore()
	suite.ledger = inventory.NewLedgerWithoutMetrics(suite.inventory, logger)
	suite.workflow = order.NewWorkflow(suite.orders, suite.ledger, suite.cart, outbox, order.Options{Logger: logger})
	suite.reconciler = payment.NewReconciler(suite.payments, suite.orders, payment.GatewayConfig{
		MerchantID:     lifecycleMerchantID,
		MerchantSecret: lifecycleSecret,
		CheckoutURL:    "https://sandbox.gateway.example/pay",
		NotifyURL:      "https://dms.example/api/v1/payments/notify",
	}, payment.ReconcilerOptions{
		Journal: journal,
		Outbox:  outbox,
		Confirm: suite.workflow,
		Logger:  logger,
	})
	suite.dispatcher = delivery.NewDispatcher(suite.deliveries, suite.drivers, suite.orders, delivery.Options{Logger: logger})
}

func (suite *OrderLifecycleTestSuite) seedStock(productID, depotID string, qty int32) {
	now := time.Now().UTC()
	err := suite.inventory.Create(domain.InventoryRecord{
		ID:             "inv-" + productID + "-" + depotID,
		ProductID:      productID,
		DepotID:        depotID,
		QuantityOnHand: qty,
		ReorderLevel:   2,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	require.NoError(suite.T(), err)
}

func (suite *OrderLifecycleTestSuite) seedDriver(id, depotID string) {
	now := time.Now().UTC()
	err := suite.drivers.Create(domain.Driver{
		ID:            id,
		Name:          "Ruwan Perera",
		DepotID:       depotID,
		LicenseNumber: "B1234567",
		VehicleNumber: "CAB-4321",
		Status:        domain.DriverStatusAvailable,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(suite.T(), err)
}

func (suite *OrderLifecycleTestSuite) fillCart(customerID string, items ...domain.CartItem) {
	for _, item := range items {
		require.NoError(suite.T(), suite.cart.Add(customerID, item))
	}
}

func (suite *OrderLifecycleTestSuite) placeOrder(customerID string) domain.Order {
	placed, err := suite.workflow.PlaceOrder(customerID, order.PlaceOrderRequest{
		CustomerName:    "Nimal Silva",
		CustomerEmail:   "nimal@example.com",
		DepotID:         "depot-1",
		Currency:        "LKR",
		PaymentMethod:   domain.PaymentMethodOnline,
		DeliveryAddress: "12 Galle Road, Colombo 03",
		ContactNumber:   "+94771234567",
	})
	require.NoError(suite.T(), err)
	return placed
}

// notifySuccess эмулирует server-to-server уведомление шлюза с валидной подписью.
func (suite *OrderLifecycleTestSuite) notify(form payment.GatewayForm, statusCode int32) error {
	sig := payment.NotificationHash(
		lifecycleMerchantID, form.GatewayOrderID, form.Amount, form.Currency,
		strconv.FormatInt(int64(statusCode), 10), lifecycleSecret,
	)
	return suite.reconciler.HandleNotification(payment.Notification{
		MerchantID:       lifecycleMerchantID,
		GatewayOrderID:   form.GatewayOrderID,
		GatewayPaymentID: "GW-98765",
		Amount:           form.Amount,
		Currency:         form.Currency,
		StatusCode:       statusCode,
		Signature:        sig,
		Method:           "VISA",
		StatusMessage:    "Successfully completed",
	})
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulFulfillmentLifecycle() {
	suite.seedStock("laptop-pro", "depot-1", 10)
	suite.seedStock("mouse-wireless", "depot-1", 10)
	suite.seedDriver("driver-1", "depot-1")
	suite.fillCart("customer-123",
		domain.CartItem{ProductID: "laptop-pro", SKU: "LAP-PRO", Name: "Laptop Pro", Qty: 1, UnitPriceMinor: 199900},
		domain.CartItem{ProductID: "mouse-wireless", SKU: "MOU-WL", Name: "Wireless Mouse", Qty: 2, UnitPriceMinor: 4999},
	)

	// 1. Размещаем заказ: сток списывается сразу, корзина очищается.
	placed := suite.placeOrder("customer-123")
	require.Equal(suite.T(), domain.OrderStatusPending, placed.Status)
	require.Equal(suite.T(), int64(209898), placed.AmountMinor)
	require.Len(suite.T(), placed.Items, 2)
	remaining, err := suite.cart.Items("customer-123")
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), remaining)

	total, err := suite.ledger.TotalStock("mouse-wireless")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(8), total)

	// 2. Инициируем платёж и обрабатываем успешное уведомление.
	form, err := suite.reconciler.Initiate("customer-123", placed.ID, "https://shop.example/return", "https://shop.example/cancel")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "2098.98", form.Amount)

	require.NoError(suite.T(), suite.notify(form, domain.GatewayCodeSuccess))

	payments, err := suite.payments.ListByOrder(placed.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), payments, 1)
	require.Equal(suite.T(), domain.PaymentStatusSuccess, payments[0].Status)

	confirmed, err := suite.orders.Get(placed.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusConfirmed, confirmed.Status)

	// 3. Назначаем доставку и проводим её до вручения.
	assigned, err := suite.dispatcher.Assign(placed.ID, "driver-1", "leave at reception", &domain.Coordinates{Lat: 6.9271, Lng: 79.8612})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.DeliveryStatusAssigned, assigned.Status)

	driver, err := suite.drivers.Get("driver-1")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.DriverStatusOnDelivery, driver.Status)

	ready, err := suite.orders.Get(placed.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusReadyForDelivery, ready.Status)

	_, err = suite.dispatcher.Pickup(assigned.ID)
	require.NoError(suite.T(), err)

	_, err = suite.dispatcher.Start(assigned.ID)
	require.NoError(suite.T(), err)

	inFlight, err := suite.orders.Get(placed.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusOutForDelivery, inFlight.Status)

	_, err = suite.dispatcher.Arrive(assigned.ID)
	require.NoError(suite.T(), err)

	done, err := suite.dispatcher.Complete(assigned.ID, "https://cdn.example/proof/123.jpg")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.DeliveryStatusDelivered, done.Status)

	// 4. Финальное состояние: заказ вручён, водитель снова свободен.
	final, err := suite.orders.Get(placed.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusDelivered, final.Status)
	require.False(suite.T(), final.ActualDeliveryDate.IsZero())

	driver, err = suite.drivers.Get("driver-1")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.DriverStatusAvailable, driver.Status)
}

func (suite *OrderLifecycleTestSuite) TestCancellationRestoresStock() {
	suite.seedStock("laptop-pro", "depot-1", 5)
	suite.fillCart("customer-456",
		domain.CartItem{ProductID: "laptop-pro", SKU: "LAP-PRO", Name: "Laptop Pro", Qty: 2, UnitPriceMinor: 199900},
	)

	placed := suite.placeOrder("customer-456")

	total, err := suite.ledger.TotalStock("laptop-pro")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(3), total)

	cancelled, err := suite.workflow.CancelOrder("customer-456", placed.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusCancelled, cancelled.Status)

	// Сток вернулся к исходному уровню.
	total, err = suite.ledger.TotalStock("laptop-pro")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(5), total)
}

func (suite *OrderLifecycleTestSuite) TestDuplicateWebhookConfirmsOnce() {
	suite.seedStock("laptop-pro", "depot-1", 5)
	suite.fillCart("customer-789",
		domain.CartItem{ProductID: "laptop-pro", SKU: "LAP-PRO", Name: "Laptop Pro", Qty: 1, UnitPriceMinor: 199900},
	)

	placed := suite.placeOrder("customer-789")
	form, err := suite.reconciler.Initiate("customer-789", placed.ID, "", "")
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.notify(form, domain.GatewayCodeSuccess))
	// Ретрай шлюза с тем же содержимым обязан быть no-op.
	require.NoError(suite.T(), suite.notify(form, domain.GatewayCodeSuccess))

	payments, err := suite.payments.ListByOrder(placed.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), payments, 1)
	require.Equal(suite.T(), domain.PaymentStatusSuccess, payments[0].Status)

	confirmed, err := suite.orders.Get(placed.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusConfirmed, confirmed.Status)
}

func (suite *OrderLifecycleTestSuite) TestFailedPaymentLeavesOrderPending() {
	suite.seedStock("laptop-pro", "depot-1", 5)
	suite.fillCart("customer-901",
		domain.CartItem{ProductID: "laptop-pro", SKU: "LAP-PRO", Name: "Laptop Pro", Qty: 1, UnitPriceMinor: 199900},
	)

	placed := suite.placeOrder("customer-901")
	form, err := suite.reconciler.Initiate("customer-901", placed.ID, "", "")
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.notify(form, domain.GatewayCodeFailed))

	payments, err := suite.payments.ListByOrder(placed.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), payments, 1)
	require.Equal(suite.T(), domain.PaymentStatusFailed, payments[0].Status)

	// Неуспешный платёж не двигает заказ: клиент может повторить оплату.
	pending, err := suite.orders.Get(placed.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusPending, pending.Status)
}

func (suite *OrderLifecycleTestSuite) TestInsufficientStockBlocksPlacement() {
	suite.seedStock("laptop-pro", "depot-1", 1)
	suite.fillCart("customer-234",
		domain.CartItem{ProductID: "laptop-pro", SKU: "LAP-PRO", Name: "Laptop Pro", Qty: 3, UnitPriceMinor: 199900},
	)

	_, err := suite.workflow.PlaceOrder("customer-234", order.PlaceOrderRequest{
		CustomerName:  "Nimal Silva",
		CustomerEmail: "nimal@example.com",
		DepotID:       "depot-1",
		Currency:      "LKR",
		PaymentMethod: domain.PaymentMethodOnline,
	})
	require.ErrorIs(suite.T(), err, domain.ErrInsufficientStock)

	// Сток не тронут, заказ не создан.
	total, statErr := suite.ledger.TotalStock("laptop-pro")
	require.NoError(suite.T(), statErr)
	require.Equal(suite.T(), int32(1), total)

	orders, listErr := suite.orders.ListByCustomer("customer-234", 0)
	require.NoError(suite.T(), listErr)
	require.Empty(suite.T(), orders)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
