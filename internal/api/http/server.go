package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/service/delivery"
	"github.com/vladislavdragonenkov/dms/internal/service/inventory"
	"github.com/vladislavdragonenkov/dms/internal/service/order"
	"github.com/vladislavdragonenkov/dms/internal/service/payment"
)

// заголовок, из которого берётся идентификатор действующего лица.
// Аутентификация живёт выше по стеку; сюда приходит уже проверенный id.
const (
	headerCustomerID = "X-Customer-ID"
	headerActorID    = "X-Actor-ID"
)

// Server поднимает HTTP-поверхность сервиса: webhook платёжного шлюза и
// операции сотрудников/водителей поверх доменных сервисов.
type Server struct {
	app    *fiber.App
	logger *log.Entry

	orders     *order.Workflow
	payments   *payment.Reconciler
	stock      *inventory.Ledger
	deliveries *delivery.Dispatcher
	cart       domain.CartStore
}

// NewServer создаёт fiber-приложение с зарегистрированными маршрутами.
func NewServer(
	orders *order.Workflow,
	payments *payment.Reconciler,
	stock *inventory.Ledger,
	deliveries *delivery.Dispatcher,
	cart domain.CartStore,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "http-server")
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "dms",
			DisableStartupMessage: true,
		}),
		logger:     logger,
		orders:     orders,
		payments:   payments,
		stock:      stock,
		deliveries: deliveries,
		cart:       cart,
	}
	s.registerRoutes()

	return s
}

// App возвращает fiber-приложение; используется в тестах через app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen блокирует до остановки сервера.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api/v1")

	cart := api.Group("/cart")
	cart.Get("", s.cartItems)
	cart.Post("/items", s.addCartItem)
	cart.Delete("/items/:productID", s.removeCartItem)
	cart.Delete("", s.clearCart)

	orders := api.Group("/orders")
	orders.Post("", s.placeOrder)
	orders.Get("", s.listOrders)
	orders.Get("/number/:number", s.getOrderByNumber)
	orders.Get("/:id", s.getOrder)
	orders.Post("/:id/confirm", s.confirmOrder)
	orders.Post("/:id/cancel", s.cancelOrder)
	orders.Patch("/:id/status", s.updateOrderStatus)

	payments := api.Group("/payments")
	payments.Post("/initiate", s.initiatePayment)
	payments.Post("/notify", s.paymentNotify)
	payments.Get("/reference/:reference", s.getPaymentByReference)
	payments.Get("/order/:orderID", s.listPaymentsByOrder)

	stock := api.Group("/inventory")
	stock.Post("/adjust", s.adjustStock)
	stock.Post("/transfer", s.transferStock)
	stock.Get("/product/:productID/total", s.totalStock)
	stock.Get("/depot/:depotID", s.inventoryByDepot)
	stock.Get("/depot/:depotID/low", s.lowStock)
	stock.Get("/depot/:depotID/movements", s.depotMovements)
	stock.Get("/record/:recordID/movements", s.recordMovements)

	deliveries := api.Group("/deliveries")
	deliveries.Post("/assign", s.assignDelivery)
	deliveries.Get("/active", s.activeDeliveries)
	deliveries.Get("/order/:orderID", s.deliveryByOrder)
	deliveries.Get("/:id", s.getDelivery)
	deliveries.Post("/:id/pickup", s.pickupDelivery)
	deliveries.Post("/:id/start", s.startDelivery)
	deliveries.Post("/:id/arrive", s.arriveDelivery)
	deliveries.Post("/:id/complete", s.completeDelivery)
	deliveries.Post("/:id/fail", s.failDelivery)
	deliveries.Patch("/:id/status", s.updateDeliveryStatus)

	drivers := api.Group("/drivers")
	drivers.Get("/available", s.availableDrivers)
	drivers.Post("/:id/location", s.updateDriverLocation)
	drivers.Patch("/:id/status", s.updateDriverStatus)
}

// respondError переводит доменную ошибку в HTTP-статус.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := statusFromError(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrInventoryNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrDeliveryNotFound),
		errors.Is(err, domain.ErrDriverNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrNotOrderOwner):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrDuplicateSuccessfulPayment),
		errors.Is(err, domain.ErrDriverNotAvailable),
		errors.Is(err, domain.ErrVersionConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrHashMismatch):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrPaymentMethodNotOnline),
		errors.Is(err, domain.ErrSameDepotTransfer),
		errors.Is(err, domain.ErrMovementKindInvalid),
		errors.Is(err, domain.ErrMovementQtyInvalid):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func customerID(c *fiber.Ctx) string {
	return c.Get(headerCustomerID)
}

func actorID(c *fiber.Ctx) string {
	if id := c.Get(headerActorID); id != "" {
		return id
	}
	return "staff"
}
