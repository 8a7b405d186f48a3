package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/service/order"
)

type placeOrderBody struct {
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	DepotID         string `json:"depot_id"`
	Currency        string `json:"currency"`
	PaymentMethod   string `json:"payment_method"`
	DeliveryAddress string `json:"delivery_address"`
	ContactNumber   string `json:"contact_number"`
	Notes           string `json:"notes"`
}

func (s *Server) placeOrder(c *fiber.Ctx) error {
	customer := customerID(c)
	if customer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer id is required"})
	}

	var body placeOrderBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	placed, err := s.orders.PlaceOrder(customer, order.PlaceOrderRequest{
		CustomerName:    body.CustomerName,
		CustomerEmail:   body.CustomerEmail,
		DepotID:         body.DepotID,
		Currency:        body.Currency,
		PaymentMethod:   domain.PaymentMethod(body.PaymentMethod),
		DeliveryAddress: body.DeliveryAddress,
		ContactNumber:   body.ContactNumber,
		Notes:           body.Notes,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(placed)
}

func (s *Server) listOrders(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))

	if customer := customerID(c); customer != "" {
		orders, err := s.orders.ListByCustomer(customer, limit)
		if err != nil {
			return s.respondError(c, err)
		}
		return c.JSON(orders)
	}

	if status := c.Query("status"); status != "" {
		orders, err := s.orders.ListByStatus(domain.OrderStatus(status))
		if err != nil {
			return s.respondError(c, err)
		}
		return c.JSON(orders)
	}

	if depotID := c.Query("depot_id"); depotID != "" {
		orders, err := s.orders.ListByDepot(depotID)
		if err != nil {
			return s.respondError(c, err)
		}
		return c.JSON(orders)
	}

	orders, err := s.orders.List(limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(orders)
}

func (s *Server) getOrder(c *fiber.Ctx) error {
	got, err := s.orders.Get(customerID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(got)
}

func (s *Server) getOrderByNumber(c *fiber.Ctx) error {
	got, err := s.orders.GetByNumber(c.Params("number"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(got)
}

func (s *Server) confirmOrder(c *fiber.Ctx) error {
	confirmed, err := s.orders.ConfirmOrder(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(confirmed)
}

func (s *Server) cancelOrder(c *fiber.Ctx) error {
	cancelled, err := s.orders.CancelOrder(customerID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(cancelled)
}

type updateStatusBody struct {
	Status string `json:"status"`
}

func (s *Server) updateOrderStatus(c *fiber.Ctx) error {
	var body updateStatusBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	updated, err := s.orders.UpdateStatus(c.Params("id"), domain.OrderStatus(body.Status))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(updated)
}
