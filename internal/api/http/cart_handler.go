package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

type cartItemBody struct {
	ProductID      string `json:"product_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Qty            int32  `json:"qty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

func (s *Server) cartItems(c *fiber.Ctx) error {
	customer := customerID(c)
	if customer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer id is required"})
	}

	items, err := s.cart.Items(customer)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(items)
}

func (s *Server) addCartItem(c *fiber.Ctx) error {
	customer := customerID(c)
	if customer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer id is required"})
	}

	var body cartItemBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "product_id is required"})
	}

	if err := s.cart.Add(customer, domain.CartItem{
		ProductID:      body.ProductID,
		SKU:            body.SKU,
		Name:           body.Name,
		Qty:            body.Qty,
		UnitPriceMinor: body.UnitPriceMinor,
	}); err != nil {
		return s.respondError(c, err)
	}

	items, err := s.cart.Items(customer)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(items)
}

func (s *Server) removeCartItem(c *fiber.Ctx) error {
	customer := customerID(c)
	if customer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer id is required"})
	}

	if err := s.cart.Remove(customer, c.Params("productID")); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) clearCart(c *fiber.Ctx) error {
	customer := customerID(c)
	if customer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer id is required"})
	}

	if err := s.cart.Clear(customer); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
