package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

type adjustStockBody struct {
	ProductID string `json:"product_id"`
	DepotID   string `json:"depot_id"`
	Kind      string `json:"kind"`
	Quantity  int32  `json:"quantity"`
	Reason    string `json:"reason"`
}

func (s *Server) adjustStock(c *fiber.Ctx) error {
	var body adjustStockBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	movement, err := s.stock.Adjust(
		body.ProductID, body.DepotID,
		domain.MovementKind(body.Kind), body.Quantity,
		actorID(c), body.Reason,
	)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(movement)
}

type transferStockBody struct {
	ProductID   string `json:"product_id"`
	FromDepotID string `json:"from_depot_id"`
	ToDepotID   string `json:"to_depot_id"`
	Quantity    int32  `json:"quantity"`
	Reason      string `json:"reason"`
}

func (s *Server) transferStock(c *fiber.Ctx) error {
	var body transferStockBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	movements, err := s.stock.Transfer(
		body.ProductID, body.FromDepotID, body.ToDepotID,
		body.Quantity, actorID(c), body.Reason,
	)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(movements)
}

func (s *Server) totalStock(c *fiber.Ctx) error {
	total, err := s.stock.TotalStock(c.Params("productID"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"product_id": c.Params("productID"), "total": total})
}

func (s *Server) inventoryByDepot(c *fiber.Ctx) error {
	records, err := s.stock.InventoryByDepot(c.Params("depotID"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(records)
}

func (s *Server) lowStock(c *fiber.Ctx) error {
	records, err := s.stock.LowStock(c.Params("depotID"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(records)
}

func (s *Server) depotMovements(c *fiber.Ctx) error {
	movements, err := s.stock.DepotMovements(c.Params("depotID"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(movements)
}

func (s *Server) recordMovements(c *fiber.Ctx) error {
	movements, err := s.stock.MovementHistory(c.Params("recordID"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(movements)
}
