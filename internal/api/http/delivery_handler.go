package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

type assignDeliveryBody struct {
	OrderID     string `json:"order_id"`
	DriverID    string `json:"driver_id"`
	Notes       string `json:"notes"`
	Destination *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"destination"`
}

func (s *Server) assignDelivery(c *fiber.Ctx) error {
	var body assignDeliveryBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	var destination *domain.Coordinates
	if body.Destination != nil {
		destination = &domain.Coordinates{Lat: body.Destination.Lat, Lng: body.Destination.Lng}
	}

	assigned, err := s.deliveries.Assign(body.OrderID, body.DriverID, body.Notes, destination)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(assigned)
}

func (s *Server) getDelivery(c *fiber.Ctx) error {
	got, err := s.deliveries.Get(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(got)
}

func (s *Server) deliveryByOrder(c *fiber.Ctx) error {
	got, err := s.deliveries.ByOrder(c.Params("orderID"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(got)
}

func (s *Server) activeDeliveries(c *fiber.Ctx) error {
	active, err := s.deliveries.Active()
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(active)
}

func (s *Server) pickupDelivery(c *fiber.Ctx) error {
	updated, err := s.deliveries.Pickup(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) startDelivery(c *fiber.Ctx) error {
	updated, err := s.deliveries.Start(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) arriveDelivery(c *fiber.Ctx) error {
	updated, err := s.deliveries.Arrive(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(updated)
}

type completeDeliveryBody struct {
	ProofURL string `json:"proof_url"`
}

func (s *Server) completeDelivery(c *fiber.Ctx) error {
	var body completeDeliveryBody
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	completed, err := s.deliveries.Complete(c.Params("id"), body.ProofURL)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(completed)
}

type failDeliveryBody struct {
	Reason string `json:"reason"`
}

func (s *Server) failDelivery(c *fiber.Ctx) error {
	var body failDeliveryBody
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	failed, err := s.deliveries.Fail(c.Params("id"), body.Reason)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(failed)
}

func (s *Server) updateDeliveryStatus(c *fiber.Ctx) error {
	var body updateStatusBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	updated, err := s.deliveries.UpdateStatus(c.Params("id"), domain.DeliveryStatus(body.Status))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(updated)
}

type driverLocationBody struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s *Server) updateDriverLocation(c *fiber.Ctx) error {
	var body driverLocationBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := s.deliveries.UpdateDriverLocation(c.Params("id"), domain.Coordinates{
		Lat: body.Lat,
		Lng: body.Lng,
	}); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) updateDriverStatus(c *fiber.Ctx) error {
	var body updateStatusBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	updated, err := s.deliveries.UpdateDriverStatus(c.Params("id"), domain.DriverStatus(body.Status))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) availableDrivers(c *fiber.Ctx) error {
	drivers, err := s.deliveries.AvailableDrivers(c.Query("depot_id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(drivers)
}
