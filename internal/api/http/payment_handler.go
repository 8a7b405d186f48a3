package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/dms/internal/service/payment"
)

type initiatePaymentBody struct {
	OrderID   string `json:"order_id"`
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

func (s *Server) initiatePayment(c *fiber.Ctx) error {
	customer := customerID(c)
	if customer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer id is required"})
	}

	var body initiatePaymentBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	form, err := s.payments.Initiate(customer, body.OrderID, body.ReturnURL, body.CancelURL)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(form)
}

// paymentNotify принимает server-to-server callback шлюза. Контракт шлюза:
// подпись не сошлась — 400, всё остальное после проверки подписи — 200,
// иначе шлюз продолжит ретраить уведомление.
func (s *Server) paymentNotify(c *fiber.Ctx) error {
	statusCode, err := strconv.ParseInt(c.FormValue("status_code"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status_code is not a number"})
	}

	n := payment.Notification{
		MerchantID:       c.FormValue("merchant_id"),
		GatewayOrderID:   c.FormValue("order_id"),
		GatewayPaymentID: c.FormValue("payment_id"),
		Amount:           c.FormValue("payhere_amount"),
		Currency:         c.FormValue("payhere_currency"),
		StatusCode:       int32(statusCode),
		Signature:        c.FormValue("md5sig"),
		StatusMessage:    c.FormValue("status_message"),
		Method:           c.FormValue("method"),
		CardHolderName:   c.FormValue("card_holder_name"),
		CardNo:           c.FormValue("card_no"),
		CardExpiry:       c.FormValue("card_expiry"),
		CustomerToken:    c.FormValue("customer_token"),
		RecurringToken:   c.FormValue("recurring_token"),
	}

	if err := s.payments.HandleNotification(n); err != nil {
		if status := statusFromError(err); status == fiber.StatusBadRequest {
			return c.Status(fiber.StatusBadRequest).SendString("invalid signature")
		}
		// После валидной подписи шлюзу всегда отвечаем 200: внутренние сбои
		// логируются и разбираются на нашей стороне.
		s.logger.WithError(err).WithField("gateway_order_id", n.GatewayOrderID).
			Warn("payment notification processing failed")
	}

	return c.SendString("ok")
}

func (s *Server) getPaymentByReference(c *fiber.Ctx) error {
	pay, err := s.payments.ByReference(c.Params("reference"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(pay)
}

func (s *Server) listPaymentsByOrder(c *fiber.Ctx) error {
	payments, err := s.payments.ByOrder(c.Params("orderID"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(payments)
}
