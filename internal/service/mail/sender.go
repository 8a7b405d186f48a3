package mail

import (
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// SMTPConfig — параметры подключения к SMTP-серверу.
type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Password string
}

// SMTPSender отправляет счета клиентам через SMTP. Счёт уходит вложением
// text/html внутри multipart-письма.
type SMTPSender struct {
	config SMTPConfig
	logger *log.Entry
}

var _ domain.EmailSender = (*SMTPSender)(nil)

// NewSMTPSender создаёт SMTP-отправитель счетов.
func NewSMTPSender(config SMTPConfig, logger *log.Entry) *SMTPSender {
	if logger == nil {
		logger = log.New().WithField("component", "smtp-sender")
	}
	return &SMTPSender{config: config, logger: logger}
}

// SendInvoice отправляет письмо с вложенным счётом.
func (s *SMTPSender) SendInvoice(recipient, customerName, orderNumber string, invoice []byte) error {
	const boundary = "dms-invoice-boundary"

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: Invoice for order %s\r\n", orderNumber)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	fmt.Fprintf(&msg, "Dear %s,\r\n\r\nThank you for your order %s. Your invoice is attached.\r\n\r\n", customerName, orderNumber)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&msg, "Content-Disposition: attachment; filename=%q\r\n\r\n", "invoice-"+orderNumber+".html")
	msg.WriteString(base64.StdEncoding.EncodeToString(invoice))
	fmt.Fprintf(&msg, "\r\n--%s--\r\n", boundary)

	addr := s.config.Host + ":" + s.config.Port
	auth := smtp.PlainAuth("", s.config.From, s.config.Password, s.config.Host)
	if err := smtp.SendMail(addr, auth, s.config.From, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send invoice mail to %s: %w", recipient, err)
	}

	s.logger.WithFields(log.Fields{
		"recipient":    recipient,
		"order_number": orderNumber,
	}).Info("invoice email sent")
	return nil
}
