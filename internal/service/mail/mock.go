package mail

import "github.com/vladislavdragonenkov/dms/internal/domain"

// MockSender — конфигурируемая заглушка EmailSender для тестов.
type MockSender struct {
	SendErr error

	SendCalls       int
	LastRecipient   string
	LastOrderNumber string
	LastInvoice     []byte
}

// NewMockSender возвращает mock с успешным сценарием по умолчанию.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// SendInvoice возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockSender) SendInvoice(recipient, customerName, orderNumber string, invoice []byte) error {
	m.SendCalls++
	m.LastRecipient = recipient
	m.LastOrderNumber = orderNumber
	m.LastInvoice = invoice
	return m.SendErr
}

var _ domain.EmailSender = (*MockSender)(nil)
