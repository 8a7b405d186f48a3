package payment

import "github.com/vladislavdragonenkov/dms/internal/domain"

// MockConfirmer — конфигурируемая заглушка OrderConfirmer для тестов.
type MockConfirmer struct {
	ConfirmErr   error
	ConfirmCalls int
	LastOrderID  string
}

// NewMockConfirmer возвращает mock с успешным сценарием по умолчанию.
func NewMockConfirmer() *MockConfirmer {
	return &MockConfirmer{}
}

// ConfirmOrder возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockConfirmer) ConfirmOrder(orderID string) (domain.Order, error) {
	m.ConfirmCalls++
	m.LastOrderID = orderID
	if m.ConfirmErr != nil {
		return domain.Order{}, m.ConfirmErr
	}
	return domain.Order{ID: orderID, Status: domain.OrderStatusConfirmed}, nil
}

var _ OrderConfirmer = (*MockConfirmer)(nil)
