package inventory

import "github.com/vladislavdragonenkov/dms/internal/domain"

// MockService — конфигурируемая заглушка StockService для тестов.
type MockService struct {
	ReserveErr error
	RestoreErr error
	TotalErr   error
	Total      int32

	ReserveCalls int
	RestoreCalls int
	TotalCalls   int
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{}
}

// ReserveForOrder возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockService) ReserveForOrder(orderID string, items []domain.OrderLineItem) error {
	m.ReserveCalls++
	return m.ReserveErr
}

// RestoreForOrder возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockService) RestoreForOrder(orderID string, items []domain.OrderLineItem) error {
	m.RestoreCalls++
	return m.RestoreErr
}

// TotalStock возвращает заранее настроенный остаток.
func (m *MockService) TotalStock(productID string) (int32, error) {
	m.TotalCalls++
	return m.Total, m.TotalErr
}

var _ domain.StockService = (*MockService)(nil)
