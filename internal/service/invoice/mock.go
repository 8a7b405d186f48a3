package invoice

import "github.com/vladislavdragonenkov/dms/internal/domain"

// MockGenerator — конфигурируемая заглушка InvoiceGenerator для тестов.
type MockGenerator struct {
	GenerateErr error
	Payload     []byte

	GenerateCalls int
	LastOrderID   string
}

// NewMockGenerator возвращает mock с успешным сценарием по умолчанию.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Payload: []byte("%PDF-1.4 invoice")}
}

// Generate возвращает заранее настроенный payload и считает вызовы.
func (m *MockGenerator) Generate(order domain.Order) ([]byte, error) {
	m.GenerateCalls++
	m.LastOrderID = order.ID
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	return m.Payload, nil
}

var _ domain.InvoiceGenerator = (*MockGenerator)(nil)
