package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// paymentRepositoryInMemory — in-memory реализация PaymentRepository.
type paymentRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Payment
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		items: make(map[string]domain.Payment),
	}
}

// Create сохраняет новый платёж. Ссылка и gateway order id должны быть уникальны.
func (r *paymentRepositoryInMemory) Create(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[payment.ID]; exists {
		return domain.ErrVersionConflict
	}
	for _, existing := range r.items {
		if existing.Reference == payment.Reference || existing.GatewayOrderID == payment.GatewayOrderID {
			return domain.ErrVersionConflict
		}
	}
	r.items[payment.ID] = payment
	return nil
}

// GetByReference возвращает платёж по ссылке.
func (r *paymentRepositoryInMemory) GetByReference(reference string) (domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return p.Reference == reference })
}

// GetByGatewayOrderID возвращает платёж по идентификатору заказа шлюза.
func (r *paymentRepositoryInMemory) GetByGatewayOrderID(gatewayOrderID string) (domain.Payment, error) {
	return r.find(func(p domain.Payment) bool { return p.GatewayOrderID == gatewayOrderID })
}

func (r *paymentRepositoryInMemory) find(match func(domain.Payment) bool) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, payment := range r.items {
		if match(payment) {
			return payment, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// ListByOrder возвращает платежи заказа, новые первыми.
func (r *paymentRepositoryInMemory) ListByOrder(orderID string) ([]domain.Payment, error) {
	return r.list(func(p domain.Payment) bool { return p.OrderID == orderID })
}

// ListByCustomer возвращает платежи клиента, новые первыми.
func (r *paymentRepositoryInMemory) ListByCustomer(customerID string) ([]domain.Payment, error) {
	return r.list(func(p domain.Payment) bool { return p.CustomerID == customerID })
}

func (r *paymentRepositoryInMemory) list(match func(domain.Payment) bool) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0)
	for _, payment := range r.items {
		if match(payment) {
			result = append(result, payment)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// HasSuccessfulForOrder сообщает, есть ли по заказу успешный платёж.
func (r *paymentRepositoryInMemory) HasSuccessfulForOrder(orderID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, payment := range r.items {
		if payment.OrderID == orderID && payment.Status == domain.PaymentStatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

// Save перезаписывает платёж.
func (r *paymentRepositoryInMemory) Save(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[payment.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	r.items[payment.ID] = payment
	return nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
