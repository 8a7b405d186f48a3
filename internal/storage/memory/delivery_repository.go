package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// deliveryRepositoryInMemory — in-memory реализация DeliveryRepository.
type deliveryRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Delivery
}

// NewDeliveryRepository возвращает in-memory репозиторий доставок.
func NewDeliveryRepository() domain.DeliveryRepository {
	return &deliveryRepositoryInMemory{
		items: make(map[string]domain.Delivery),
	}
}

// Create сохраняет новую доставку. У заказа может быть только одна доставка.
func (r *deliveryRepositoryInMemory) Create(delivery domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[delivery.ID]; exists {
		return domain.ErrVersionConflict
	}
	for _, existing := range r.items {
		if existing.OrderID == delivery.OrderID {
			return domain.ErrVersionConflict
		}
	}
	r.items[delivery.ID] = delivery
	return nil
}

// Get возвращает доставку или ErrDeliveryNotFound.
func (r *deliveryRepositoryInMemory) Get(id string) (domain.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivery, ok := r.items[id]
	if !ok {
		return domain.Delivery{}, domain.ErrDeliveryNotFound
	}
	return delivery, nil
}

// GetByOrder возвращает доставку заказа.
func (r *deliveryRepositoryInMemory) GetByOrder(orderID string) (domain.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, delivery := range r.items {
		if delivery.OrderID == orderID {
			return delivery, nil
		}
	}
	return domain.Delivery{}, domain.ErrDeliveryNotFound
}

// ListByDriver возвращает доставки водителя, новые первыми.
func (r *deliveryRepositoryInMemory) ListByDriver(driverID string) ([]domain.Delivery, error) {
	return r.list(func(d domain.Delivery) bool { return d.DriverID == driverID })
}

// ListByDriverAndStatus возвращает доставки водителя в заданном статусе.
func (r *deliveryRepositoryInMemory) ListByDriverAndStatus(driverID string, status domain.DeliveryStatus) ([]domain.Delivery, error) {
	return r.list(func(d domain.Delivery) bool {
		return d.DriverID == driverID && d.Status == status
	})
}

// ListByStatuses возвращает доставки в любом из перечисленных статусов.
func (r *deliveryRepositoryInMemory) ListByStatuses(statuses []domain.DeliveryStatus) ([]domain.Delivery, error) {
	wanted := make(map[domain.DeliveryStatus]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}
	return r.list(func(d domain.Delivery) bool {
		_, ok := wanted[d.Status]
		return ok
	})
}

func (r *deliveryRepositoryInMemory) list(match func(domain.Delivery) bool) ([]domain.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Delivery, 0)
	for _, delivery := range r.items {
		if match(delivery) {
			result = append(result, delivery)
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

// Save перезаписывает доставку, проверяя версию (optimistic locking).
func (r *deliveryRepositoryInMemory) Save(delivery domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[delivery.ID]
	if !ok {
		return domain.ErrDeliveryNotFound
	}
	if current.Version != delivery.Version {
		return domain.ErrVersionConflict
	}
	delivery.Version++
	r.items[delivery.ID] = delivery
	return nil
}

var _ domain.DeliveryRepository = (*deliveryRepositoryInMemory)(nil)
