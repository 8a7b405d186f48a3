package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// driverRepositoryInMemory — in-memory реализация DriverRepository.
type driverRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Driver
}

// NewDriverRepository возвращает in-memory репозиторий водителей.
func NewDriverRepository() domain.DriverRepository {
	return &driverRepositoryInMemory{
		items: make(map[string]domain.Driver),
	}
}

// Create сохраняет нового водителя.
func (r *driverRepositoryInMemory) Create(driver domain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[driver.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.items[driver.ID] = driver
	return nil
}

// Get возвращает водителя или ErrDriverNotFound.
func (r *driverRepositoryInMemory) Get(id string) (domain.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, ok := r.items[id]
	if !ok {
		return domain.Driver{}, domain.ErrDriverNotFound
	}
	return driver, nil
}

// ListAvailableByDepot возвращает активных свободных водителей склада.
func (r *driverRepositoryInMemory) ListAvailableByDepot(depotID string) ([]domain.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Driver, 0)
	for _, driver := range r.items {
		if driver.Active && driver.DepotID == depotID && driver.Status == domain.DriverStatusAvailable {
			result = append(result, driver)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Save перезаписывает водителя.
func (r *driverRepositoryInMemory) Save(driver domain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[driver.ID]; !ok {
		return domain.ErrDriverNotFound
	}
	r.items[driver.ID] = driver
	return nil
}

var _ domain.DriverRepository = (*driverRepositoryInMemory)(nil)
