package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// inventoryRepositoryInMemory держит складские записи и движения под одним
// мьютексом: ApplyAdjustments атомарен по построению.
type inventoryRepositoryInMemory struct {
	mu        sync.RWMutex
	records   map[string]domain.InventoryRecord
	movements []domain.StockMovement
}

// NewInventoryRepository возвращает in-memory реализацию InventoryRepository.
func NewInventoryRepository() domain.InventoryRepository {
	return &inventoryRepositoryInMemory{
		records: make(map[string]domain.InventoryRecord),
	}
}

// Create сохраняет новую складскую запись.
func (r *inventoryRepositoryInMemory) Create(record domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return domain.ErrVersionConflict
	}
	for _, existing := range r.records {
		if existing.ProductID == record.ProductID && existing.DepotID == record.DepotID {
			return domain.ErrVersionConflict
		}
	}
	r.records[record.ID] = record
	return nil
}

// Get возвращает запись или ErrInventoryNotFound.
func (r *inventoryRepositoryInMemory) Get(id string) (domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return record, nil
}

// GetByProductAndDepot ищет запись по ключу (product, depot).
func (r *inventoryRepositoryInMemory) GetByProductAndDepot(productID, depotID string) (domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records {
		if record.ProductID == productID && record.DepotID == depotID {
			return record, nil
		}
	}
	return domain.InventoryRecord{}, domain.ErrInventoryNotFound
}

// ListByProduct возвращает записи товара, отсортированные по складу.
func (r *inventoryRepositoryInMemory) ListByProduct(productID string) ([]domain.InventoryRecord, error) {
	return r.list(func(rec domain.InventoryRecord) bool { return rec.ProductID == productID })
}

// ListByDepot возвращает все записи склада.
func (r *inventoryRepositoryInMemory) ListByDepot(depotID string) ([]domain.InventoryRecord, error) {
	return r.list(func(rec domain.InventoryRecord) bool { return rec.DepotID == depotID })
}

// ListLowStock возвращает записи склада с остатком не выше порога дозаказа.
func (r *inventoryRepositoryInMemory) ListLowStock(depotID string) ([]domain.InventoryRecord, error) {
	return r.list(func(rec domain.InventoryRecord) bool {
		return rec.DepotID == depotID && rec.QuantityOnHand <= rec.ReorderLevel
	})
}

func (r *inventoryRepositoryInMemory) list(match func(domain.InventoryRecord) bool) ([]domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.InventoryRecord, 0)
	for _, record := range r.records {
		if match(record) {
			result = append(result, record)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DepotID != result[j].DepotID {
			return result[i].DepotID < result[j].DepotID
		}
		return result[i].ProductID < result[j].ProductID
	})

	return result, nil
}

// TotalStockForProduct суммирует остаток товара по всем складам.
func (r *inventoryRepositoryInMemory) TotalStockForProduct(productID string) (int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int32
	for _, record := range r.records {
		if record.ProductID == productID {
			total += record.QuantityOnHand
		}
	}
	return total, nil
}

// ApplyAdjustments применяет набор изменений атомарно: сначала проверяем все,
// затем применяем все. Остаток ни одной записи не может уйти в минус.
func (r *inventoryRepositoryInMemory) ApplyAdjustments(adjustments []domain.StockAdjustment) ([]domain.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Фаза проверки: считаем итоговые остатки с учётом нескольких
	// изменений одной записи в одном наборе.
	projected := make(map[string]int32, len(adjustments))
	for i := range adjustments {
		adj := &adjustments[i]
		if errs := adj.Validate(); len(errs) > 0 {
			return nil, errs[0]
		}
		record, ok := r.records[adj.RecordID]
		if !ok {
			return nil, domain.ErrInventoryNotFound
		}
		current, seen := projected[adj.RecordID]
		if !seen {
			current = record.QuantityOnHand
		}
		next := current + adj.Kind.Delta(adj.Quantity)
		if next < 0 {
			return nil, &domain.InsufficientStockError{
				ProductID: record.ProductID,
				Requested: adj.Quantity,
				Available: current,
			}
		}
		projected[adj.RecordID] = next
	}

	// Фаза применения.
	now := time.Now().UTC()
	movements := make([]domain.StockMovement, 0, len(adjustments))
	for i := range adjustments {
		adj := &adjustments[i]
		record := r.records[adj.RecordID]
		previous := record.QuantityOnHand
		record.QuantityOnHand = previous + adj.Kind.Delta(adj.Quantity)
		record.Version++
		record.UpdatedAt = now
		r.records[adj.RecordID] = record

		movement := domain.StockMovement{
			ID:            uuid.NewString(),
			RecordID:      record.ID,
			Kind:          adj.Kind,
			Quantity:      adj.Quantity,
			PreviousStock: previous,
			NewStock:      record.QuantityOnHand,
			ActorID:       adj.ActorID,
			Reason:        adj.Reason,
			OccurredAt:    now,
		}
		r.movements = append(r.movements, movement)
		movements = append(movements, movement)
	}

	return movements, nil
}

// MovementsByRecord возвращает движения записи, новые первыми.
func (r *inventoryRepositoryInMemory) MovementsByRecord(recordID string) ([]domain.StockMovement, error) {
	return r.listMovements(func(m domain.StockMovement) bool { return m.RecordID == recordID })
}

// MovementsByDepot возвращает движения всех записей склада, новые первыми.
func (r *inventoryRepositoryInMemory) MovementsByDepot(depotID string) ([]domain.StockMovement, error) {
	r.mu.RLock()
	recordIDs := make(map[string]struct{})
	for _, record := range r.records {
		if record.DepotID == depotID {
			recordIDs[record.ID] = struct{}{}
		}
	}
	r.mu.RUnlock()

	return r.listMovements(func(m domain.StockMovement) bool {
		_, ok := recordIDs[m.RecordID]
		return ok
	})
}

func (r *inventoryRepositoryInMemory) listMovements(match func(domain.StockMovement) bool) ([]domain.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.StockMovement, 0)
	for _, movement := range r.movements {
		if match(movement) {
			result = append(result, movement)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.After(result[j].OccurredAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

var _ domain.InventoryRepository = (*inventoryRepositoryInMemory)(nil)
