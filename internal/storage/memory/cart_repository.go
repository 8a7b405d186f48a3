package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// cartStoreInMemory — in-memory реализация корзины покупателя.
type cartStoreInMemory struct {
	mu    sync.RWMutex
	items map[string][]domain.CartItem
}

// NewCartStore возвращает in-memory корзину.
func NewCartStore() domain.CartStore {
	return &cartStoreInMemory{
		items: make(map[string][]domain.CartItem),
	}
}

// Add добавляет позицию; повтор того же товара суммирует количество и
// обновляет цену снимком последнего добавления.
func (r *cartStoreInMemory) Add(customerID string, item domain.CartItem) error {
	if item.Qty <= 0 {
		return domain.ErrMovementQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lines := r.items[customerID]
	for i := range lines {
		if lines[i].ProductID == item.ProductID {
			lines[i].Qty += item.Qty
			lines[i].UnitPriceMinor = item.UnitPriceMinor
			r.items[customerID] = lines
			return nil
		}
	}
	r.items[customerID] = append(lines, item)
	return nil
}

// Remove убирает позицию товара из корзины.
func (r *cartStoreInMemory) Remove(customerID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := r.items[customerID]
	for i := range lines {
		if lines[i].ProductID == productID {
			r.items[customerID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return nil
}

// Items возвращает копию позиций корзины.
func (r *cartStoreInMemory) Items(customerID string) ([]domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lines := r.items[customerID]
	result := make([]domain.CartItem, len(lines))
	copy(result, lines)
	return result, nil
}

// Clear опустошает корзину покупателя.
func (r *cartStoreInMemory) Clear(customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, customerID)
	return nil
}

var _ domain.CartStore = (*cartStoreInMemory)(nil)
