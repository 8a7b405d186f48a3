package domain

import "time"

// MovementKind задаёт тип движения стока и знак изменения количества.
type MovementKind string

const (
	// MovementReceived — приход товара на склад.
	MovementReceived MovementKind = "received"
	// MovementSold — списание под заказ.
	MovementSold MovementKind = "sold"
	// MovementDamaged — списание брака.
	MovementDamaged MovementKind = "damaged"
	// MovementReturned — возврат товара на склад.
	MovementReturned MovementKind = "returned"
	// MovementTransferredOut — перемещение на другой склад, сторона-источник.
	MovementTransferredOut MovementKind = "transferred_out"
	// MovementTransferredIn — перемещение на другой склад, сторона-приёмник.
	MovementTransferredIn MovementKind = "transferred_in"
	// MovementAdjustment — ручная корректировка после инвентаризации.
	MovementAdjustment MovementKind = "adjustment"
)

// Valid проверяет тип движения.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementReceived, MovementSold, MovementDamaged, MovementReturned,
		MovementTransferredOut, MovementTransferredIn, MovementAdjustment:
		return true
	default:
		return false
	}
}

// Delta возвращает подписанное изменение количества для данного типа движения.
func (k MovementKind) Delta(qty int32) int32 {
	switch k {
	case MovementSold, MovementDamaged, MovementTransferredOut:
		return -qty
	default:
		return qty
	}
}

// StockStatus классифицирует остаток относительно порога дозаказа.
type StockStatus string

const (
	StockStatusOK         StockStatus = "ok"
	StockStatusLow        StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// InventoryRecord хранит остаток товара на конкретном складе.
// Ключ — пара (product, depot); инвариант: QuantityOnHand >= 0.
type InventoryRecord struct {
	ID             string
	ProductID      string
	DepotID        string
	QuantityOnHand int32
	ReorderLevel   int32
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StockStatus возвращает классификацию текущего остатка.
func (r *InventoryRecord) StockStatus() StockStatus {
	switch {
	case r.QuantityOnHand == 0:
		return StockStatusOutOfStock
	case r.QuantityOnHand <= r.ReorderLevel:
		return StockStatusLow
	default:
		return StockStatusOK
	}
}

// StockMovement — неизменяемая строка аудита одного изменения остатка.
// Воспроизведение движений записи в порядке времени восстанавливает её остаток.
type StockMovement struct {
	ID            string
	RecordID      string
	Kind          MovementKind
	Quantity      int32
	PreviousStock int32
	NewStock      int32
	ActorID       string
	Reason        string
	OccurredAt    time.Time
}

// StockAdjustment описывает намерение изменить один InventoryRecord.
// Набор adjustments применяется хранилищем атомарно: либо все, либо ни одного.
type StockAdjustment struct {
	RecordID string
	Kind     MovementKind
	Quantity int32
	ActorID  string
	Reason   string
}

// Validate проверяет корректность намерения.
func (a *StockAdjustment) Validate() []error {
	var errs []error

	if a.RecordID == "" {
		errs = append(errs, ErrInventoryRecordRequired)
	}
	if !a.Kind.Valid() {
		errs = append(errs, ErrMovementKindInvalid)
	}
	if a.Quantity <= 0 {
		errs = append(errs, ErrMovementQtyInvalid)
	}

	return errs
}
