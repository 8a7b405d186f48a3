package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
)

const (
	// defaultReorderLevel — порог дозаказа для записей, создаваемых неявно.
	defaultReorderLevel = 50

	reserveMaxRetries = 3
	reserveBaseDelay  = 10 * time.Millisecond
)

// Ledger управляет складскими записями и журналом движений.
type Ledger struct {
	repo    domain.InventoryRepository
	logger  *log.Entry
	metrics *metrics.FulfillmentMetrics
	outbox  domain.OutboxRepository
}

// NewLedger создаёт рабочий экземпляр леджера.
func NewLedger(repo domain.InventoryRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-ledger")
	}
	return &Ledger{
		repo:    repo,
		logger:  logger,
		metrics: metrics.NewFulfillmentMetrics(),
	}
}

// NewLedgerWithoutMetrics создаёт леджер без метрик (для тестов).
func NewLedgerWithoutMetrics(repo domain.InventoryRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-ledger")
	}
	return &Ledger{
		repo:   repo,
		logger: logger,
	}
}

// WithOutbox подключает transactional outbox: леджер начинает публиковать
// событие inventory.stock_low при падении остатка до порога дозаказа.
func (l *Ledger) WithOutbox(outbox domain.OutboxRepository) *Ledger {
	l.outbox = outbox
	return l
}

// Adjust применяет одиночное движение к записи (product, depot) и возвращает его.
// Для вида `received` отсутствующая запись создаётся с нулевым остатком.
func (l *Ledger) Adjust(productID, depotID string, kind domain.MovementKind, quantity int32, actorID, reason string) (domain.StockMovement, error) {
	if !kind.Valid() {
		return domain.StockMovement{}, domain.ErrMovementKindInvalid
	}
	if quantity <= 0 {
		return domain.StockMovement{}, domain.ErrMovementQtyInvalid
	}

	record, err := l.repo.GetByProductAndDepot(productID, depotID)
	if errors.Is(err, domain.ErrInventoryNotFound) && kind == domain.MovementReceived {
		record, err = l.createRecord(productID, depotID)
	}
	if err != nil {
		return domain.StockMovement{}, err
	}

	movements, err := l.repo.ApplyAdjustments([]domain.StockAdjustment{{
		RecordID: record.ID,
		Kind:     kind,
		Quantity: quantity,
		ActorID:  actorID,
		Reason:   reason,
	}})
	if err != nil {
		return domain.StockMovement{}, err
	}

	l.logger.WithFields(log.Fields{
		"product_id": productID,
		"depot_id":   depotID,
		"kind":       kind,
		"quantity":   quantity,
	}).Info("stock adjusted")
	l.recordMovements(movements)
	l.emitLowStockEvents(movements)

	return movements[0], nil
}

// Transfer перемещает товар между складами одной атомарной парой движений.
func (l *Ledger) Transfer(productID, fromDepotID, toDepotID string, quantity int32, actorID, reason string) ([]domain.StockMovement, error) {
	if fromDepotID == toDepotID {
		return nil, domain.ErrSameDepotTransfer
	}
	if quantity <= 0 {
		return nil, domain.ErrMovementQtyInvalid
	}

	source, err := l.repo.GetByProductAndDepot(productID, fromDepotID)
	if err != nil {
		return nil, err
	}

	destination, err := l.repo.GetByProductAndDepot(productID, toDepotID)
	if errors.Is(err, domain.ErrInventoryNotFound) {
		destination, err = l.createRecord(productID, toDepotID)
	}
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = fmt.Sprintf("transfer %s -> %s", fromDepotID, toDepotID)
	}

	pair := []domain.StockAdjustment{
		{RecordID: source.ID, Kind: domain.MovementTransferredOut, Quantity: quantity, ActorID: actorID, Reason: reason},
		{RecordID: destination.ID, Kind: domain.MovementTransferredIn, Quantity: quantity, ActorID: actorID, Reason: reason},
	}
	sortAdjustments(pair)

	movements, err := l.repo.ApplyAdjustments(pair)
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(log.Fields{
		"product_id": productID,
		"from_depot": fromDepotID,
		"to_depot":   toDepotID,
		"quantity":   quantity,
	}).Info("stock transferred")
	l.recordMovements(movements)
	l.emitLowStockEvents(movements)

	return movements, nil
}

// ReserveForOrder списывает сток под заказ: либо все позиции, либо ни одной.
// Позиция может быть разложена по нескольким складам; порядок складов
// детерминирован (по возрастанию идентификатора). При конкурентном изменении
// остатков план пересобирается и применяется повторно.
func (l *Ledger) ReserveForOrder(orderID string, items []domain.OrderLineItem) error {
	if len(items) == 0 {
		return domain.ErrItemsRequired
	}

	reason := fmt.Sprintf("reserved for order %s", orderID)

	var lastErr error
	for attempt := 0; attempt < reserveMaxRetries; attempt++ {
		if attempt > 0 {
			if l.metrics != nil {
				l.metrics.RecordReservationConflict()
			}
			time.Sleep(reserveBaseDelay * time.Duration(1<<(attempt-1)))
		}

		plan, err := l.planReservation(items, reason)
		if err != nil {
			return err
		}

		movements, err := l.repo.ApplyAdjustments(plan)
		if err == nil {
			l.logger.WithFields(log.Fields{
				"order_id":  orderID,
				"movements": len(movements),
			}).Info("stock reserved for order")
			l.recordMovements(movements)
			l.emitLowStockEvents(movements)
			return nil
		}
		// Недостача на этапе применения означает устаревший план: остатки
		// уехали между раскладкой и блокировкой строк. Свежая раскладка
		// перепроверит суммарный остаток и при настоящей нехватке вернёт
		// InsufficientStockError уже из planReservation.
		var stockErr *domain.InsufficientStockError
		if !domain.IsVersionConflict(err) && !errors.As(err, &stockErr) {
			return err
		}
		lastErr = err
		l.logger.WithField("order_id", orderID).Debug("reservation plan conflicted, replanning")
	}

	return fmt.Errorf("reserve for order %s: %w", orderID, lastErr)
}

// planReservation раскладывает позиции заказа по складам жадно, в
// детерминированном порядке. Недостача агрегируется по товару.
func (l *Ledger) planReservation(items []domain.OrderLineItem, reason string) ([]domain.StockAdjustment, error) {
	// Количества по товарам складываются: одна позиция товара на план.
	required := make(map[string]int32)
	order := make([]string, 0, len(items))
	for _, item := range items {
		if item.Qty <= 0 {
			return nil, domain.ErrItemQtyInvalid
		}
		if _, seen := required[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		required[item.ProductID] += item.Qty
	}

	plan := make([]domain.StockAdjustment, 0, len(order))
	for _, productID := range order {
		remaining := required[productID]

		records, err := l.repo.ListByProduct(productID)
		if err != nil {
			return nil, err
		}

		available := int32(0)
		for _, record := range records {
			available += record.QuantityOnHand
		}
		if available < remaining {
			return nil, &domain.InsufficientStockError{
				ProductID: productID,
				Requested: remaining,
				Available: available,
			}
		}

		for _, record := range records {
			if remaining == 0 {
				break
			}
			if record.QuantityOnHand == 0 {
				continue
			}
			take := record.QuantityOnHand
			if take > remaining {
				take = remaining
			}
			plan = append(plan, domain.StockAdjustment{
				RecordID: record.ID,
				Kind:     domain.MovementSold,
				Quantity: take,
				ActorID:  "system",
				Reason:   reason,
			})
			remaining -= take
		}
	}

	sortAdjustments(plan)
	return plan, nil
}

// sortAdjustments упорядочивает набор по идентификатору записи: любые два
// конкурирующих набора блокируют строки в одном глобальном порядке, что
// исключает взаимоблокировки. Раскладка количеств от порядка не зависит.
func sortAdjustments(adjustments []domain.StockAdjustment) {
	sort.Slice(adjustments, func(i, j int) bool {
		return adjustments[i].RecordID < adjustments[j].RecordID
	})
}

// RestoreForOrder возвращает сток отменённого заказа. Возврат пишется на первую
// по порядку запись товара, держащую остаток, либо на первую запись вообще.
func (l *Ledger) RestoreForOrder(orderID string, items []domain.OrderLineItem) error {
	if len(items) == 0 {
		return domain.ErrItemsRequired
	}

	reason := fmt.Sprintf("restored for cancelled order %s", orderID)

	plan := make([]domain.StockAdjustment, 0, len(items))
	for _, item := range items {
		records, err := l.repo.ListByProduct(item.ProductID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return domain.ErrInventoryNotFound
		}

		target := records[0]
		for _, record := range records {
			if record.QuantityOnHand > 0 {
				target = record
				break
			}
		}

		plan = append(plan, domain.StockAdjustment{
			RecordID: target.ID,
			Kind:     domain.MovementReturned,
			Quantity: item.Qty,
			ActorID:  "system",
			Reason:   reason,
		})
	}
	sortAdjustments(plan)

	movements, err := l.repo.ApplyAdjustments(plan)
	if err != nil {
		return err
	}

	l.logger.WithField("order_id", orderID).Info("stock restored for cancelled order")
	l.recordMovements(movements)
	return nil
}

// TotalStock возвращает суммарный остаток товара по всем складам.
func (l *Ledger) TotalStock(productID string) (int32, error) {
	return l.repo.TotalStockForProduct(productID)
}

// Record возвращает складскую запись по идентификатору.
func (l *Ledger) Record(recordID string) (domain.InventoryRecord, error) {
	return l.repo.Get(recordID)
}

// InventoryByDepot возвращает складские записи склада.
func (l *Ledger) InventoryByDepot(depotID string) ([]domain.InventoryRecord, error) {
	return l.repo.ListByDepot(depotID)
}

// LowStock возвращает записи склада с остатком не выше порога дозаказа.
func (l *Ledger) LowStock(depotID string) ([]domain.InventoryRecord, error) {
	return l.repo.ListLowStock(depotID)
}

// MovementHistory возвращает движения записи, новые первыми.
func (l *Ledger) MovementHistory(recordID string) ([]domain.StockMovement, error) {
	if _, err := l.repo.Get(recordID); err != nil {
		return nil, err
	}
	return l.repo.MovementsByRecord(recordID)
}

// DepotMovements возвращает движения всех записей склада, новые первыми.
func (l *Ledger) DepotMovements(depotID string) ([]domain.StockMovement, error) {
	return l.repo.MovementsByDepot(depotID)
}

func (l *Ledger) createRecord(productID, depotID string) (domain.InventoryRecord, error) {
	now := time.Now().UTC()
	record := domain.InventoryRecord{
		ID:           uuid.NewString(),
		ProductID:    productID,
		DepotID:      depotID,
		ReorderLevel: defaultReorderLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.repo.Create(record); err != nil {
		return domain.InventoryRecord{}, err
	}
	return record, nil
}

func (l *Ledger) recordMovements(movements []domain.StockMovement) {
	if l.metrics == nil {
		return
	}
	for _, movement := range movements {
		l.metrics.RecordStockMovement(string(movement.Kind))
	}
}

// emitLowStockEvents публикует inventory.stock_low для записей, чей остаток
// этим набором движений опустился до порога дозаказа. Событие уходит только
// на пересечении порога сверху вниз: дальнейшие продажи ниже порога молчат.
func (l *Ledger) emitLowStockEvents(movements []domain.StockMovement) {
	if l.outbox == nil {
		return
	}
	for _, movement := range movements {
		if movement.NewStock >= movement.PreviousStock {
			continue
		}
		record, err := l.repo.Get(movement.RecordID)
		if err != nil {
			l.logger.WithError(err).WithField("record_id", movement.RecordID).Warn("low stock check failed")
			continue
		}
		if movement.PreviousStock <= record.ReorderLevel || movement.NewStock > record.ReorderLevel {
			continue
		}

		payload, err := json.Marshal(map[string]any{
			"record_id":        record.ID,
			"product_id":       record.ProductID,
			"depot_id":         record.DepotID,
			"quantity_on_hand": record.QuantityOnHand,
			"reorder_level":    record.ReorderLevel,
			"ts":               time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			l.logger.WithError(err).WithField("record_id", record.ID).Warn("failed to marshal low stock payload")
			continue
		}
		if _, err := l.outbox.Enqueue(domain.OutboxMessage{
			AggregateType: "inventory",
			AggregateID:   record.ID,
			EventType:     string(kafka.EventTypeStockLow),
			Payload:       payload,
		}); err != nil {
			l.logger.WithError(err).WithField("record_id", record.ID).Warn("failed to enqueue low stock event")
		}
	}
}

var _ domain.StockService = (*Ledger)(nil)
