package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

const inventoryColumns = `
	id, product_id, depot_id, quantity_on_hand, reorder_level,
	version, created_at, updated_at
`

const movementColumns = `
	id, record_id, kind, quantity, previous_stock, new_stock,
	actor_id, reason, occurred_at
`

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository создаёт PostgreSQL-реализацию InventoryRepository.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{db: store.DB()}
}

func (r *inventoryRepository) Create(record domain.InventoryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_records (`+inventoryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		record.ID, record.ProductID, record.DepotID, record.QuantityOnHand,
		record.ReorderLevel, record.Version, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert inventory record: %w", err)
	}

	return nil
}

func (r *inventoryRepository) Get(id string) (domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := scanInventoryRecord(r.db.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory_records
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("select inventory record: %w", err)
	}

	return record, nil
}

func (r *inventoryRepository) GetByProductAndDepot(productID, depotID string) (domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := scanInventoryRecord(r.db.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory_records
		WHERE product_id = $1 AND depot_id = $2
	`, productID, depotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("select inventory record: %w", err)
	}

	return record, nil
}

func (r *inventoryRepository) ListByProduct(productID string) ([]domain.InventoryRecord, error) {
	return r.listRecords(`
		SELECT `+inventoryColumns+`
		FROM inventory_records
		WHERE product_id = $1
		ORDER BY depot_id ASC
	`, productID)
}

func (r *inventoryRepository) ListByDepot(depotID string) ([]domain.InventoryRecord, error) {
	return r.listRecords(`
		SELECT `+inventoryColumns+`
		FROM inventory_records
		WHERE depot_id = $1
		ORDER BY product_id ASC
	`, depotID)
}

func (r *inventoryRepository) ListLowStock(depotID string) ([]domain.InventoryRecord, error) {
	return r.listRecords(`
		SELECT `+inventoryColumns+`
		FROM inventory_records
		WHERE depot_id = $1
		  AND quantity_on_hand <= reorder_level
		ORDER BY product_id ASC
	`, depotID)
}

func (r *inventoryRepository) TotalStockForProduct(productID string) (int32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var total int32
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_on_hand), 0)
		FROM inventory_records
		WHERE product_id = $1
	`, productID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum product stock: %w", err)
	}

	return total, nil
}

// ApplyAdjustments применяет все изменения в одной транзакции. Каждая
// запись блокируется через SELECT ... FOR UPDATE; вызывающая сторона
// подаёт adjustments в детерминированном порядке, что исключает
// взаимоблокировки конкурирующих наборов. Нехватка стока по любой
// записи откатывает всю транзакцию.
func (r *inventoryRepository) ApplyAdjustments(adjustments []domain.StockAdjustment) ([]domain.StockMovement, error) {
	if len(adjustments) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	movements, err := r.applyAdjustmentsTx(ctx, tx, adjustments)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit adjustments: %w", err)
	}

	return movements, nil
}

func (r *inventoryRepository) applyAdjustmentsTx(ctx context.Context, tx *sql.Tx, adjustments []domain.StockAdjustment) ([]domain.StockMovement, error) {
	now := time.Now().UTC()
	movements := make([]domain.StockMovement, 0, len(adjustments))

	for _, adj := range adjustments {
		if errs := adj.Validate(); len(errs) > 0 {
			return nil, errs[0]
		}

		var (
			productID string
			onHand    int32
		)
		err := tx.QueryRowContext(ctx, `
			SELECT product_id, quantity_on_hand
			FROM inventory_records
			WHERE id = $1
			FOR UPDATE
		`, adj.RecordID).Scan(&productID, &onHand)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, domain.ErrInventoryNotFound
			}
			return nil, fmt.Errorf("lock inventory record: %w", err)
		}

		delta := adj.Kind.Delta(adj.Quantity)
		newStock := onHand + delta
		if newStock < 0 {
			return nil, &domain.InsufficientStockError{
				ProductID: productID,
				Requested: adj.Quantity,
				Available: onHand,
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE inventory_records
			SET quantity_on_hand = $1,
			    version = version + 1,
			    updated_at = $2
			WHERE id = $3
		`, newStock, now, adj.RecordID); err != nil {
			return nil, fmt.Errorf("update inventory record: %w", err)
		}

		movement := domain.StockMovement{
			ID:            uuid.NewString(),
			RecordID:      adj.RecordID,
			Kind:          adj.Kind,
			Quantity:      adj.Quantity,
			PreviousStock: onHand,
			NewStock:      newStock,
			ActorID:       adj.ActorID,
			Reason:        adj.Reason,
			OccurredAt:    now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock_movements (`+movementColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			movement.ID, movement.RecordID, string(movement.Kind), movement.Quantity,
			movement.PreviousStock, movement.NewStock, movement.ActorID,
			movement.Reason, movement.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("insert stock movement: %w", err)
		}

		movements = append(movements, movement)
	}

	return movements, nil
}

func (r *inventoryRepository) MovementsByRecord(recordID string) ([]domain.StockMovement, error) {
	return r.listMovements(`
		SELECT `+movementColumns+`
		FROM stock_movements
		WHERE record_id = $1
		ORDER BY occurred_at DESC, id DESC
	`, recordID)
}

func (r *inventoryRepository) MovementsByDepot(depotID string) ([]domain.StockMovement, error) {
	return r.listMovements(`
		SELECT m.id, m.record_id, m.kind, m.quantity, m.previous_stock, m.new_stock,
		       m.actor_id, m.reason, m.occurred_at
		FROM stock_movements m
		JOIN inventory_records r ON r.id = m.record_id
		WHERE r.depot_id = $1
		ORDER BY m.occurred_at DESC, m.id DESC
	`, depotID)
}

func (r *inventoryRepository) listRecords(query string, args ...any) ([]domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0)
	for rows.Next() {
		record, err := scanInventoryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory rows: %w", err)
	}

	return records, nil
}

func (r *inventoryRepository) listMovements(query string, args ...any) ([]domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0)
	for rows.Next() {
		var (
			movement domain.StockMovement
			kind     string
		)
		if err := rows.Scan(
			&movement.ID, &movement.RecordID, &kind, &movement.Quantity,
			&movement.PreviousStock, &movement.NewStock, &movement.ActorID,
			&movement.Reason, &movement.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movement.Kind = domain.MovementKind(kind)
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement rows: %w", err)
	}

	return movements, nil
}

func scanInventoryRecord(row rowScanner) (domain.InventoryRecord, error) {
	var record domain.InventoryRecord
	if err := row.Scan(
		&record.ID, &record.ProductID, &record.DepotID, &record.QuantityOnHand,
		&record.ReorderLevel, &record.Version, &record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return domain.InventoryRecord{}, err
	}
	return record, nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
