package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

const deliveryColumns = `
	id, order_id, driver_id, status, assigned_at, picked_up_at, delivered_at,
	current_lat, current_lng, destination_lat, destination_lng,
	estimated_distance_km, notes, proof_url, version, created_at, updated_at
`

type deliveryRepository struct {
	db *sql.DB
}

// NewDeliveryRepository создаёт PostgreSQL-реализацию DeliveryRepository.
func NewDeliveryRepository(store *Store) domain.DeliveryRepository {
	return &deliveryRepository{db: store.DB()}
}

func (r *deliveryRepository) Create(delivery domain.Delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deliveries (`+deliveryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		delivery.ID, delivery.OrderID, delivery.DriverID, string(delivery.Status),
		nullableTime(delivery.AssignedAt), nullableTime(delivery.PickedUpAt),
		nullableTime(delivery.DeliveredAt),
		delivery.Current.Lat, delivery.Current.Lng,
		delivery.Destination.Lat, delivery.Destination.Lng,
		delivery.EstimatedDistanceKm, delivery.Notes, delivery.ProofURL,
		delivery.Version, delivery.CreatedAt, delivery.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert delivery: %w", err)
	}

	return nil
}

func (r *deliveryRepository) Get(id string) (domain.Delivery, error) {
	return r.getByField("id", id)
}

func (r *deliveryRepository) GetByOrder(orderID string) (domain.Delivery, error) {
	return r.getByField("order_id", orderID)
}

func (r *deliveryRepository) getByField(field, value string) (domain.Delivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	delivery, err := scanDelivery(r.db.QueryRowContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE `+field+` = $1
	`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Delivery{}, domain.ErrDeliveryNotFound
		}
		return domain.Delivery{}, fmt.Errorf("select delivery: %w", err)
	}

	return delivery, nil
}

func (r *deliveryRepository) ListByDriver(driverID string) ([]domain.Delivery, error) {
	return r.list(`
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE driver_id = $1
		ORDER BY created_at DESC, id DESC
	`, driverID)
}

func (r *deliveryRepository) ListByDriverAndStatus(driverID string, status domain.DeliveryStatus) ([]domain.Delivery, error) {
	return r.list(`
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE driver_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
	`, driverID, string(status))
}

func (r *deliveryRepository) ListByStatuses(statuses []domain.DeliveryStatus) ([]domain.Delivery, error) {
	if len(statuses) == 0 {
		return []domain.Delivery{}, nil
	}

	placeholders := make([]string, 0, len(statuses))
	args := make([]any, 0, len(statuses))
	for i, status := range statuses {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, string(status))
	}

	return r.list(`
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE status IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY created_at DESC, id DESC
	`, args...)
}

func (r *deliveryRepository) Save(delivery domain.Delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE deliveries
		SET driver_id = $1,
		    status = $2,
		    assigned_at = $3,
		    picked_up_at = $4,
		    delivered_at = $5,
		    current_lat = $6,
		    current_lng = $7,
		    destination_lat = $8,
		    destination_lng = $9,
		    estimated_distance_km = $10,
		    notes = $11,
		    proof_url = $12,
		    version = version + 1,
		    updated_at = $13
		WHERE id = $14
		  AND version = $15
	`,
		delivery.DriverID, string(delivery.Status),
		nullableTime(delivery.AssignedAt), nullableTime(delivery.PickedUpAt),
		nullableTime(delivery.DeliveredAt),
		delivery.Current.Lat, delivery.Current.Lng,
		delivery.Destination.Lat, delivery.Destination.Lng,
		delivery.EstimatedDistanceKm, delivery.Notes, delivery.ProofURL,
		delivery.UpdatedAt, delivery.ID, delivery.Version,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.deliveryExists(ctx, delivery.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrDeliveryNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *deliveryRepository) deliveryExists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM deliveries WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check delivery exists: %w", err)
}

func (r *deliveryRepository) list(query string, args ...any) ([]domain.Delivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]domain.Delivery, 0)
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery row: %w", err)
		}
		deliveries = append(deliveries, delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery rows: %w", err)
	}

	return deliveries, nil
}

func scanDelivery(row rowScanner) (domain.Delivery, error) {
	var (
		delivery  domain.Delivery
		status    string
		assigned  sql.NullTime
		pickedUp  sql.NullTime
		delivered sql.NullTime
	)

	if err := row.Scan(
		&delivery.ID, &delivery.OrderID, &delivery.DriverID, &status,
		&assigned, &pickedUp, &delivered,
		&delivery.Current.Lat, &delivery.Current.Lng,
		&delivery.Destination.Lat, &delivery.Destination.Lng,
		&delivery.EstimatedDistanceKm, &delivery.Notes, &delivery.ProofURL,
		&delivery.Version, &delivery.CreatedAt, &delivery.UpdatedAt,
	); err != nil {
		return domain.Delivery{}, err
	}

	delivery.Status = domain.DeliveryStatus(status)
	if assigned.Valid {
		delivery.AssignedAt = assigned.Time.UTC()
	}
	if pickedUp.Valid {
		delivery.PickedUpAt = pickedUp.Time.UTC()
	}
	if delivered.Valid {
		delivery.DeliveredAt = delivered.Time.UTC()
	}

	return delivery, nil
}

var _ domain.DeliveryRepository = (*deliveryRepository)(nil)
