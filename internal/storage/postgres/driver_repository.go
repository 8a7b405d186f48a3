package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

const driverColumns = `
	id, name, depot_id, license_number, vehicle_number, status,
	current_lat, current_lng, last_location_at, active, created_at, updated_at
`

type driverRepository struct {
	db *sql.DB
}

// NewDriverRepository создаёт PostgreSQL-реализацию DriverRepository.
func NewDriverRepository(store *Store) domain.DriverRepository {
	return &driverRepository{db: store.DB()}
}

func (r *driverRepository) Create(driver domain.Driver) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drivers (`+driverColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		driver.ID, driver.Name, driver.DepotID, driver.LicenseNumber,
		driver.VehicleNumber, string(driver.Status),
		driver.Current.Lat, driver.Current.Lng,
		nullableTime(driver.LastLocationAt), driver.Active,
		driver.CreatedAt, driver.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert driver: %w", err)
	}

	return nil
}

func (r *driverRepository) Get(id string) (domain.Driver, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	driver, err := scanDriver(r.db.QueryRowContext(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Driver{}, domain.ErrDriverNotFound
		}
		return domain.Driver{}, fmt.Errorf("select driver: %w", err)
	}

	return driver, nil
}

func (r *driverRepository) ListAvailableByDepot(depotID string) ([]domain.Driver, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE depot_id = $1
		  AND status = $2
		  AND active
		ORDER BY id ASC
	`, depotID, string(domain.DriverStatusAvailable))
	if err != nil {
		return nil, fmt.Errorf("list available drivers: %w", err)
	}
	defer rows.Close()

	drivers := make([]domain.Driver, 0)
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver row: %w", err)
		}
		drivers = append(drivers, driver)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate driver rows: %w", err)
	}

	return drivers, nil
}

func (r *driverRepository) Save(driver domain.Driver) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET name = $1,
		    depot_id = $2,
		    license_number = $3,
		    vehicle_number = $4,
		    status = $5,
		    current_lat = $6,
		    current_lng = $7,
		    last_location_at = $8,
		    active = $9,
		    updated_at = $10
		WHERE id = $11
	`,
		driver.Name, driver.DepotID, driver.LicenseNumber, driver.VehicleNumber,
		string(driver.Status), driver.Current.Lat, driver.Current.Lng,
		nullableTime(driver.LastLocationAt), driver.Active,
		driver.UpdatedAt, driver.ID,
	)
	if err != nil {
		return fmt.Errorf("update driver: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrDriverNotFound
	}

	return nil
}

func scanDriver(row rowScanner) (domain.Driver, error) {
	var (
		driver       domain.Driver
		status       string
		lastLocation sql.NullTime
	)

	if err := row.Scan(
		&driver.ID, &driver.Name, &driver.DepotID, &driver.LicenseNumber,
		&driver.VehicleNumber, &status,
		&driver.Current.Lat, &driver.Current.Lng,
		&lastLocation, &driver.Active, &driver.CreatedAt, &driver.UpdatedAt,
	); err != nil {
		return domain.Driver{}, err
	}

	driver.Status = domain.DriverStatus(status)
	if lastLocation.Valid {
		driver.LastLocationAt = lastLocation.Time.UTC()
	}

	return driver, nil
}

var _ domain.DriverRepository = (*driverRepository)(nil)
