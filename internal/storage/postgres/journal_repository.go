package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

type journalRepository struct {
	db *sql.DB
}

// NewNotificationJournal создаёт PostgreSQL-реализацию NotificationJournal.
func NewNotificationJournal(store *Store) domain.NotificationJournal {
	return &journalRepository{db: store.DB()}
}

func (r *journalRepository) Record(entry domain.NotificationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// Повторная запись той же тройки не ошибка: конкурирующие обработчики
	// одного уведомления сходятся к одной журнальной записи.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_journal (
			id, gateway_order_id, status_code, signature, outcome, ttl_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (gateway_order_id, status_code, signature) DO NOTHING
	`,
		entry.ID, entry.GatewayOrderID, entry.StatusCode, entry.Signature,
		entry.Outcome, entry.TTLAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	return nil
}

func (r *journalRepository) Seen(gatewayOrderID string, statusCode int32, signature string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notification_journal
			WHERE gateway_order_id = $1
			  AND status_code = $2
			  AND signature = $3
			  AND ttl_at > $4
		)
	`, gatewayOrderID, statusCode, signature, time.Now().UTC()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check notification seen: %w", err)
	}

	return exists, nil
}

func (r *journalRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)

	if limit > 0 {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM notification_journal
			WHERE id IN (
				SELECT id
				FROM notification_journal
				WHERE ttl_at <= $1
				ORDER BY ttl_at ASC
				LIMIT $2
			)
		`, before, limit)
	} else {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM notification_journal
			WHERE ttl_at <= $1
		`, before)
	}
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal rows affected: %w", err)
	}

	return int(affected), nil
}

var _ domain.NotificationJournal = (*journalRepository)(nil)
