package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

const paymentColumns = `
	id, reference, order_id, customer_id, amount_minor, currency, status,
	gateway_order_id, gateway_payment_id, status_code, status_message,
	signature, method, card_holder_name, card_no, card_expiry,
	customer_token, recurring_token, created_at, updated_at, completed_at
`

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		payment.ID, payment.Reference, payment.OrderID, payment.CustomerID,
		payment.AmountMinor, payment.Currency, string(payment.Status),
		payment.GatewayOrderID, payment.GatewayPaymentID, payment.StatusCode,
		payment.StatusMessage, payment.Signature, payment.Method,
		payment.CardHolderName, payment.CardNo, payment.CardExpiry,
		payment.CustomerToken, payment.RecurringToken,
		payment.CreatedAt, payment.UpdatedAt, nullableTime(payment.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) GetByReference(reference string) (domain.Payment, error) {
	return r.getByField("reference", reference)
}

func (r *paymentRepository) GetByGatewayOrderID(gatewayOrderID string) (domain.Payment, error) {
	return r.getByField("gateway_order_id", gatewayOrderID)
}

func (r *paymentRepository) getByField(field, value string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	payment, err := scanPayment(r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE `+field+` = $1
	`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) ListByOrder(orderID string) ([]domain.Payment, error) {
	return r.list(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
	`, orderID)
}

func (r *paymentRepository) ListByCustomer(customerID string) ([]domain.Payment, error) {
	return r.list(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`, customerID)
}

func (r *paymentRepository) HasSuccessfulForOrder(orderID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE order_id = $1 AND status = $2
		)
	`, orderID, string(domain.PaymentStatusSuccess)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check successful payment: %w", err)
	}

	return exists, nil
}

func (r *paymentRepository) Save(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    gateway_payment_id = $2,
		    status_code = $3,
		    status_message = $4,
		    signature = $5,
		    method = $6,
		    card_holder_name = $7,
		    card_no = $8,
		    card_expiry = $9,
		    customer_token = $10,
		    recurring_token = $11,
		    updated_at = $12,
		    completed_at = $13
		WHERE id = $14
	`,
		string(payment.Status), payment.GatewayPaymentID, payment.StatusCode,
		payment.StatusMessage, payment.Signature, payment.Method,
		payment.CardHolderName, payment.CardNo, payment.CardExpiry,
		payment.CustomerToken, payment.RecurringToken,
		payment.UpdatedAt, nullableTime(payment.CompletedAt), payment.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}

	return nil
}

func (r *paymentRepository) list(query string, args ...any) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		payment   domain.Payment
		status    string
		completed sql.NullTime
	)

	if err := row.Scan(
		&payment.ID, &payment.Reference, &payment.OrderID, &payment.CustomerID,
		&payment.AmountMinor, &payment.Currency, &status,
		&payment.GatewayOrderID, &payment.GatewayPaymentID, &payment.StatusCode,
		&payment.StatusMessage, &payment.Signature, &payment.Method,
		&payment.CardHolderName, &payment.CardNo, &payment.CardExpiry,
		&payment.CustomerToken, &payment.RecurringToken,
		&payment.CreatedAt, &payment.UpdatedAt, &completed,
	); err != nil {
		return domain.Payment{}, err
	}

	payment.Status = domain.PaymentStatus(status)
	if completed.Valid {
		payment.CompletedAt = completed.Time.UTC()
	}

	return payment, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
