package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudedbasement/control-panel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create records a payment
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO panel.payments (id, user_id, status, amount_cents, plan, interval)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query, p.ID, p.UserID, p.Status, p.AmountCents, p.Plan, p.Interval)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// GetLatestSucceededByUser returns the user's most recent succeeded payment
func (r *PaymentRepository) GetLatestSucceededByUser(ctx context.Context, userID string) (*models.Payment, error) {
	query := `
		SELECT id, user_id, status, amount_cents, plan, interval, created_at
		FROM panel.payments
		WHERE user_id = $1 AND status = 'succeeded'
		ORDER BY created_at DESC
		LIMIT 1
	`

	p := &models.Payment{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.UserID, &p.Status, &p.AmountCents, &p.Plan, &p.Interval, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

// ListByUser returns a user's payment history, newest first
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]*models.Payment, error) {
	query := `
		SELECT id, user_id, status, amount_cents, plan, interval, created_at
		FROM panel.payments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		err := rows.Scan(&p.ID, &p.UserID, &p.Status, &p.AmountCents, &p.Plan, &p.Interval, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
