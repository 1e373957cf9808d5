package repository

import (
	"context"
	"database/sql"
	"errors"

	"tuitionpay/internal/otp/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an OTP challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the challenge. Fails if a row already exists for the transaction.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (transaction_id, payer_id, code_hash, attempts, is_used, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.TransactionID, c.PayerID, c.CodeHash, c.Attempts, c.IsUsed, c.ExpiresAt, c.CreatedAt)
	return err
}

// GetByTransaction returns the challenge for the transaction, or nil if not found.
func (r *PostgresRepository) GetByTransaction(ctx context.Context, transactionID string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT transaction_id, payer_id, code_hash, attempts, is_used, expires_at, created_at
		 FROM otp_challenges WHERE transaction_id = $1`, transactionID)
	var c domain.Challenge
	err := row.Scan(&c.TransactionID, &c.PayerID, &c.CodeHash, &c.Attempts, &c.IsUsed, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// IncrementAttempts bumps the attempt counter in one UPDATE so that two
// concurrent verify calls each pay for their own attempt.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, transactionID string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE transaction_id = $1 RETURNING attempts`,
		transactionID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return attempts, nil
}

// MarkUsed consumes the challenge.
func (r *PostgresRepository) MarkUsed(ctx context.Context, transactionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET is_used = TRUE WHERE transaction_id = $1`, transactionID)
	return err
}

// Replace upserts a fresh challenge over an expired or used one.
func (r *PostgresRepository) Replace(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (transaction_id, payer_id, code_hash, attempts, is_used, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (transaction_id) DO UPDATE
		 SET payer_id = EXCLUDED.payer_id, code_hash = EXCLUDED.code_hash, attempts = EXCLUDED.attempts,
		     is_used = EXCLUDED.is_used, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		c.TransactionID, c.PayerID, c.CodeHash, c.Attempts, c.IsUsed, c.ExpiresAt, c.CreatedAt)
	return err
}
