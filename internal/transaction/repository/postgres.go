package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tuitionpay/internal/transaction/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a transaction repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const txColumns = `id, payer_id, student_id, amount, type, status, created_at, expires_at, completed_at`

func scanTx(scan func(dest ...any) error) (*domain.Transaction, error) {
	var t domain.Transaction
	err := scan(&t.ID, &t.PayerID, &t.StudentID, &t.Amount, &t.Type, &t.Status, &t.CreatedAt, &t.ExpiresAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Create persists the transaction. The transaction must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, payer_id, student_id, amount, type, status, created_at, expires_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.PayerID, t.StudentID, t.Amount, t.Type, t.Status, t.CreatedAt, t.ExpiresAt, t.CompletedAt)
	return err
}

// GetByID returns the transaction for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	return scanTx(row.Scan)
}

// FindActiveByStudent returns an unexpired PENDING/PROCESSING transaction for the student, or nil.
func (r *PostgresRepository) FindActiveByStudent(ctx context.Context, studentID string, now time.Time) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE student_id = $1 AND status IN ('PENDING', 'PROCESSING') AND expires_at > $2
		 ORDER BY created_at DESC LIMIT 1`,
		studentID, now)
	return scanTx(row.Scan)
}

// SetStatus transitions a non-terminal transaction. The status guard makes
// terminal states stick even under racing writers.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = $2 WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')`,
		id, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Complete moves a non-terminal transaction to a terminal status with completed_at.
func (r *PostgresRepository) Complete(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')`,
		id, status, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete removes the transaction row. The OTP challenge row, if any, goes with it (ON DELETE CASCADE).
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}

// ListByPayer returns the payer's transactions, newest first.
func (r *PostgresRepository) ListByPayer(ctx context.Context, payerID string, offset, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE payer_id = $1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		payerID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTx(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CountByPayer returns the total number of the payer's transactions.
func (r *PostgresRepository) CountByPayer(ctx context.Context, payerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE payer_id = $1`, payerID).Scan(&n)
	return n, err
}
