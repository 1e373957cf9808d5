package repository

import (
	"context"
	"database/sql"
	"errors"

	"tuitionpay/internal/payer/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a payer repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const payerColumns = `id, username, email, full_name, phone, password_hash, balance, created_at`

func scanPayer(row *sql.Row) (*domain.Payer, error) {
	var p domain.Payer
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.FullName, &p.Phone, &p.PasswordHash, &p.Balance, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetByID returns the payer for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Payer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+payerColumns+` FROM payers WHERE id = $1`, id)
	return scanPayer(row)
}

// GetByUsername returns the payer with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.Payer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+payerColumns+` FROM payers WHERE username = $1`, username)
	return scanPayer(row)
}

// Create persists the payer. The payer must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Payer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payers (id, username, email, full_name, phone, password_hash, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Username, p.Email, p.FullName, p.Phone, p.PasswordHash, p.Balance, p.CreatedAt)
	return err
}

// ConditionalDebit applies `balance = balance - amount` guarded by `balance >= amount`
// in a single UPDATE so two concurrent debits can never both succeed past the funds.
// ok=false means the guard did not hold (or the payer does not exist).
func (r *PostgresRepository) ConditionalDebit(ctx context.Context, id string, amount int64) (int64, bool, error) {
	var newBalance int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE payers SET balance = balance - $2 WHERE id = $1 AND balance >= $2 RETURNING balance`,
		id, amount).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return newBalance, true, nil
}
