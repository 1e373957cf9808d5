package repository

import (
	"context"
	"database/sql"

	"tuitionpay/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists one audit entry.
func (r *PostgresRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, payer_id, student_id, action, resource, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.PayerID, entry.StudentID, entry.Action, entry.Resource, entry.Metadata, entry.CreatedAt)
	return err
}

// ListByPayer returns the payer's latest audit entries, newest first.
func (r *PostgresRepository) ListByPayer(ctx context.Context, payerID string, limit int) ([]domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, payer_id, student_id, action, resource, metadata, created_at
		 FROM audit_log WHERE payer_id = $1 ORDER BY created_at DESC LIMIT $2`,
		payerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.ID, &e.PayerID, &e.StudentID, &e.Action, &e.Resource, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
