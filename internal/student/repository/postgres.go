package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tuitionpay/internal/student/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a student repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const studentColumns = `student_id, full_name, tuition_amount, is_paid, last_payment_amount, last_payment_date, created_at`

// GetByID returns the student for studentID, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, studentID string) (*domain.Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE student_id = $1`, studentID)
	var s domain.Student
	err := row.Scan(&s.StudentID, &s.FullName, &s.TuitionAmount, &s.IsPaid, &s.LastPaymentAmount, &s.LastPaymentDate, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// List returns students ordered by student id, optionally filtered by paid status.
func (r *PostgresRepository) List(ctx context.Context, paid *bool) ([]domain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	args := []any{}
	if paid != nil {
		query += ` WHERE is_paid = $1`
		args = append(args, *paid)
	}
	query += ` ORDER BY student_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Student
	for rows.Next() {
		var s domain.Student
		if err := rows.Scan(&s.StudentID, &s.FullName, &s.TuitionAmount, &s.IsPaid, &s.LastPaymentAmount, &s.LastPaymentDate, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the student record.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Student) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO students (student_id, full_name, tuition_amount, is_paid, last_payment_amount, last_payment_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.StudentID, s.FullName, s.TuitionAmount, s.IsPaid, s.LastPaymentAmount, s.LastPaymentDate, s.CreatedAt)
	return err
}

// MarkPaid flips is_paid and records the settlement amount and time.
func (r *PostgresRepository) MarkPaid(ctx context.Context, studentID string, amount int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE students SET is_paid = TRUE, last_payment_amount = $2, last_payment_date = $3 WHERE student_id = $1`,
		studentID, amount, at)
	return err
}
