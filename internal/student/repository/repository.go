package repository

import (
	"context"
	"time"

	"tuitionpay/internal/student/domain"
)

// Repository defines persistence for student tuition records.
type Repository interface {
	GetByID(ctx context.Context, studentID string) (*domain.Student, error)
	// List returns students, optionally filtered by paid status (nil = all).
	List(ctx context.Context, paid *bool) ([]domain.Student, error)
	Create(ctx context.Context, s *domain.Student) error
	// MarkPaid sets is_paid and the last-payment fields. Must only be called
	// while the caller holds the student's settlement lock.
	MarkPaid(ctx context.Context, studentID string, amount int64, at time.Time) error
}
