package domain

import (
	"errors"
	"time"
)

// ErrInvalidStudentID is returned when a student identifier is not exactly 8 digits.
var ErrInvalidStudentID = errors.New("student id must be exactly 8 digits")

// Student is a billed student record. IsPaid flips to true exactly once per
// billing cycle, on successful settlement.
type Student struct {
	StudentID         string
	FullName          string
	TuitionAmount     int64
	IsPaid            bool
	LastPaymentAmount *int64
	LastPaymentDate   *time.Time
	CreatedAt         time.Time
}

// ValidateStudentID checks the fixed-length numeric student identifier format.
func ValidateStudentID(id string) error {
	if len(id) != 8 {
		return ErrInvalidStudentID
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return ErrInvalidStudentID
		}
	}
	return nil
}
