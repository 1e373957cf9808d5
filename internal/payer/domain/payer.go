package domain

import "time"

// Payer is an authenticated account holder who settles tuition bills.
// Balance is stored in the smallest currency unit (whole VND) as an integer;
// it is mutated only through the repository's conditional debit.
type Payer struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Phone        string
	PasswordHash string
	Balance      int64
	CreatedAt    time.Time
}
