package domain

import "time"

// Challenge is the one-time-passcode record guarding a single transaction
// (stored in otp_challenges, keyed by transaction id). The plaintext code is
// never stored, only its hash.
type Challenge struct {
	TransactionID string
	PayerID       string
	CodeHash      string
	Attempts      int
	IsUsed        bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Live reports whether the challenge can still be consumed at the given time.
func (c *Challenge) Live(now time.Time) bool {
	return !c.IsUsed && c.ExpiresAt.After(now)
}
