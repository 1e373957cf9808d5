// Package notify carries outcome and OTP emails from the settlement engine to
// the delivery worker. Dispatch is fire-and-forget: a payment's result never
// depends on email delivery.
package notify

import "time"

// Kind discriminates the message payload.
type Kind string

const (
	KindOTPCode        Kind = "otp_code"
	KindPaymentSuccess Kind = "payment_success"
	KindPaymentFailure Kind = "payment_failure"
)

// Message is one email to deliver. Only the fields relevant to Kind are set.
type Message struct {
	Kind  Kind   `json:"kind"`
	Email string `json:"email"`

	// otp_code
	Code string `json:"code,omitempty"`

	// payment_success / payment_failure
	TransactionID string     `json:"transaction_id,omitempty"`
	StudentID     string     `json:"student_id,omitempty"`
	Amount        int64      `json:"amount,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
}
