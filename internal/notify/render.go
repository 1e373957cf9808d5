package notify

import (
	"fmt"
	"strings"
)

// Render produces the email subject and plain-text body for a message.
func Render(msg *Message) (subject, body string) {
	switch msg.Kind {
	case KindOTPCode:
		subject = "Your tuition payment verification code"
		body = fmt.Sprintf(
			"Your one-time verification code is: %s\n\n"+
				"The code is valid for 5 minutes. Do not share it with anyone.\n"+
				"If you did not request a tuition payment, you can ignore this email.\n",
			msg.Code)
	case KindPaymentSuccess:
		var b strings.Builder
		b.WriteString("Your tuition payment was completed successfully.\n\n")
		fmt.Fprintf(&b, "Transaction: %s\n", msg.TransactionID)
		fmt.Fprintf(&b, "Student:     %s\n", msg.StudentID)
		fmt.Fprintf(&b, "Amount:      %d VND\n", msg.Amount)
		if msg.CompletedAt != nil {
			fmt.Fprintf(&b, "Completed:   %s\n", msg.CompletedAt.Format("2006-01-02 15:04:05"))
		}
		subject = "Tuition payment successful"
		body = b.String()
	case KindPaymentFailure:
		var b strings.Builder
		b.WriteString("Your tuition payment could not be completed.\n\n")
		fmt.Fprintf(&b, "Transaction: %s\n", msg.TransactionID)
		fmt.Fprintf(&b, "Student:     %s\n", msg.StudentID)
		if msg.Reason != "" {
			fmt.Fprintf(&b, "Reason:      %s\n", msg.Reason)
		}
		if msg.FailedAt != nil {
			fmt.Fprintf(&b, "Time:        %s\n", msg.FailedAt.Format("2006-01-02 15:04:05"))
		}
		b.WriteString("\nNo money has been moved for this transaction.\n")
		subject = "Tuition payment failed"
		body = b.String()
	default:
		subject = "Tuition payment notification"
		body = "Unrecognized notification."
	}
	return subject, body
}
