package notify

import (
	"strings"
	"testing"
	"time"
)

func TestRenderOTPCode(t *testing.T) {
	subject, body := Render(&Message{Kind: KindOTPCode, Code: "482913"})
	if !strings.Contains(subject, "verification code") {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "482913") {
		t.Errorf("body missing code: %q", body)
	}
}

func TestRenderPaymentSuccess(t *testing.T) {
	done := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	subject, body := Render(&Message{
		Kind:          KindPaymentSuccess,
		TransactionID: "tx-1",
		StudentID:     "52300001",
		Amount:        15_000_000,
		CompletedAt:   &done,
	})
	if subject != "Tuition payment successful" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"tx-1", "52300001", "15000000 VND", "2026-03-14 09:30:00"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderPaymentFailureOmitsEmptyReason(t *testing.T) {
	_, body := Render(&Message{
		Kind:          KindPaymentFailure,
		TransactionID: "tx-2",
		StudentID:     "52300002",
	})
	if strings.Contains(body, "Reason:") {
		t.Errorf("empty reason rendered:\n%s", body)
	}
	if !strings.Contains(body, "No money has been moved") {
		t.Errorf("failure body missing no-movement notice:\n%s", body)
	}
}

func TestRenderUnknownKind(t *testing.T) {
	subject, _ := Render(&Message{Kind: Kind("bogus")})
	if subject != "Tuition payment notification" {
		t.Errorf("subject = %q", subject)
	}
}
