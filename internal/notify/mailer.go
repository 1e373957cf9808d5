package notify

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// Mailer delivers rendered messages over SMTP. Used by cmd/worker only; the
// settlement path never talks SMTP directly.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	// Enabled=false logs the would-be delivery instead of sending. For local
	// dev without SMTP credentials.
	Enabled bool

	retryCount int
	retryDelay time.Duration
}

// NewMailer returns a Mailer with 3 delivery attempts spaced 5s apart.
func NewMailer(host string, port int, username, password string, useTLS, enabled bool) *Mailer {
	return &Mailer{
		Host:       host,
		Port:       port,
		Username:   username,
		Password:   password,
		UseTLS:     useTLS,
		Enabled:    enabled,
		retryCount: 3,
		retryDelay: 5 * time.Second,
	}
}

// Deliver renders and sends the message, retrying transient failures. Returns
// the last error when all attempts fail.
func (m *Mailer) Deliver(msg *Message) error {
	if msg == nil || msg.Email == "" {
		return nil
	}
	subject, body := Render(msg)
	if !m.Enabled {
		log.Printf("mailer: disabled, would send %q to %s", subject, msg.Email)
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < m.retryCount; attempt++ {
		if attempt > 0 {
			time.Sleep(m.retryDelay)
		}
		if err := m.send(msg.Email, subject, body); err != nil {
			lastErr = err
			log.Printf("mailer: attempt %d to %s failed: %v", attempt+1, msg.Email, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("mailer: giving up on %s after %d attempts: %w", msg.Email, m.retryCount, lastErr)
}

func (m *Mailer) send(to, subject, body string) error {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	c, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if m.UseTLS {
		if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return err
		}
	}
	if m.Username != "" && m.Password != "" {
		auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(m.Username); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		m.Username, to, subject)
	if _, err := w.Write([]byte(headers + body)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
