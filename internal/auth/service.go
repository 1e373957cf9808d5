// Package auth authenticates payers and issues bearer tokens. The settlement
// engine trusts the identity resolved here without re-authenticating.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	payerdomain "tuitionpay/internal/payer/domain"
	"tuitionpay/internal/security"
)

// Sentinel errors for the auth service; the handler maps them to HTTP codes.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// PayerRepo is the minimal payer repository needed by the auth service.
type PayerRepo interface {
	GetByID(ctx context.Context, id string) (*payerdomain.Payer, error)
	GetByUsername(ctx context.Context, username string) (*payerdomain.Payer, error)
}

// LoginResult holds the outcome of a successful login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	Payer       *payerdomain.Payer
}

// Service implements password login and bearer-token resolution.
type Service struct {
	payerRepo PayerRepo
	hasher    *security.Hasher
	tokens    *security.TokenProvider
}

// NewService returns an auth service with the given dependencies.
func NewService(payerRepo PayerRepo, hasher *security.Hasher, tokens *security.TokenProvider) *Service {
	return &Service{payerRepo: payerRepo, hasher: hasher, tokens: tokens}
}

// Login authenticates with username/password and returns a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	payer, err := s.payerRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if payer == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(payer.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(payer.ID, payer.Username)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		Payer:       payer,
	}, nil
}

// Resolve validates a bearer token and loads the payer it names. Returns nil
// (no error) when the token is invalid or the payer no longer exists.
func (s *Service) Resolve(ctx context.Context, token string) (*payerdomain.Payer, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil
	}
	return s.payerRepo.GetByID(ctx, claims.Subject)
}
