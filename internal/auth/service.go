package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/shelfmark/shelfmark/internal/shared"
)

// DefaultSessionTTL is the sliding session lifetime.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Service wraps credential verification and session lifecycle rules.
type Service struct {
	repo Repository
	ttl  time.Duration
}

// NewService constructs a new Service. A non-positive ttl falls back to
// DefaultSessionTTL.
func NewService(repo Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{repo: repo, ttl: ttl}
}

// SessionTTL exposes the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// NormalizeEmail trims surrounding whitespace and case-folds the address so
// lookups and the unique index see one canonical spelling.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// SignUp registers a new account and opens its first session. Duplicate
// emails surface as shared.ErrEmailTaken.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Account, string, error) {
	digest, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	account, err := s.repo.CreateAccount(ctx, NormalizeEmail(email), digest)
	if err != nil {
		return nil, "", err
	}
	token, err := s.openSession(ctx, account.ID)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// SignIn validates credentials and opens a session. Unknown email and wrong
// password both return shared.ErrInvalidCredentials so callers cannot tell
// which field was wrong.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Account, string, error) {
	account, err := s.repo.FindAccountByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, "", shared.ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !VerifyPassword(password, account.PasswordDigest) {
		return nil, "", shared.ErrInvalidCredentials
	}
	token, err := s.openSession(ctx, account.ID)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// Resolve maps a session token to an identity, shared.ErrNotFound when the
// token is unknown or expired. Never renews.
func (s *Service) Resolve(ctx context.Context, token string) (*shared.Identity, error) {
	if token == "" {
		return nil, shared.ErrNotFound
	}
	return s.repo.ResolveSession(ctx, token)
}

// Renew slides the session expiry forward. Only called for tokens that just
// resolved successfully.
func (s *Service) Renew(ctx context.Context, token string) error {
	return s.repo.RenewSession(ctx, token, s.ttl)
}

// Logout revokes the session. Idempotent: revoking an unknown or already
// revoked token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.RevokeSession(ctx, token)
}

func (s *Service) openSession(ctx context.Context, accountID int64) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	if err := s.repo.CreateSession(ctx, token, accountID, s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// newSessionToken returns 256 bits of crypto/rand entropy, base64url encoded.
// Collisions with live tokens are ruled out by entropy, not checked.
func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
