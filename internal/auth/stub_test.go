package auth

import (
	"context"
	"sync"
	"time"

	"github.com/shelfmark/shelfmark/internal/shared"
)

// memRepo is an in-memory Repository for tests. It mirrors the store
// semantics: unique emails, expiry checked against the clock on resolve,
// idempotent revoke.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[string]*Account
	sessions map[string]*Session
	renewals int
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts: make(map[string]*Account),
		sessions: make(map[string]*Session),
	}
}

func (m *memRepo) CreateAccount(ctx context.Context, email, passwordDigest string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[email]; exists {
		return nil, shared.ErrEmailTaken
	}
	m.nextID++
	account := &Account{ID: m.nextID, Email: email, PasswordDigest: passwordDigest, CreatedAt: time.Now()}
	m.accounts[email] = account
	return account, nil
}

func (m *memRepo) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (m *memRepo) CreateSession(ctx context.Context, token string, accountID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = &Session{Token: token, AccountID: accountID, ExpiresAt: time.Now().Add(ttl), CreatedAt: time.Now()}
	return nil
}

func (m *memRepo) ResolveSession(ctx context.Context, token string) (*shared.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, shared.ErrNotFound
	}
	for _, account := range m.accounts {
		if account.ID == sess.AccountID {
			return &shared.Identity{AccountID: account.ID, Email: account.Email}, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) RenewSession(ctx context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renewals++
	if sess, ok := m.sessions[token]; ok {
		sess.ExpiresAt = time.Now().Add(ttl)
	}
	return nil
}

func (m *memRepo) RevokeSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var swept int64
	for token, sess := range m.sessions {
		if !sess.ExpiresAt.After(time.Now()) {
			delete(m.sessions, token)
			swept++
		}
	}
	return swept, nil
}

// expireSession rewinds a session's expiry so the row lingers but no longer
// resolves.
func (m *memRepo) expireSession(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[token]; ok {
		sess.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

func (m *memRepo) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *memRepo) renewalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renewals
}

func (m *memRepo) sessionExpiry(token string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return time.Time{}, false
	}
	return sess.ExpiresAt, true
}

var _ Repository = (*memRepo)(nil)
