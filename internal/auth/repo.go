package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfmark/shelfmark/internal/shared"
)

// Repository defines persistence operations for accounts and sessions.
type Repository interface {
	CreateAccount(ctx context.Context, email, passwordDigest string) (*Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	CreateSession(ctx context.Context, token string, accountID int64, ttl time.Duration) error
	ResolveSession(ctx context.Context, token string) (*shared.Identity, error)
	RenewSession(ctx context.Context, token string, ttl time.Duration) error
	RevokeSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// PGRepository implements Repository using PostgreSQL. Expiry arithmetic uses
// the database clock, not the application's, so resolve and renew cannot be
// skewed by a misbehaving client host.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateAccount inserts a new account, translating the unique-email violation
// into shared.ErrEmailTaken.
func (r *PGRepository) CreateAccount(ctx context.Context, email, passwordDigest string) (*Account, error) {
	const query = `
		INSERT INTO accounts (email, password_digest, created_at)
		VALUES ($1, $2, now())
		RETURNING id, email, password_digest, created_at`
	var account Account
	err := r.pool.QueryRow(ctx, query, email, passwordDigest).
		Scan(&account.ID, &account.Email, &account.PasswordDigest, &account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrEmailTaken
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountByEmail fetches an account by normalized email.
func (r *PGRepository) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `SELECT id, email, password_digest, created_at FROM accounts WHERE email = $1`
	var account Account
	err := r.pool.QueryRow(ctx, query, email).
		Scan(&account.ID, &account.Email, &account.PasswordDigest, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateSession persists a session record expiring ttl from the database's
// current time.
func (r *PGRepository) CreateSession(ctx context.Context, token string, accountID int64, ttl time.Duration) error {
	const query = `
		INSERT INTO sessions (id, account_id, expires_at, created_at)
		VALUES ($1, $2, now() + make_interval(secs => $3), now())`
	_, err := r.pool.Exec(ctx, query, token, accountID, ttl.Seconds())
	return err
}

// ResolveSession looks up a live session joined to its owning account.
// Expired or unknown tokens yield shared.ErrNotFound. Side-effect free.
func (r *PGRepository) ResolveSession(ctx context.Context, token string) (*shared.Identity, error) {
	const query = `
		SELECT a.id, a.email
		FROM sessions s
		JOIN accounts a ON a.id = s.account_id
		WHERE s.id = $1 AND s.expires_at > now()`
	var identity shared.Identity
	err := r.pool.QueryRow(ctx, query, token).Scan(&identity.AccountID, &identity.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}

// RenewSession slides the expiry forward to now + ttl. Concurrent renewals of
// the same token are safe: each extends from the database's "now", so last
// write wins without shrinking the window.
func (r *PGRepository) RenewSession(ctx context.Context, token string, ttl time.Duration) error {
	const query = `UPDATE sessions SET expires_at = now() + make_interval(secs => $2) WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, token, ttl.Seconds())
	return err
}

// RevokeSession deletes the session if present. Revoking an unknown token is
// a no-op, not an error.
func (r *PGRepository) RevokeSession(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, token)
	return err
}

// DeleteExpiredSessions removes rows whose expiry has passed and reports how
// many were swept. Resolve already treats such rows as invalid; this only
// keeps the table from growing unbounded.
func (r *PGRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
