package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/shelfmark/internal/auth"
	"github.com/shelfmark/shelfmark/internal/books"
	"github.com/shelfmark/shelfmark/internal/isbn"
	"github.com/shelfmark/shelfmark/internal/shared"
	"github.com/shelfmark/shelfmark/internal/view"
	_ "github.com/shelfmark/shelfmark/testing"
)

// memAuthRepo backs the auth service for router tests.
type memAuthRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[string]*auth.Account
	sessions map[string]sessionRow
}

type sessionRow struct {
	accountID int64
	expiresAt time.Time
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{accounts: make(map[string]*auth.Account), sessions: make(map[string]sessionRow)}
}

func (m *memAuthRepo) CreateAccount(ctx context.Context, email, passwordDigest string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[email]; exists {
		return nil, shared.ErrEmailTaken
	}
	m.nextID++
	account := &auth.Account{ID: m.nextID, Email: email, PasswordDigest: passwordDigest, CreatedAt: time.Now()}
	m.accounts[email] = account
	return account, nil
}

func (m *memAuthRepo) FindAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (m *memAuthRepo) CreateSession(ctx context.Context, token string, accountID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = sessionRow{accountID: accountID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memAuthRepo) ResolveSession(ctx context.Context, token string) (*shared.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.sessions[token]
	if !ok || !row.expiresAt.After(time.Now()) {
		return nil, shared.ErrNotFound
	}
	for _, account := range m.accounts {
		if account.ID == row.accountID {
			return &shared.Identity{AccountID: account.ID, Email: account.Email}, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memAuthRepo) RenewSession(ctx context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.sessions[token]; ok {
		row.expiresAt = time.Now().Add(ttl)
		m.sessions[token] = row
	}
	return nil
}

func (m *memAuthRepo) RevokeSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memAuthRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var swept int64
	for token, row := range m.sessions {
		if !row.expiresAt.After(time.Now()) {
			delete(m.sessions, token)
			swept++
		}
	}
	return swept, nil
}

var _ auth.Repository = (*memAuthRepo)(nil)

// routerBookRepo is the minimal shelf store the router tests need: per-account
// listing, nothing else.
type routerBookRepo struct {
	mu    sync.Mutex
	books []books.Book
}

func newRouterBookRepo() *routerBookRepo {
	return &routerBookRepo{}
}

func (r *routerBookRepo) ListBooks(ctx context.Context, q books.ListQuery) ([]books.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []books.Book
	for _, b := range r.books {
		if b.AccountID == q.AccountID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *routerBookRepo) CountBooks(ctx context.Context, accountID int64, search string) (int, error) {
	list, _ := r.ListBooks(ctx, books.ListQuery{AccountID: accountID})
	return len(list), nil
}

func (r *routerBookRepo) GetBook(ctx context.Context, accountID int64, id uuid.UUID) (*books.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.books {
		if b.ID == id && b.AccountID == accountID {
			return &b, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *routerBookRepo) CreateBook(ctx context.Context, b *books.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	r.books = append(r.books, *b)
	return nil
}

func (r *routerBookRepo) UpdateBook(ctx context.Context, b *books.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.books {
		if r.books[i].ID == b.ID && r.books[i].AccountID == b.AccountID {
			r.books[i] = *b
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *routerBookRepo) DeleteBook(ctx context.Context, accountID int64, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.books {
		if r.books[i].ID == id && r.books[i].AccountID == accountID {
			r.books = append(r.books[:i], r.books[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

var _ books.RepositoryPort = (*routerBookRepo)(nil)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "development", AppRequestTimeout: 30 * time.Second, SessionTTL: time.Hour, CSRFSecret: "test-only-secret"}

	templates, err := view.NewEngine()
	require.NoError(t, err)
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authService := auth.NewService(newMemAuthRepo(), cfg.SessionTTL)
	authHandler := auth.NewHandler(logger, authService, templates, csrfManager, nil, false)

	booksService := books.NewService(newRouterBookRepo())
	lookup := isbn.NewService(isbn.NewClient("http://127.0.0.1:0"), nil)
	booksHandler := books.NewHandler(logger, booksService, lookup, templates, csrfManager)

	return NewRouter(RouterParams{
		Logger:       logger,
		Config:       cfg,
		Templates:    templates,
		AuthService:  authService,
		CSRFManager:  csrfManager,
		AuthHandler:  authHandler,
		BooksHandler: booksHandler,
	})
}

var csrfFieldRe = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// fetchCSRF performs a GET and returns the form token plus the cookies to
// replay on the follow-up POST.
func fetchCSRF(t *testing.T, router http.Handler, path string) (string, []*http.Cookie) {
	t.Helper()
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, res.Code)

	match := csrfFieldRe.FindStringSubmatch(res.Body.String())
	require.Len(t, match, 2)
	return match[1], res.Result().Cookies()
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
}

func TestRootRedirectsAnonymousToWelcome(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/welcome", res.Header().Get("Location"))
}

func TestBooksRequireAuthentication(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/books", nil))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
}

func TestPostWithoutCSRFTokenIsForbidden(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{}
	form.Set("email", "a@x.com")
	form.Set("password", "longenough1")
	form.Set("confirm", "longenough1")
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestSignupThenBrowseShelf(t *testing.T) {
	router := newTestRouter(t)
	csrfToken, cookies := fetchCSRF(t, router, "/auth/signup")

	form := url.Values{}
	form.Set("email", "a@x.com")
	form.Set("password", "longenough1")
	form.Set("confirm", "longenough1")
	form.Set("csrf_token", csrfToken)
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusSeeOther, res.Code)

	var session *http.Cookie
	for _, cookie := range res.Result().Cookies() {
		if cookie.Name == shared.SessionCookieName {
			session = cookie
		}
	}
	require.NotNil(t, session)

	// The fresh session opens the shelf.
	shelfReq := httptest.NewRequest(http.MethodGet, "/books", nil)
	shelfReq.AddCookie(session)
	shelfRes := httptest.NewRecorder()
	router.ServeHTTP(shelfRes, shelfReq)

	assert.Equal(t, http.StatusOK, shelfRes.Code)
	assert.Contains(t, shelfRes.Body.String(), "a@x.com")

	// And the root now routes straight to it.
	rootReq := httptest.NewRequest(http.MethodGet, "/", nil)
	rootReq.AddCookie(session)
	rootRes := httptest.NewRecorder()
	router.ServeHTTP(rootRes, rootReq)
	assert.Equal(t, http.StatusSeeOther, rootRes.Code)
	assert.Equal(t, "/books", rootRes.Header().Get("Location"))
}

func TestStaleSessionCookieClearedOnAnonymousPage(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/welcome", nil)
	req.AddCookie(shared.SessionCookie("no-such-token", time.Hour, false))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	var cleared bool
	for _, cookie := range res.Result().Cookies() {
		if cookie.Name == shared.SessionCookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestSecurityHeadersPresent(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
}

func TestStaticAssetsCached(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "public, max-age=3600", res.Header().Get("Cache-Control"))
}
