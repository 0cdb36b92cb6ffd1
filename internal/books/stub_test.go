package books

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/shelfmark/internal/shared"
)

// memBookRepo is an in-memory RepositoryPort for tests. Ownership scoping
// mirrors the store: every read and write filters on account id.
type memBookRepo struct {
	mu    sync.Mutex
	books map[uuid.UUID]Book
}

func newMemBookRepo() *memBookRepo {
	return &memBookRepo{books: make(map[uuid.UUID]Book)}
}

func (m *memBookRepo) matching(accountID int64, search string) []Book {
	var out []Book
	needle := strings.ToLower(search)
	for _, b := range m.books {
		if b.AccountID != accountID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(b.Title), needle) &&
			!strings.Contains(strings.ToLower(b.Author), needle) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memBookRepo) ListBooks(ctx context.Context, q ListQuery) ([]Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.matching(q.AccountID, q.Search)
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memBookRepo) CountBooks(ctx context.Context, accountID int64, search string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(accountID, search)), nil
}

func (m *memBookRepo) GetBook(ctx context.Context, accountID int64, id uuid.UUID) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok || b.AccountID != accountID {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (m *memBookRepo) CreateBook(ctx context.Context, b *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.books[b.ID] = *b
	return nil
}

func (m *memBookRepo) UpdateBook(ctx context.Context, b *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.books[b.ID]
	if !ok || existing.AccountID != b.AccountID {
		return shared.ErrNotFound
	}
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now()
	m.books[b.ID] = *b
	return nil
}

func (m *memBookRepo) DeleteBook(ctx context.Context, accountID int64, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok || b.AccountID != accountID {
		return shared.ErrNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *memBookRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books)
}

var _ RepositoryPort = (*memBookRepo)(nil)
