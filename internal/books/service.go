package books

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort defines data access methods for books.
type RepositoryPort interface {
	ListBooks(ctx context.Context, q ListQuery) ([]Book, error)
	CountBooks(ctx context.Context, accountID int64, search string) (int, error)
	GetBook(ctx context.Context, accountID int64, id uuid.UUID) (*Book, error)
	CreateBook(ctx context.Context, b *Book) error
	UpdateBook(ctx context.Context, b *Book) error
	DeleteBook(ctx context.Context, accountID int64, id uuid.UUID) error
}

// Service handles book shelf business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns one page of books plus the total for pagination.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Book, int, error) {
	total, err := s.repo.CountBooks(ctx, q.AccountID, q.Search)
	if err != nil {
		return nil, 0, err
	}
	list, err := s.repo.ListBooks(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get fetches one owned book.
func (s *Service) Get(ctx context.Context, accountID int64, id uuid.UUID) (*Book, error) {
	return s.repo.GetBook(ctx, accountID, id)
}

// Create adds a book to the shelf.
func (s *Service) Create(ctx context.Context, b *Book) error {
	return s.repo.CreateBook(ctx, b)
}

// Update rewrites an owned book.
func (s *Service) Update(ctx context.Context, b *Book) error {
	return s.repo.UpdateBook(ctx, b)
}

// Delete removes an owned book.
func (s *Service) Delete(ctx context.Context, accountID int64, id uuid.UUID) error {
	return s.repo.DeleteBook(ctx, accountID, id)
}
