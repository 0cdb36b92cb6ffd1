package books

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfmark/shelfmark/internal/shared"
)

// Repository provides PostgreSQL backed persistence. Every query is scoped by
// account id so one account can never touch another's rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Whitelisted ORDER BY clauses; the sort key never reaches SQL as text.
var sortClauses = map[string]string{
	"created_at": "created_at DESC",
	"title":      "title ASC",
	"author":     "author ASC",
	"rating":     "rating DESC, created_at DESC",
}

const bookColumns = "id, account_id, title, author, isbn, notes, rating, created_at, updated_at"

// ListBooks returns one page of the account's books.
func (r *Repository) ListBooks(ctx context.Context, q ListQuery) ([]Book, error) {
	orderBy, ok := sortClauses[q.Sort]
	if !ok {
		orderBy = sortClauses["created_at"]
	}
	query := `SELECT ` + bookColumns + ` FROM books
		WHERE account_id = $1 AND ($2 = '' OR title ILIKE '%' || $2 || '%' OR author ILIKE '%' || $2 || '%')
		ORDER BY ` + orderBy + ` LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, q.AccountID, q.Search, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Title, &b.Author, &b.ISBN, &b.Notes, &b.Rating, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// CountBooks returns the total matching rows for pagination.
func (r *Repository) CountBooks(ctx context.Context, accountID int64, search string) (int, error) {
	const query = `SELECT count(*) FROM books
		WHERE account_id = $1 AND ($2 = '' OR title ILIKE '%' || $2 || '%' OR author ILIKE '%' || $2 || '%')`
	var total int
	if err := r.pool.QueryRow(ctx, query, accountID, search).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// GetBook fetches one book owned by the account.
func (r *Repository) GetBook(ctx context.Context, accountID int64, id uuid.UUID) (*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE account_id = $1 AND id = $2`
	var b Book
	err := r.pool.QueryRow(ctx, query, accountID, id).
		Scan(&b.ID, &b.AccountID, &b.Title, &b.Author, &b.ISBN, &b.Notes, &b.Rating, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// CreateBook inserts a new book and fills in the generated fields.
func (r *Repository) CreateBook(ctx context.Context, b *Book) error {
	const query = `
		INSERT INTO books (id, account_id, title, author, isbn, notes, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at`
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, query, b.ID, b.AccountID, b.Title, b.Author, b.ISBN, b.Notes, b.Rating).
		Scan(&b.CreatedAt, &b.UpdatedAt)
}

// UpdateBook rewrites the editable fields of an owned book.
func (r *Repository) UpdateBook(ctx context.Context, b *Book) error {
	const query = `
		UPDATE books SET title = $3, author = $4, isbn = $5, notes = $6, rating = $7, updated_at = now()
		WHERE account_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, b.AccountID, b.ID, b.Title, b.Author, b.ISBN, b.Notes, b.Rating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteBook removes an owned book. Deleting a missing row is ErrNotFound.
func (r *Repository) DeleteBook(ctx context.Context, accountID int64, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
