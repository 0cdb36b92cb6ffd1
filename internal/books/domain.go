package books

import (
	"time"

	"github.com/google/uuid"
)

// Book is one entry on an account's private shelf.
type Book struct {
	ID        uuid.UUID
	AccountID int64
	Title     string
	Author    string
	ISBN      string
	Notes     string
	Rating    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListQuery captures the supported listing filters. Sort accepts only the
// whitelisted keys; anything else falls back to newest-first.
type ListQuery struct {
	AccountID int64
	Search    string
	Sort      string
	Limit     int
	Offset    int
}
