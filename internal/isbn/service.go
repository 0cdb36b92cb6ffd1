package isbn

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Service answers ISBN lookups: cache first, then upstream, with concurrent
// lookups for the same code collapsed into one upstream request.
type Service struct {
	client *Client
	cache  *Cache
	group  singleflight.Group
}

// NewService constructs the lookup service.
func NewService(client *Client, cache *Cache) *Service {
	return &Service{client: client, cache: cache}
}

// Lookup resolves metadata for an ISBN-10 or ISBN-13 code. Hyphens and spaces
// in the code are ignored.
func (s *Service) Lookup(ctx context.Context, code string) (Metadata, error) {
	code = normalizeCode(code)

	if meta, ok, err := s.cache.Get(ctx, code); err == nil && ok {
		return meta, nil
	}

	result, err, _ := s.group.Do(code, func() (any, error) {
		meta, err := s.client.Fetch(ctx, code)
		if err != nil {
			return Metadata{}, err
		}
		_ = s.cache.Set(ctx, code, meta)
		return meta, nil
	})
	if err != nil {
		return Metadata{}, err
	}
	return result.(Metadata), nil
}

func normalizeCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, code)
}
