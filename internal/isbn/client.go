package isbn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shelfmark/shelfmark/internal/shared"
)

// Metadata is the subset of book metadata the shelf form can prefill.
type Metadata struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Client wraps interactions with the Open Library books API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type editionResponse struct {
	Title       string `json:"title"`
	ByStatement string `json:"by_statement"`
}

// Fetch retrieves edition metadata for an ISBN. Unknown ISBNs surface as
// shared.ErrNotFound; transport and upstream failures as plain errors.
func (c *Client) Fetch(ctx context.Context, code string) (Metadata, error) {
	url := fmt.Sprintf("%s/isbn/%s.json", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metadata{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return Metadata{}, shared.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return Metadata{}, fmt.Errorf("isbn: open library returned status %d", resp.StatusCode)
	}

	var edition editionResponse
	if err := json.NewDecoder(resp.Body).Decode(&edition); err != nil {
		return Metadata{}, fmt.Errorf("isbn: decode response: %w", err)
	}
	if edition.Title == "" {
		return Metadata{}, shared.ErrNotFound
	}
	return Metadata{ISBN: code, Title: edition.Title, Author: edition.ByStatement}, nil
}
