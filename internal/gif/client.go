package gif

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/collab-messenger/relay/internal/common/config"
	"github.com/collab-messenger/relay/internal/common/errors"
)

// Candidate is one gif the user can pick; the URL goes into the message
// content as-is.
type Candidate struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Preview string `json:"preview_url,omitempty"`
}

// Client talks to a Giphy-compatible search API.
type Client struct {
	baseURL string
	apiKey  string
	limit   int
	http    *http.Client
}

func NewClient(cfg config.GifConfig) *Client {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 20
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limit:   limit,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type searchResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Images struct {
			Original struct {
				URL    string `json:"url"`
				Width  string `json:"width"`
				Height string `json:"height"`
			} `json:"original"`
			PreviewGif struct {
				URL string `json:"url"`
			} `json:"preview_gif"`
		} `json:"images"`
	} `json:"data"`
}

func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	if query == "" {
		return nil, errors.Invalid("search query is required")
	}
	if c.apiKey == "" {
		return nil, errors.Internal("gif search is not configured", nil)
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", c.limit))
	params.Set("rating", "pg-13")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, errors.Internal("failed to build gif search request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Internal("gif search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Internal(fmt.Sprintf("gif search returned status %d", resp.StatusCode), nil)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Internal("failed to decode gif search response", err)
	}

	candidates := make([]Candidate, 0, len(body.Data))
	for _, d := range body.Data {
		candidates = append(candidates, Candidate{
			ID:      d.ID,
			Title:   d.Title,
			URL:     d.Images.Original.URL,
			Preview: d.Images.PreviewGif.URL,
		})
	}
	return candidates, nil
}
