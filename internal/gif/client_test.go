package gif

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collab-messenger/relay/internal/common/config"
	"github.com/collab-messenger/relay/internal/common/errors"
)

const searchBody = `{
	"data": [
		{
			"id": "abc123",
			"title": "excited cat",
			"images": {
				"original": {"url": "https://media.example.com/abc123.gif", "width": "480", "height": "270"},
				"preview_gif": {"url": "https://media.example.com/abc123-preview.gif"}
			}
		},
		{
			"id": "def456",
			"title": "slow clap",
			"images": {
				"original": {"url": "https://media.example.com/def456.gif", "width": "320", "height": "240"}
			}
		}
	]
}`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "cat", r.URL.Query().Get("q"))
		assert.Equal(t, "pg-13", r.URL.Query().Get("rating"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	client := NewClient(config.GifConfig{BaseURL: srv.URL, APIKey: "test-key"})
	candidates, err := client.Search(context.Background(), "cat")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "abc123", candidates[0].ID)
	assert.Equal(t, "excited cat", candidates[0].Title)
	assert.Equal(t, "https://media.example.com/abc123.gif", candidates[0].URL)
	assert.Equal(t, "https://media.example.com/abc123-preview.gif", candidates[0].Preview)
	assert.Empty(t, candidates[1].Preview)
}

func TestSearchEmptyQuery(t *testing.T) {
	client := NewClient(config.GifConfig{BaseURL: "http://localhost", APIKey: "test-key"})
	_, err := client.Search(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
}

func TestSearchWithoutAPIKey(t *testing.T) {
	client := NewClient(config.GifConfig{BaseURL: "http://localhost"})
	_, err := client.Search(context.Background(), "cat")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, errors.HTTPStatus(err))
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(config.GifConfig{BaseURL: srv.URL, APIKey: "test-key"})
	_, err := client.Search(context.Background(), "cat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
