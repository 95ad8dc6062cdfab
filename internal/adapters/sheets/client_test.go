package sheets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, values [][]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.URL.Query().Get("key"))
		_ = json.NewEncoder(w).Encode(map[string]any{"values": values})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), "secret-key", "sheet-id", "Sheet1!A:F")
	c.baseURL = srv.URL
	return c
}

func TestFetchTweets_NewestFirst(t *testing.T) {
	c := testClient(t, [][]string{
		{"Date", "Username", "Tweet", "URL"},
		{"2026-08-27", "old_user", "oldest tweet", "https://x.com/old_user/status/100"},
		{"2026-08-28", "mid_user", "middle tweet", "https://twitter.com/mid_user/status/200"},
		{"2026-08-29", "new_user", "newest tweet", "https://x.com/new_user/status/300"},
	})

	tweets, err := c.FetchTweets(context.Background())
	require.NoError(t, err)

	require.Len(t, tweets, 3)
	assert.Equal(t, "300", tweets[0].ID)
	assert.Equal(t, "@new_user", tweets[0].Author)
	assert.Equal(t, "newest tweet", tweets[0].Text)
	assert.Equal(t, "100", tweets[2].ID)
}

func TestFetchTweets_SkipsRowsWithoutID(t *testing.T) {
	c := testClient(t, [][]string{
		{"Date", "Username", "Tweet", "URL"},
		{"2026-08-29", "someone", "no url for this one", ""},
		{"2026-08-29", "other", "", "https://x.com/other/status/400"},
		{"2026-08-29", "good", "valid row", "https://x.com/good/status/500"},
	})

	tweets, err := c.FetchTweets(context.Background())
	require.NoError(t, err)

	require.Len(t, tweets, 1)
	assert.Equal(t, "500", tweets[0].ID)
}

func TestFetchTweets_EmptySheet(t *testing.T) {
	c := testClient(t, nil)
	tweets, err := c.FetchTweets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tweets)
}

func TestFetchTweets_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), "k", "id", "")
	c.baseURL = srv.URL

	_, err := c.FetchTweets(context.Background())
	assert.Error(t, err)
}

func TestExtractTweetID(t *testing.T) {
	assert.Equal(t, "123", ExtractTweetID("https://twitter.com/user/status/123"))
	assert.Equal(t, "456", ExtractTweetID("https://x.com/user/status/456?s=20"))
	assert.Equal(t, "", ExtractTweetID("https://example.com/other"))
	assert.Equal(t, "", ExtractTweetID(""))
}

func TestExtractUsername(t *testing.T) {
	assert.Equal(t, "@collector", ExtractUsername("https://x.com/collector/status/123"))
	assert.Equal(t, "", ExtractUsername("not a url"))
}
