// Package sheets reads the candidate tweet pool from a Google Sheet via the
// public values API. The sheet is append-only, so rows are consumed from the
// bottom up to surface the newest tweets first.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/ports"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4"

// Sheet column layout: date, username, tweet text, tweet URL.
const (
	colUsername = 1
	colText     = 2
	colURL      = 3
)

type Client struct {
	logger        *slog.Logger
	http          *http.Client
	baseURL       string
	apiKey        string
	spreadsheetID string
	readRange     string
	maxTweets     int
}

func NewClient(logger *slog.Logger, apiKey, spreadsheetID, readRange string) *Client {
	if readRange == "" {
		readRange = "Sheet1!A:F"
	}
	return &Client{
		logger:        logger,
		http:          &http.Client{Timeout: 30 * time.Second},
		baseURL:       defaultBaseURL,
		apiKey:        apiKey,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		maxTweets:     50,
	}
}

type valuesResponse struct {
	Values [][]string `json:"values"`
}

// FetchTweets returns the pool newest-first. Rows without text or without a
// parseable tweet URL are skipped.
func (c *Client) FetchTweets(ctx context.Context) ([]domain.SourceTweet, error) {
	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s?key=%s",
		c.baseURL, c.spreadsheetID, url.PathEscape(c.readRange), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet values: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sheets API returned %d: %s", resp.StatusCode, msg)
	}

	var vr valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("decode sheet values: %w", err)
	}

	var tweets []domain.SourceTweet
	// Skip the header row at index 0; newest rows are at the bottom.
	for i := len(vr.Values) - 1; i >= 1 && len(tweets) < c.maxTweets; i-- {
		row := vr.Values[i]
		if len(row) <= colText || row[colText] == "" {
			continue
		}

		var tweetURL string
		if len(row) > colURL {
			tweetURL = row[colURL]
		}
		id := ExtractTweetID(tweetURL)
		if id == "" {
			c.logger.Debug("skipping sheet row without tweet id", "row", i+1)
			continue
		}

		author := ExtractUsername(tweetURL)
		if author == "" && len(row) > colUsername {
			author = row[colUsername]
		}

		tweets = append(tweets, domain.SourceTweet{
			ID:     id,
			Author: author,
			Text:   row[colText],
			URL:    tweetURL,
		})
	}

	c.logger.Info("fetched candidate tweets", "count", len(tweets))
	return tweets, nil
}

var (
	tweetIDPattern  = regexp.MustCompile(`(?:twitter\.com|x\.com)/\w+/status/(\d+)`)
	usernamePattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/(\w+)/status/\d+`)
)

// ExtractTweetID pulls the numeric status id out of a twitter.com or x.com
// URL. Empty when the URL does not match.
func ExtractTweetID(u string) string {
	m := tweetIDPattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractUsername pulls the handle out of a tweet URL, prefixed with "@".
func ExtractUsername(u string) string {
	m := usernamePattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return "@" + m[1]
}

var _ ports.TweetSource = (*Client)(nil)
