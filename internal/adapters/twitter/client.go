// Package twitter posts tweets and replies through the X API v2.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/ports"
)

const defaultBaseURL = "https://api.twitter.com/2"

// Client implements ports.Poster against the create-tweet endpoint. The
// bearer token rides in an oauth2 transport so every request is authorized
// the same way.
type Client struct {
	logger   *slog.Logger
	http     *http.Client
	baseURL  string
	username string
}

func NewClient(logger *slog.Logger, bearerToken, username string) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken})
	return &Client{
		logger: logger,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: src},
			Timeout:   30 * time.Second,
		},
		baseURL:  defaultBaseURL,
		username: username,
	}
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *replyField `json:"reply,omitempty"`
}

type replyField struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (c *Client) PostTweet(ctx context.Context, content string) (domain.PostResult, error) {
	return c.post(ctx, tweetRequest{Text: content})
}

func (c *Client) PostReply(ctx context.Context, content, replyToID string) (domain.PostResult, error) {
	return c.post(ctx, tweetRequest{
		Text:  content,
		Reply: &replyField{InReplyToTweetID: replyToID},
	})
}

// TweetURL builds the public link shown in the dashboard for a tweet id.
func (c *Client) TweetURL(tweetID string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", c.username, tweetID)
}

func (c *Client) post(ctx context.Context, reqBody tweetRequest) (domain.PostResult, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.PostResult{}, fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return domain.PostResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.PostResult{}, fmt.Errorf("post tweet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("twitter rate limit hit", "status", resp.StatusCode)
		return domain.PostResult{}, domain.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.PostResult{}, fmt.Errorf("twitter API returned %d: %s", resp.StatusCode, msg)
	}

	var tr tweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return domain.PostResult{}, fmt.Errorf("decode tweet response: %w", err)
	}

	return domain.PostResult{
		TweetID: tr.Data.ID,
		URL:     c.TweetURL(tr.Data.ID),
	}, nil
}

var _ ports.Poster = (*Client)(nil)
