// Package botapi is an HTTP client for a remote engager backend. It exists
// so the dashboard can run against a backend deployed elsewhere instead of
// the in-process manager; both satisfy the same registry interfaces.
package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/registry"
)

type Client struct {
	http    *http.Client
	baseURL string
}

// The registry accepts either this client or the in-process manager.
var (
	_ registry.Commander    = (*Client)(nil)
	_ registry.StatusSource = (*Client)(nil)
)

func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

// commandResponse is the envelope every command endpoint answers with.
type commandResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Job     *domain.BotJob  `json:"job,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

func (c *Client) BotStatus(ctx context.Context) (domain.BotStatus, error) {
	var status domain.BotStatus
	if err := c.get(ctx, "/api/bot-status", &status); err != nil {
		return domain.BotStatus{}, err
	}
	return status, nil
}

func (c *Client) StartJob(ctx context.Context, id domain.JobID) error {
	return c.command(ctx, fmt.Sprintf("/api/bot-job/%s/start", id), nil)
}

func (c *Client) StopJob(ctx context.Context, id domain.JobID) error {
	return c.command(ctx, fmt.Sprintf("/api/bot-job/%s/stop", id), nil)
}

func (c *Client) PauseJob(ctx context.Context, id domain.JobID) error {
	return c.command(ctx, fmt.Sprintf("/api/bot-job/%s/pause", id), nil)
}

func (c *Client) RenameJob(ctx context.Context, id domain.JobID, name string) error {
	return c.command(ctx, fmt.Sprintf("/api/bot-job/%s/rename", id), map[string]string{"name": name})
}

func (c *Client) CreateJob(ctx context.Context, jobType domain.JobType, name string, settings domain.JobSettings) (domain.BotJob, error) {
	body := map[string]any{
		"type":     jobType,
		"name":     name,
		"settings": settings,
	}
	resp, err := c.post(ctx, "/api/bot-job/create", body)
	if err != nil {
		return domain.BotJob{}, err
	}
	if resp.Job == nil {
		return domain.BotJob{}, fmt.Errorf("create job: no job in response")
	}
	return *resp.Job, nil
}

func (c *Client) command(ctx context.Context, path string, body any) error {
	_, err := c.post(ctx, path, body)
	return err
}

func (c *Client) post(ctx context.Context, path string, body any) (commandResponse, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return commandResponse{}, err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return commandResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return commandResponse{}, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return commandResponse{}, domain.ErrRateLimited
	}

	var cr commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		if resp.StatusCode >= 300 {
			return commandResponse{}, fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
		}
		return commandResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 || (!cr.Success && cr.Error != "") {
		msg := cr.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return commandResponse{}, fmt.Errorf("POST %s: %s", path, msg)
	}
	return cr, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
