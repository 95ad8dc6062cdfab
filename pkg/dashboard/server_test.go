package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/services"
	"github.com/tradeup/x-engager/internal/registry"
	"github.com/tradeup/x-engager/internal/workflow"
)

// stubRepo is an in-memory repository for end to end handler tests.
type stubRepo struct {
	mu        sync.Mutex
	jobs      map[domain.JobID]domain.BotJob
	posts     []domain.Post
	scheduled []domain.ScheduledPost
	replied   map[string]bool
	settings  map[string]string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		jobs:     make(map[domain.JobID]domain.BotJob),
		replied:  make(map[string]bool),
		settings: make(map[string]string),
	}
}

func (r *stubRepo) SaveJob(_ context.Context, job domain.BotJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *stubRepo) GetJob(_ context.Context, id domain.JobID) (domain.BotJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.BotJob{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (r *stubRepo) ListJobs(_ context.Context) ([]domain.BotJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BotJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (r *stubRepo) SavePost(_ context.Context, post domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, post)
	return nil
}

func (r *stubRepo) ListPosts(_ context.Context, limit, offset int) ([]domain.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Post(nil), r.posts...), len(r.posts), nil
}

func (r *stubRepo) Metrics(context.Context) (domain.Metrics, error) {
	return domain.Metrics{TotalPosts: len(r.posts)}, nil
}

func (r *stubRepo) TopicTrends(context.Context) ([]domain.TopicTrend, error) { return nil, nil }

func (r *stubRepo) EngagementByDay(context.Context, int) ([]domain.EngagementPoint, error) {
	return nil, nil
}

func (r *stubRepo) SaveScheduledPost(_ context.Context, sp domain.ScheduledPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, sp)
	return nil
}

func (r *stubRepo) DueScheduledPosts(context.Context, time.Time) ([]domain.ScheduledPost, error) {
	return nil, nil
}

func (r *stubRepo) MarkScheduledPostDone(context.Context, string) error { return nil }

func (r *stubRepo) MarkTweetReplied(_ context.Context, tweetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replied[tweetID] = true
	return nil
}

func (r *stubRepo) HasRepliedTo(_ context.Context, tweetID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replied[tweetID], nil
}

func (r *stubRepo) GetSetting(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings[key], nil
}

func (r *stubRepo) SaveSetting(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = value
	return nil
}

type stubGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *stubGenerator) GeneratePost(_ context.Context, topic string) (domain.GeneratedPost, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	return domain.GeneratedPost{
		Content:  fmt.Sprintf("Generated post %d about %s #TradeUp", n, topic),
		Topic:    topic,
		Hashtags: []string{"#TradeUp"},
	}, nil
}

func (g *stubGenerator) GenerateReply(_ context.Context, tweet domain.SourceTweet) (string, error) {
	return "Nice one, " + tweet.Author + "! Trade safely on TradeUp!", nil
}

type stubPoster struct {
	mu     sync.Mutex
	posted []string
}

func (p *stubPoster) PostTweet(_ context.Context, content string) (domain.PostResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posted = append(p.posted, content)
	id := fmt.Sprintf("9%d", len(p.posted))
	return domain.PostResult{TweetID: id, URL: "https://x.com/TradeUpApp/status/" + id}, nil
}

func (p *stubPoster) PostReply(ctx context.Context, content, _ string) (domain.PostResult, error) {
	return p.PostTweet(ctx, content)
}

func (p *stubPoster) TweetURL(id string) string {
	return "https://x.com/TradeUpApp/status/" + id
}

type stubSource struct {
	tweets []domain.SourceTweet
}

func (s *stubSource) FetchTweets(context.Context) ([]domain.SourceTweet, error) {
	return s.tweets, nil
}

type testEnv struct {
	srv    *httptest.Server
	repo   *stubRepo
	poster *stubPoster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := newStubRepo()
	gen := &stubGenerator{}
	poster := &stubPoster{}
	tweets := &stubSource{tweets: []domain.SourceTweet{
		{ID: "100", Author: "@collector", Text: "Pulled a Charizard!", URL: "https://x.com/collector/status/100"},
		{ID: "200", Author: "@player", Text: "New deck day", URL: "https://x.com/player/status/200"},
	}}

	manager := services.NewManager(logger, repo, gen, poster, tweets)
	wf := workflow.NewService(logger, gen, poster, tweets, manager)
	view := registry.NewView(logger, manager, manager, registry.Config{Interval: time.Hour})
	view.Refresh(context.Background())

	s := NewServer(":0", logger, manager, wf, view, repo, gen, poster, tweets)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, repo: repo, poster: poster}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (e *testEnv) getJSON(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.getJSON(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestBotStatus_EmptyDefaults(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.getJSON(t, "/api/bot-status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["running"])
	assert.NotNil(t, body["jobs"])
}

func TestJobLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.postJSON(t, "/api/bot-job/create", map[string]any{
		"type": "posting",
		"name": "",
		"settings": map[string]any{
			"postsPerDay":      4,
			"topics":           []string{"Charizard"},
			"postingTimeStart": "09:00",
			"postingTimeEnd":   "17:00",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	job := body["job"].(map[string]any)
	jobID := job["id"].(string)
	assert.Equal(t, "Job #1", job["name"])
	assert.Equal(t, "stopped", job["status"])

	resp, body = env.postJSON(t, "/api/bot-job/"+jobID+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	_, status := env.getJSON(t, "/api/bot-status")
	assert.Equal(t, true, status["running"])

	resp, body = env.postJSON(t, "/api/bot-job/"+jobID+"/rename", map[string]string{"name": "Morning run"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.postJSON(t, "/api/bot-job/"+jobID+"/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, status = env.getJSON(t, "/api/bot-status")
	assert.Equal(t, false, status["running"])
}

func TestJobCommand_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.postJSON(t, "/api/bot-job/missing/start", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "not found")
}

func TestCreateJob_RejectsBadSettings(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.postJSON(t, "/api/bot-job/create", map[string]any{
		"type":     "posting",
		"settings": map[string]any{"postsPerDay": 99},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateContent(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.postJSON(t, "/api/generate-content", map[string]string{"topic": "Charizard"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	post := body["post"].(map[string]any)
	assert.Contains(t, post["content"], "Charizard")
}

func TestFetchTweets(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.getJSON(t, "/api/fetch-tweets-from-sheets")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])
}

func TestPostReplyWithTracking_MarksReplied(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.postJSON(t, "/api/post-reply-with-tracking", map[string]string{
		"content": "great pull!",
		"tweetId": "100",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.repo.replied["100"])
}

func TestWorkflow_PostBatchLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.postJSON(t, "/api/workflow/batches", map[string]any{
		"type": "post",
		"settings": map[string]any{
			"postsPerDay":      2,
			"topics":           []string{"Charizard"},
			"postingTimeStart": "09:00",
			"postingTimeEnd":   "17:00",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	batch := body["batch"].(map[string]any)
	batchID := batch["id"].(string)
	items := batch["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "reviewing", batch["state"])

	// Commit before approving anything is refused.
	resp, _ = env.postJSON(t, "/api/workflow/batches/"+batchID+"/commit", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	itemID := items[0].(map[string]any)["id"].(string)
	resp, _ = env.postJSON(t, "/api/workflow/batches/"+batchID+"/items/"+itemID+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.postJSON(t, "/api/workflow/batches/"+batchID+"/commit", map[string]string{"name": "Evening push"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	job := result["job"].(map[string]any)
	assert.Equal(t, "Evening push", job["name"])
	assert.Equal(t, "running", job["status"])

	// One scheduled post per approved item.
	require.Len(t, env.repo.scheduled, 1)

	resp, body = env.getJSON(t, "/api/workflow/batches/"+batchID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", body["batch"].(map[string]any)["state"])
}

func TestWorkflow_ReplyBatchCommitPostsImmediately(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.postJSON(t, "/api/workflow/batches", map[string]any{
		"type":     "reply",
		"settings": map[string]any{"replyCount": 2},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	batch := body["batch"].(map[string]any)
	batchID := batch["id"].(string)
	items := batch["items"].([]any)
	require.Len(t, items, 2)

	for _, it := range items {
		itemID := it.(map[string]any)["id"].(string)
		resp, _ = env.postJSON(t, "/api/workflow/batches/"+batchID+"/items/"+itemID+"/approve", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body = env.postJSON(t, "/api/workflow/batches/"+batchID+"/commit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	posted := result["posted"].([]any)
	assert.Len(t, posted, 2)
	assert.Len(t, env.poster.posted, 2)

	// Committing again must not publish the replies a second time.
	resp, _ = env.postJSON(t, "/api/workflow/batches/"+batchID+"/commit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Len(t, env.poster.posted, 2)
}

func TestWorkflow_CloseDiscards(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.postJSON(t, "/api/workflow/batches", map[string]any{
		"type": "post",
		"settings": map[string]any{
			"postsPerDay":      1,
			"topics":           []string{"Pikachu"},
			"postingTimeStart": "09:00",
			"postingTimeEnd":   "17:00",
		},
	})
	batchID := body["batch"].(map[string]any)["id"].(string)

	req, err := http.NewRequest(http.MethodDelete, env.srv.URL+"/api/workflow/batches/"+batchID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.getJSON(t, "/api/workflow/batches/"+batchID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegistry_FiltersDemoJobs(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.repo.SaveJob(context.Background(), domain.BotJob{
		ID: "posting-demo-1", Name: "Demo", Type: domain.JobTypePosting, Status: domain.JobStatusRunning,
	}))
	require.NoError(t, env.repo.SaveJob(context.Background(), domain.BotJob{
		ID: "posting-2", Name: "Real", Type: domain.JobTypePosting, Status: domain.JobStatusStopped,
	}))

	resp, _ := env.postJSON(t, "/api/registry/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := env.getJSON(t, "/api/registry")
	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 1)
	assert.Equal(t, "posting-2", jobs[0].(map[string]any)["id"])
}

func TestSettings_Roundtrip(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.getJSON(t, "/api/settings")
	assert.Equal(t, float64(12), body["postsPerDay"])

	resp, _ := env.postJSON(t, "/api/settings", map[string]any{
		"postsPerDay":    6,
		"keywords":       []string{"Pokemon"},
		"engagementMode": "aggressive",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = env.getJSON(t, "/api/settings")
	assert.Equal(t, float64(6), body["postsPerDay"])
	assert.Equal(t, "aggressive", body["engagementMode"])
}

func TestPosts_DefaultShape(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.getJSON(t, "/api/posts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["posts"])
	assert.Equal(t, float64(0), body["total"])
}

func TestPosts_IncludeRelativeTime(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.repo.SavePost(context.Background(), domain.Post{
		ID:        "p1",
		Content:   "Charizard pulls all day",
		Topic:     "Charizard",
		Timestamp: time.Now().Add(-2 * time.Hour),
	}))

	resp, body := env.getJSON(t, "/api/posts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	posts := body["posts"].([]any)
	require.Len(t, posts, 1)
	first := posts[0].(map[string]any)
	assert.Equal(t, "2 hours ago", first["timeAgo"])
}

func TestMetrics_IncludesDisplayCounters(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.getJSON(t, "/api/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", body["totalLikesDisplay"])
	assert.Equal(t, "0", body["followersDisplay"])
}
