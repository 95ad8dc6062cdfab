// Package services contains the bot's long-running core: the job manager
// that owns the job registry and drives posting and replying on schedule.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/ports"
)

// Manager owns all bot jobs. It persists them through the repository and,
// while running, executes them: posting jobs publish on their cadence inside
// the posting window, reply jobs answer pool tweets once per hour, and
// scheduled posts committed from the approval workflow publish at their slot
// time.
type Manager struct {
	logger *slog.Logger
	repo   ports.Repository
	gen    ports.Generator
	poster ports.Poster
	tweets ports.TweetSource

	startedAt time.Time
	now       func() time.Time
	randInt   func(n int) int

	mu           sync.Mutex
	lastPost     map[domain.JobID]time.Time
	lastReplyRun map[domain.JobID]time.Time
	attempts     map[domain.JobID]int
	successes    map[domain.JobID]int
}

func NewManager(logger *slog.Logger, repo ports.Repository, gen ports.Generator, poster ports.Poster, tweets ports.TweetSource) *Manager {
	return &Manager{
		logger:       logger,
		repo:         repo,
		gen:          gen,
		poster:       poster,
		tweets:       tweets,
		startedAt:    time.Now(),
		now:          time.Now,
		randInt:      rand.IntN,
		lastPost:     make(map[domain.JobID]time.Time),
		lastReplyRun: make(map[domain.JobID]time.Time),
		attempts:     make(map[domain.JobID]int),
		successes:    make(map[domain.JobID]int),
	}
}

// CreateJob registers a new job in the stopped state. An empty name gets the
// next free auto-assigned "Job #N".
func (m *Manager) CreateJob(ctx context.Context, jobType domain.JobType, name string, settings domain.JobSettings) (domain.BotJob, error) {
	if name == "" {
		jobs, err := m.repo.ListJobs(ctx)
		if err != nil {
			return domain.BotJob{}, fmt.Errorf("list jobs: %w", err)
		}
		name = domain.NextJobName(jobs)
	}

	job := domain.BotJob{
		ID:        domain.JobID(fmt.Sprintf("%s-%d", jobType, m.now().Unix())),
		Name:      name,
		Type:      jobType,
		Status:    domain.JobStatusStopped,
		Settings:  settings,
		CreatedAt: m.now(),
	}
	if err := m.repo.SaveJob(ctx, job); err != nil {
		return domain.BotJob{}, fmt.Errorf("save job: %w", err)
	}
	m.logger.Info("job created", "job_id", job.ID, "type", job.Type, "name", job.Name)
	return job, nil
}

// CreatePostingJob persists an approved content batch as a running posting
// job: the job record plus one scheduled post per approved item.
func (m *Manager) CreatePostingJob(ctx context.Context, name string, settings domain.JobSettings, items []domain.ContentItem) (domain.BotJob, error) {
	job, err := m.CreateJob(ctx, domain.JobTypePosting, name, settings)
	if err != nil {
		return domain.BotJob{}, err
	}

	for _, item := range items {
		if item.ScheduledTime == nil {
			continue
		}
		sp := domain.ScheduledPost{
			ID:       uuid.New().String(),
			JobID:    job.ID,
			Content:  item.Content,
			Topic:    item.Topic,
			Hashtags: item.Hashtags,
			PostAt:   *item.ScheduledTime,
		}
		if err := m.repo.SaveScheduledPost(ctx, sp); err != nil {
			return domain.BotJob{}, fmt.Errorf("save scheduled post: %w", err)
		}
	}

	if err := m.StartJob(ctx, job.ID); err != nil {
		return domain.BotJob{}, err
	}
	return m.repo.GetJob(ctx, job.ID)
}

// StartJob moves a job to running and stamps its run times.
func (m *Manager) StartJob(ctx context.Context, id domain.JobID) error {
	return m.patchJob(ctx, id, func(job *domain.BotJob) {
		now := m.now()
		job.Status = domain.JobStatusRunning
		job.LastRun = &now
		next := now.Add(m.postInterval(job.Settings))
		job.NextRun = &next
	})
}

// StopJob halts a job and clears its next run.
func (m *Manager) StopJob(ctx context.Context, id domain.JobID) error {
	return m.patchJob(ctx, id, func(job *domain.BotJob) {
		job.Status = domain.JobStatusStopped
		job.NextRun = nil
	})
}

// PauseJob suspends a job without losing its place in the registry.
func (m *Manager) PauseJob(ctx context.Context, id domain.JobID) error {
	return m.patchJob(ctx, id, func(job *domain.BotJob) {
		job.Status = domain.JobStatusPaused
		job.NextRun = nil
	})
}

// RenameJob updates the display name only.
func (m *Manager) RenameJob(ctx context.Context, id domain.JobID, name string) error {
	return m.patchJob(ctx, id, func(job *domain.BotJob) {
		job.Name = name
	})
}

func (m *Manager) patchJob(ctx context.Context, id domain.JobID, fn func(*domain.BotJob)) error {
	job, err := m.repo.GetJob(ctx, id)
	if err != nil {
		return err
	}
	fn(&job)
	if err := m.repo.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	m.logger.Info("job updated", "job_id", id, "status", job.Status)
	return nil
}

// BotStatus aggregates the persisted jobs into one status snapshot.
func (m *Manager) BotStatus(ctx context.Context) (domain.BotStatus, error) {
	jobs, err := m.repo.ListJobs(ctx)
	if err != nil {
		return domain.BotStatus{}, fmt.Errorf("list jobs: %w", err)
	}

	status := domain.BotStatus{
		Uptime: formatUptime(time.Since(m.startedAt)),
		Jobs:   jobs,
	}

	var successRates, ratedJobs int
	for _, job := range jobs {
		if job.Status == domain.JobStatusRunning {
			status.Running = true
		}
		status.Stats.PostsToday += job.Stats.PostsToday
		status.Stats.RepliesToday += job.Stats.RepliesToday
		if job.Stats.SuccessRate > 0 {
			successRates += job.Stats.SuccessRate
			ratedJobs++
		}
		if job.LastRun != nil && (status.LastRun == nil || job.LastRun.After(*status.LastRun)) {
			status.LastRun = job.LastRun
		}
	}
	if ratedJobs > 0 {
		status.Stats.SuccessRate = successRates / ratedJobs
	}
	return status, nil
}

// Run executes jobs until ctx is cancelled. One tick per minute.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("bot manager started")
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("bot manager stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass: publish due scheduled posts, then give each
// running job a chance to act.
func (m *Manager) Tick(ctx context.Context) {
	now := m.now()

	m.publishDuePosts(ctx, now)

	jobs, err := m.repo.ListJobs(ctx)
	if err != nil {
		m.logger.Error("failed to list jobs", "error", err)
		return
	}
	for _, job := range jobs {
		if job.Status != domain.JobStatusRunning || job.IsDemo() {
			continue
		}
		switch job.Type {
		case domain.JobTypePosting:
			m.runPostingJob(ctx, job, now)
		case domain.JobTypeReplying:
			m.runReplyJob(ctx, job, now)
		}
	}
}

func (m *Manager) publishDuePosts(ctx context.Context, now time.Time) {
	due, err := m.repo.DueScheduledPosts(ctx, now)
	if err != nil {
		m.logger.Error("failed to load due scheduled posts", "error", err)
		return
	}
	for _, sp := range due {
		res, err := m.poster.PostTweet(ctx, sp.Content)
		m.recordAttempt(sp.JobID, err == nil)
		if err != nil {
			m.logger.Error("scheduled post failed", "job_id", sp.JobID, "error", err)
			if errors.Is(err, domain.ErrRateLimited) {
				return
			}
			continue
		}
		if err := m.repo.MarkScheduledPostDone(ctx, sp.ID); err != nil {
			m.logger.Error("failed to mark scheduled post done", "id", sp.ID, "error", err)
		}
		m.savePublished(ctx, sp.JobID, res, sp.Content, sp.Topic)
		m.logger.Info("scheduled post published", "job_id", sp.JobID, "tweet_id", res.TweetID)
	}
}

// runPostingJob posts freshly generated content on the job's cadence, only
// inside the posting window.
func (m *Manager) runPostingJob(ctx context.Context, job domain.BotJob, now time.Time) {
	if !m.withinWindow(job.Settings, now) {
		return
	}

	interval := m.postInterval(job.Settings)
	m.mu.Lock()
	last := m.lastPost[job.ID]
	m.mu.Unlock()
	if !last.IsZero() && now.Sub(last) < interval {
		return
	}

	if len(job.Settings.Topics) == 0 {
		m.logger.Warn("posting job has no topics", "job_id", job.ID)
		return
	}
	topic := job.Settings.Topics[m.randInt(len(job.Settings.Topics))]

	post, err := m.gen.GeneratePost(ctx, topic)
	if err != nil {
		m.logger.Error("content generation failed", "job_id", job.ID, "topic", topic, "error", err)
		return
	}
	res, err := m.poster.PostTweet(ctx, post.Content)
	m.recordAttempt(job.ID, err == nil)
	if err != nil {
		m.logger.Error("post failed", "job_id", job.ID, "error", err)
		return
	}

	m.mu.Lock()
	m.lastPost[job.ID] = now
	m.mu.Unlock()

	m.savePublished(ctx, job.ID, res, post.Content, post.Topic)
	m.bumpStats(ctx, job.ID, now, func(st *domain.JobStats) { st.PostsToday++ })
	m.logger.Info("post published", "job_id", job.ID, "tweet_id", res.TweetID, "topic", topic)
}

// runReplyJob answers pool tweets once per hour, skipping tweets already
// replied to and capping at MaxRepliesPerHour.
func (m *Manager) runReplyJob(ctx context.Context, job domain.BotJob, now time.Time) {
	m.mu.Lock()
	last := m.lastReplyRun[job.ID]
	m.mu.Unlock()
	if !last.IsZero() && now.Sub(last) < time.Hour {
		return
	}
	m.mu.Lock()
	m.lastReplyRun[job.ID] = now
	m.mu.Unlock()

	pool, err := m.tweets.FetchTweets(ctx)
	if err != nil {
		m.logger.Error("failed to fetch candidate tweets", "job_id", job.ID, "error", err)
		return
	}

	limit := job.Settings.MaxRepliesPerHour
	if limit <= 0 {
		limit = 5
	}

	replied := 0
	for _, tweet := range pool {
		if replied >= limit {
			break
		}
		seen, err := m.repo.HasRepliedTo(ctx, tweet.ID)
		if err != nil {
			m.logger.Error("replied-tweet lookup failed", "tweet_id", tweet.ID, "error", err)
			continue
		}
		if seen {
			continue
		}

		reply, err := m.gen.GenerateReply(ctx, tweet)
		if err != nil {
			m.logger.Warn("reply generation failed", "tweet_id", tweet.ID, "error", err)
			continue
		}
		res, err := m.poster.PostReply(ctx, reply, tweet.ID)
		m.recordAttempt(job.ID, err == nil)
		if err != nil {
			m.logger.Error("reply failed", "job_id", job.ID, "tweet_id", tweet.ID, "error", err)
			if errors.Is(err, domain.ErrRateLimited) {
				return
			}
			continue
		}
		if err := m.repo.MarkTweetReplied(ctx, tweet.ID); err != nil {
			m.logger.Error("failed to mark tweet replied", "tweet_id", tweet.ID, "error", err)
		}
		replied++
		m.logger.Info("reply published", "job_id", job.ID, "tweet_id", res.TweetID, "to", tweet.Author)
	}

	if replied > 0 {
		m.bumpStats(ctx, job.ID, now, func(st *domain.JobStats) { st.RepliesToday += replied })
	}
}

func (m *Manager) savePublished(ctx context.Context, jobID domain.JobID, res domain.PostResult, content, topic string) {
	post := domain.Post{
		ID:        res.TweetID,
		Content:   content,
		Topic:     topic,
		Topics:    []string{topic},
		Timestamp: m.now(),
	}
	if err := m.repo.SavePost(ctx, post); err != nil {
		m.logger.Error("failed to save published post", "job_id", jobID, "error", err)
	}
}

func (m *Manager) bumpStats(ctx context.Context, id domain.JobID, now time.Time, fn func(*domain.JobStats)) {
	err := m.patchJob(ctx, id, func(job *domain.BotJob) {
		fn(&job.Stats)
		job.Stats.SuccessRate = m.successRate(id)
		job.LastRun = &now
	})
	if err != nil {
		m.logger.Error("failed to update job stats", "job_id", id, "error", err)
	}
}

func (m *Manager) recordAttempt(id domain.JobID, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[id]++
	if ok {
		m.successes[id]++
	}
}

func (m *Manager) successRate(id domain.JobID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts[id] == 0 {
		return 0
	}
	return int(float64(m.successes[id]) / float64(m.attempts[id]) * 100)
}

// postInterval derives the gap between posts from the posting window and
// PostsPerDay. Falls back to two hours when the window is unusable.
func (m *Manager) postInterval(settings domain.JobSettings) time.Duration {
	start, end, err := settings.Window()
	if err != nil || settings.PostsPerDay <= 0 {
		return 2 * time.Hour
	}
	minutes := int(end.Sub(start).Minutes()) / settings.PostsPerDay
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

func (m *Manager) withinWindow(settings domain.JobSettings, now time.Time) bool {
	start, end, err := settings.Window()
	if err != nil {
		return true
	}
	cur := now.Hour()*60 + now.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()
	return cur >= s && cur < e
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
