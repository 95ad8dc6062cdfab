// Package registry maintains the dashboard's view of the bot job list. The
// view is a projection of the latest successful bot-status snapshot: demo
// placeholders filtered out, replaced wholesale on every poll, left untouched
// when a poll fails.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/poll"
)

// Commander issues job commands against the backend.
type Commander interface {
	StartJob(ctx context.Context, id domain.JobID) error
	StopJob(ctx context.Context, id domain.JobID) error
	PauseJob(ctx context.Context, id domain.JobID) error
	RenameJob(ctx context.Context, id domain.JobID, name string) error
	CreateJob(ctx context.Context, jobType domain.JobType, name string, settings domain.JobSettings) (domain.BotJob, error)
}

// StatusSource provides one full bot-status snapshot per call.
type StatusSource interface {
	BotStatus(ctx context.Context) (domain.BotStatus, error)
}

// View is the reconciled job registry.
type View struct {
	logger *slog.Logger
	cmd    Commander
	poller *poll.Poller[domain.BotStatus]

	// refreshDelay is how long to wait after a command before re-polling,
	// giving the backend time to settle. Zero in tests.
	refreshDelay time.Duration

	mu      sync.RWMutex
	jobs    []domain.BotJob
	status  domain.BotStatus
	errMsg  string
	busy    map[string]bool
	hasSnap bool
}

// Config tunes the view's polling behavior.
type Config struct {
	Interval     time.Duration
	RefreshDelay time.Duration
}

func NewView(logger *slog.Logger, src StatusSource, cmd Commander, cfg Config) *View {
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Minute
	}
	v := &View{
		logger:       logger,
		cmd:          cmd,
		refreshDelay: cfg.RefreshDelay,
		busy:         make(map[string]bool),
	}
	v.poller = poll.New(logger, "bot-status", cfg.Interval,
		func(ctx context.Context) (domain.BotStatus, error) { return src.BotStatus(ctx) },
		poll.WithOnUpdate(v.applySnapshot),
	)
	return v
}

// Run drives the status poller. Blocks until ctx is cancelled.
func (v *View) Run(ctx context.Context) error {
	return v.poller.Run(ctx)
}

// Refresh forces an immediate re-poll.
func (v *View) Refresh(ctx context.Context) {
	v.poller.Refresh(ctx)
}

// applySnapshot reconciles a poll result into the view. A successful snapshot
// replaces the list wholesale; a failed one leaves the list alone and raises
// the panel error banner.
func (v *View) applySnapshot(s poll.Snapshot[domain.BotStatus]) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s.Err != nil {
		v.errMsg = fmt.Sprintf("failed to refresh jobs: %v", s.Err)
		return
	}

	jobs := make([]domain.BotJob, 0, len(s.Data.Jobs))
	for _, j := range s.Data.Jobs {
		if j.IsDemo() {
			continue
		}
		jobs = append(jobs, j)
	}
	v.jobs = jobs
	v.status = s.Data
	v.errMsg = ""
	v.hasSnap = true
}

// Jobs returns the current projection.
func (v *View) Jobs() []domain.BotJob {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]domain.BotJob, len(v.jobs))
	copy(out, v.jobs)
	return out
}

// Status returns the last successful full snapshot.
func (v *View) Status() domain.BotStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// Error returns the current panel error message, empty when healthy.
func (v *View) Error() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.errMsg
}

// DismissError clears the panel error banner.
func (v *View) DismissError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errMsg = ""
}

// Busy reports whether the given job/action pair has a command in flight.
// Keyed per row and per action so one spinner never blocks the others.
func (v *View) Busy(id domain.JobID, action string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.busy[busyKey(id, action)]
}

func busyKey(id domain.JobID, action string) string {
	return fmt.Sprintf("%s-%s", id, action)
}

// Start starts a job and schedules a delayed registry refresh.
func (v *View) Start(ctx context.Context, id domain.JobID) error {
	return v.command(ctx, id, "start", v.cmd.StartJob)
}

// Stop stops a job and schedules a delayed registry refresh.
func (v *View) Stop(ctx context.Context, id domain.JobID) error {
	return v.command(ctx, id, "stop", v.cmd.StopJob)
}

// Pause pauses a job and schedules a delayed registry refresh.
func (v *View) Pause(ctx context.Context, id domain.JobID) error {
	return v.command(ctx, id, "pause", v.cmd.PauseJob)
}

func (v *View) command(ctx context.Context, id domain.JobID, action string, fn func(context.Context, domain.JobID) error) error {
	key := busyKey(id, action)

	v.mu.Lock()
	if v.busy[key] {
		v.mu.Unlock()
		return nil // already in flight for this row+action
	}
	v.busy[key] = true
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		delete(v.busy, key)
		v.mu.Unlock()
	}()

	if err := fn(ctx, id); err != nil {
		v.setError(fmt.Sprintf("failed to %s job: %v", action, err))
		return err
	}

	// The backend applies commands with eventual consistency; wait a beat
	// before trusting a fresh snapshot.
	if v.refreshDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(v.refreshDelay):
		}
	}
	v.poller.Refresh(ctx)
	return nil
}

// Rename renames a job. On success the local row is patched immediately
// rather than waiting for the next snapshot, to avoid the name flickering
// back while the poll is stale.
func (v *View) Rename(ctx context.Context, id domain.JobID, name string) error {
	if err := v.cmd.RenameJob(ctx, id, name); err != nil {
		v.setError(fmt.Sprintf("failed to rename job: %v", err))
		return err
	}

	v.mu.Lock()
	for i := range v.jobs {
		if v.jobs[i].ID == id {
			v.jobs[i].Name = name
			break
		}
	}
	v.mu.Unlock()
	return nil
}

// Create creates a job. An empty name gets the next "Job #N" derived from
// the current snapshot.
func (v *View) Create(ctx context.Context, jobType domain.JobType, name string, settings domain.JobSettings) (domain.BotJob, error) {
	if name == "" {
		name = v.NextJobName()
	}
	job, err := v.cmd.CreateJob(ctx, jobType, name, settings)
	if err != nil {
		v.setError(fmt.Sprintf("failed to create job: %v", err))
		return domain.BotJob{}, err
	}
	v.Refresh(ctx)
	return job, nil
}

// NextJobName computes the auto-assigned name from the current snapshot.
func (v *View) NextJobName() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return domain.NextJobName(v.jobs)
}

func (v *View) setError(msg string) {
	v.mu.Lock()
	v.errMsg = msg
	v.mu.Unlock()
	v.logger.Warn("registry command failed", "error", msg)
}
