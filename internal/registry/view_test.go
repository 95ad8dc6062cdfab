package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tradeup/x-engager/internal/core/domain"
)

type mockCommander struct {
	mock.Mock
}

func (m *mockCommander) StartJob(ctx context.Context, id domain.JobID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCommander) StopJob(ctx context.Context, id domain.JobID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCommander) PauseJob(ctx context.Context, id domain.JobID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCommander) RenameJob(ctx context.Context, id domain.JobID, name string) error {
	return m.Called(ctx, id, name).Error(0)
}

func (m *mockCommander) CreateJob(ctx context.Context, jobType domain.JobType, name string, settings domain.JobSettings) (domain.BotJob, error) {
	args := m.Called(ctx, jobType, name, settings)
	return args.Get(0).(domain.BotJob), args.Error(1)
}

// scriptedSource returns queued snapshots, then keeps failing.
type scriptedSource struct {
	snapshots []domain.BotStatus
	errs      []error
	calls     int
}

func (s *scriptedSource) BotStatus(ctx context.Context) (domain.BotStatus, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return domain.BotStatus{}, s.errs[i]
	}
	if i < len(s.snapshots) {
		return s.snapshots[i], nil
	}
	return domain.BotStatus{}, errors.New("exhausted")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func jobsNamed(names ...string) []domain.BotJob {
	jobs := make([]domain.BotJob, 0, len(names))
	for i, n := range names {
		jobs = append(jobs, domain.BotJob{
			ID:     domain.JobID(string(rune('a'+i)) + "-1"),
			Name:   n,
			Type:   domain.JobTypePosting,
			Status: domain.JobStatusStopped,
		})
	}
	return jobs
}

func TestView_StaleOnError(t *testing.T) {
	src := &scriptedSource{
		snapshots: []domain.BotStatus{{Jobs: jobsNamed("Job #1", "Job #2", "Job #3")}},
		errs:      []error{nil, errors.New("503 from backend")},
	}
	v := NewView(testLogger(), src, &mockCommander{}, Config{})
	ctx := context.Background()

	v.Refresh(ctx)
	require.Len(t, v.Jobs(), 3)
	require.Empty(t, v.Error())

	v.Refresh(ctx)
	assert.Len(t, v.Jobs(), 3, "failed poll must not clear displayed jobs")
	assert.Contains(t, v.Error(), "failed to refresh jobs")

	v.DismissError()
	assert.Empty(t, v.Error())
}

func TestView_FiltersDemoJobs(t *testing.T) {
	jobs := jobsNamed("Job #1")
	jobs = append(jobs, domain.BotJob{ID: "posting-demo-1", Name: "Demo", Type: domain.JobTypePosting})
	src := &scriptedSource{snapshots: []domain.BotStatus{{Jobs: jobs}}}

	v := NewView(testLogger(), src, &mockCommander{}, Config{})
	v.Refresh(context.Background())

	got := v.Jobs()
	require.Len(t, got, 1)
	assert.Equal(t, "Job #1", got[0].Name)
}

func TestView_SnapshotReplacesWholesale(t *testing.T) {
	src := &scriptedSource{snapshots: []domain.BotStatus{
		{Jobs: jobsNamed("Job #1", "Job #2")},
		{Jobs: jobsNamed("Job #5")},
	}}
	v := NewView(testLogger(), src, &mockCommander{}, Config{})
	ctx := context.Background()

	v.Refresh(ctx)
	require.Len(t, v.Jobs(), 2)

	v.Refresh(ctx)
	got := v.Jobs()
	require.Len(t, got, 1)
	assert.Equal(t, "Job #5", got[0].Name)
}

func TestView_StartRefreshesAfterCommand(t *testing.T) {
	src := &scriptedSource{snapshots: []domain.BotStatus{
		{Jobs: jobsNamed("Job #1")},
		{Jobs: []domain.BotJob{{ID: "a-1", Name: "Job #1", Status: domain.JobStatusRunning}}},
	}}
	cmd := &mockCommander{}
	cmd.On("StartJob", mock.Anything, domain.JobID("a-1")).Return(nil)

	v := NewView(testLogger(), src, cmd, Config{})
	ctx := context.Background()
	v.Refresh(ctx)

	require.NoError(t, v.Start(ctx, "a-1"))
	cmd.AssertCalled(t, "StartJob", mock.Anything, domain.JobID("a-1"))

	got := v.Jobs()
	require.Len(t, got, 1)
	assert.Equal(t, domain.JobStatusRunning, got[0].Status, "post-command refresh should pick up new status")
	assert.False(t, v.Busy("a-1", "start"))
}

func TestView_CommandFailureScopedError(t *testing.T) {
	src := &scriptedSource{snapshots: []domain.BotStatus{{Jobs: jobsNamed("Job #1")}}}
	cmd := &mockCommander{}
	cmd.On("StopJob", mock.Anything, mock.Anything).Return(errors.New("backend exploded"))

	v := NewView(testLogger(), src, cmd, Config{})
	ctx := context.Background()
	v.Refresh(ctx)

	err := v.Stop(ctx, "a-1")
	require.Error(t, err)
	assert.Contains(t, v.Error(), "failed to stop job")
	assert.Len(t, v.Jobs(), 1, "command failure must not destroy the job list")
}

func TestView_RenameOptimisticPatch(t *testing.T) {
	src := &scriptedSource{snapshots: []domain.BotStatus{{Jobs: jobsNamed("Job #1")}}}
	cmd := &mockCommander{}
	cmd.On("RenameJob", mock.Anything, domain.JobID("a-1"), "Charizard watch").Return(nil)

	v := NewView(testLogger(), src, cmd, Config{})
	ctx := context.Background()
	v.Refresh(ctx)

	require.NoError(t, v.Rename(ctx, "a-1", "Charizard watch"))
	got := v.Jobs()
	require.Len(t, got, 1)
	assert.Equal(t, "Charizard watch", got[0].Name, "rename patches locally without waiting for a snapshot")
}

func TestView_NextJobNameUsesMax(t *testing.T) {
	src := &scriptedSource{snapshots: []domain.BotStatus{{Jobs: jobsNamed("Job #1", "Job #3")}}}
	v := NewView(testLogger(), src, &mockCommander{}, Config{})
	v.Refresh(context.Background())

	assert.Equal(t, "Job #4", v.NextJobName(), "max+1, not count+1")
}

func TestNextJobName_IgnoresCustomNames(t *testing.T) {
	jobs := jobsNamed("Job #2", "My bot", "Job #7")
	assert.Equal(t, "Job #8", domain.NextJobName(jobs))
	assert.Equal(t, "Job #1", domain.NextJobName(nil))
}
