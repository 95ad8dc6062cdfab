package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type JobID string

type JobType string

const (
	JobTypePosting  JobType = "posting"
	JobTypeReplying JobType = "replying"
)

type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusStopped JobStatus = "stopped"
	JobStatusPaused  JobStatus = "paused"
)

// BotJob is one schedulable unit of bot work: either a posting job that
// publishes generated content on a cadence, or a reply job that answers
// tweets from the candidate pool.
type BotJob struct {
	ID        JobID       `json:"id"`
	Name      string      `json:"name"`
	Type      JobType     `json:"type"`
	Status    JobStatus   `json:"status"`
	Settings  JobSettings `json:"settings"`
	Stats     JobStats    `json:"stats"`
	CreatedAt time.Time   `json:"createdAt"`
	LastRun   *time.Time  `json:"lastRun"`
	NextRun   *time.Time  `json:"nextRun"`
}

type JobStats struct {
	PostsToday   int `json:"postsToday"`
	RepliesToday int `json:"repliesToday"`
	SuccessRate  int `json:"successRate"`
}

// demoMarker tags server-seeded placeholder jobs. They stay in storage but
// are excluded from every displayed registry.
const demoMarker = "demo"

// IsDemo reports whether the job is a seeded placeholder.
func (j BotJob) IsDemo() bool {
	return strings.Contains(string(j.ID), demoMarker)
}

// JobSettings is the type-specific configuration blob attached to a job.
// Posting jobs use PostsPerDay/Topics and the posting window; reply jobs
// use MaxRepliesPerHour/ReplyCount.
type JobSettings struct {
	PostsPerDay      int             `json:"postsPerDay" validate:"omitempty,min=1,max=20"`
	Topics           []string        `json:"topics"`
	PostingTimeStart string          `json:"postingTimeStart"`
	PostingTimeEnd   string          `json:"postingTimeEnd"`
	PostingDate      string          `json:"postingDate"`
	ContentTypes     map[string]bool `json:"contentTypes"`

	MaxRepliesPerHour int `json:"maxRepliesPerHour" validate:"omitempty,min=1,max=50"`
	ReplyCount        int `json:"replyCount" validate:"omitempty,min=1,max=20"`
}

// Window parses the posting time window. End must be strictly after start
// so the scheduled-time distribution has non-degenerate slots.
func (s JobSettings) Window() (start, end time.Time, err error) {
	start, err = time.Parse("15:04", s.PostingTimeStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid postingTimeStart %q: %w", s.PostingTimeStart, err)
	}
	end, err = time.Parse("15:04", s.PostingTimeEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid postingTimeEnd %q: %w", s.PostingTimeEnd, err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, ErrInvalidWindow
	}
	return start, end, nil
}

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidWindow   = errors.New("posting window end must be after start")
	ErrNoTopics        = errors.New("at least one topic is required")
	ErrRateLimited     = errors.New("rate limited by upstream API")
	ErrNoTweets        = errors.New("no candidate tweets available")
	ErrBatchNotFound   = errors.New("batch not found")
	ErrBatchCommitted  = errors.New("batch already committed")
	ErrItemNotFound    = errors.New("batch item not found")
	ErrNothingApproved = errors.New("no approved items to commit")
)

var jobNamePattern = regexp.MustCompile(`^Job #(\d+)$`)

// NextJobName derives the auto-assigned name for a job created without one.
// It scans the given jobs for the highest "Job #N" and returns max+1, so
// numbering stays correct across reconnects instead of drifting with a
// client-held counter.
func NextJobName(jobs []BotJob) string {
	max := 0
	for _, j := range jobs {
		m := jobNamePattern.FindStringSubmatch(j.Name)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("Job #%d", max+1)
}
