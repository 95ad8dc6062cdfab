package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
)

func (r *Repository) SaveJob(ctx context.Context, job domain.BotJob) error {
	settingsJSON, err := json.Marshal(job.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	statsJSON, err := json.Marshal(job.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	query := `
	INSERT INTO jobs (id, name, type, status, settings, stats, created_at, last_run, next_run)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		status = excluded.status,
		settings = excluded.settings,
		stats = excluded.stats,
		last_run = excluded.last_run,
		next_run = excluded.next_run;
	`

	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.Name, job.Type, job.Status,
		string(settingsJSON), string(statsJSON),
		job.CreatedAt, job.LastRun, job.NextRun,
	)
	return err
}

func (r *Repository) GetJob(ctx context.Context, id domain.JobID) (domain.BotJob, error) {
	query := `SELECT id, name, type, status, CAST(settings AS TEXT), CAST(stats AS TEXT), created_at, last_run, next_run FROM jobs WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return domain.BotJob{}, domain.ErrJobNotFound
	}
	return job, err
}

func (r *Repository) ListJobs(ctx context.Context) ([]domain.BotJob, error) {
	query := `SELECT id, name, type, status, CAST(settings AS TEXT), CAST(stats AS TEXT), created_at, last_run, next_run FROM jobs ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.BotJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scan func(...any) error) (domain.BotJob, error) {
	var j domain.BotJob
	var idStr, typeStr, statusStr, settingsJSON, statsJSON string

	err := scan(&idStr, &j.Name, &typeStr, &statusStr, &settingsJSON, &statsJSON,
		&j.CreatedAt, &j.LastRun, &j.NextRun)
	if err != nil {
		return domain.BotJob{}, err
	}

	j.ID = domain.JobID(idStr)
	j.Type = domain.JobType(typeStr)
	j.Status = domain.JobStatus(statusStr)
	if err := json.Unmarshal([]byte(settingsJSON), &j.Settings); err != nil {
		return domain.BotJob{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &j.Stats); err != nil {
		return domain.BotJob{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return j, nil
}

func (r *Repository) SaveScheduledPost(ctx context.Context, sp domain.ScheduledPost) error {
	query := `
	INSERT INTO scheduled_posts (id, job_id, content, topic, hashtags, post_at, posted)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET posted = excluded.posted;
	`
	_, err := r.db.ExecContext(ctx, query,
		sp.ID, sp.JobID, sp.Content, sp.Topic,
		strings.Join(sp.Hashtags, " "), sp.PostAt, sp.Posted,
	)
	return err
}

func (r *Repository) DueScheduledPosts(ctx context.Context, now time.Time) ([]domain.ScheduledPost, error) {
	query := `SELECT id, job_id, content, topic, hashtags, post_at, posted FROM scheduled_posts WHERE posted = FALSE AND post_at <= ? ORDER BY post_at ASC`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.ScheduledPost
	for rows.Next() {
		var sp domain.ScheduledPost
		var jobIDStr, hashtags string
		if err := rows.Scan(&sp.ID, &jobIDStr, &sp.Content, &sp.Topic, &hashtags, &sp.PostAt, &sp.Posted); err != nil {
			return nil, err
		}
		sp.JobID = domain.JobID(jobIDStr)
		if hashtags != "" {
			sp.Hashtags = strings.Fields(hashtags)
		}
		due = append(due, sp)
	}
	return due, rows.Err()
}

func (r *Repository) MarkScheduledPostDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scheduled_posts SET posted = TRUE WHERE id = ?`, id)
	return err
}

func (r *Repository) MarkTweetReplied(ctx context.Context, tweetID string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO replied_tweets (tweet_id) VALUES (?)
	ON CONFLICT (tweet_id) DO NOTHING;
	`, tweetID)
	return err
}

func (r *Repository) HasRepliedTo(ctx context.Context, tweetID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM replied_tweets WHERE tweet_id = ?`, tweetID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
