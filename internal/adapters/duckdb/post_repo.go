package duckdb

import (
	"context"
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
)

func (r *Repository) SavePost(ctx context.Context, post domain.Post) error {
	query := `
	INSERT INTO posts (id, content, topic, likes, retweets, replies, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		likes = excluded.likes,
		retweets = excluded.retweets,
		replies = excluded.replies;
	`
	_, err := r.db.ExecContext(ctx, query,
		post.ID, post.Content, post.Topic,
		post.Engagement.Likes, post.Engagement.Retweets, post.Engagement.Replies,
		post.Timestamp,
	)
	return err
}

func (r *Repository) ListPosts(ctx context.Context, limit, offset int) ([]domain.Post, int, error) {
	if limit <= 0 {
		limit = 10
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, content, topic, likes, retweets, replies, created_at FROM posts ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.Content, &p.Topic,
			&p.Engagement.Likes, &p.Engagement.Retweets, &p.Engagement.Replies,
			&p.Timestamp); err != nil {
			return nil, 0, err
		}
		if p.Topic != "" {
			p.Topics = []string{p.Topic}
		}
		posts = append(posts, p)
	}
	return posts, total, rows.Err()
}

func (r *Repository) Metrics(ctx context.Context) (domain.Metrics, error) {
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(likes), 0),
		COALESCE(AVG(likes + retweets + replies), 0)
	FROM posts`

	var m domain.Metrics
	if err := r.db.QueryRowContext(ctx, query).Scan(&m.TotalPosts, &m.TotalLikes, &m.AvgEngagement); err != nil {
		return domain.Metrics{}, err
	}
	m.LastUpdated = time.Now()
	return m, nil
}

func (r *Repository) TopicTrends(ctx context.Context) ([]domain.TopicTrend, error) {
	query := `
	SELECT topic, COUNT(*) AS n
	FROM posts
	WHERE topic IS NOT NULL AND topic != ''
	GROUP BY topic
	ORDER BY n DESC
	LIMIT 10`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []domain.TopicTrend
	var total int
	for rows.Next() {
		var t domain.TopicTrend
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, err
		}
		t.Trend = "up"
		trends = append(trends, t)
		total += t.Count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range trends {
		if total > 0 {
			trends[i].Percentage = trends[i].Count * 100 / total
		}
	}
	return trends, nil
}

func (r *Repository) EngagementByDay(ctx context.Context, days int) ([]domain.EngagementPoint, error) {
	if days <= 0 {
		days = 7
	}

	query := `
	SELECT
		STRFTIME(created_at, '%Y-%m-%d') AS day,
		COALESCE(AVG(likes + retweets + replies), 0),
		COUNT(*)
	FROM posts
	WHERE created_at >= ?
	GROUP BY day
	ORDER BY day ASC`

	since := time.Now().AddDate(0, 0, -days)
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.EngagementPoint
	for rows.Next() {
		var p domain.EngagementPoint
		if err := rows.Scan(&p.Date, &p.Engagement, &p.Posts); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
