package ports

import (
	"context"
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
)

// Generator abstracts the text-generation backend (LLM or template fallback).
type Generator interface {
	// GeneratePost produces one candidate post about the given topic.
	GeneratePost(ctx context.Context, topic string) (domain.GeneratedPost, error)

	// GenerateReply produces reply text for the given source tweet.
	GenerateReply(ctx context.Context, tweet domain.SourceTweet) (string, error)
}

// Poster abstracts the social-network posting API.
type Poster interface {
	// PostTweet publishes an original tweet.
	PostTweet(ctx context.Context, content string) (domain.PostResult, error)

	// PostReply publishes a reply to an existing tweet.
	PostReply(ctx context.Context, content, replyToID string) (domain.PostResult, error)

	// TweetURL builds the public URL for a published tweet.
	TweetURL(tweetID string) string
}

// TweetSource abstracts the sheet-backed pool of candidate tweets.
type TweetSource interface {
	FetchTweets(ctx context.Context) ([]domain.SourceTweet, error)
}

// Repository abstracts persistent storage (DuckDB).
type Repository interface {
	// Jobs
	SaveJob(ctx context.Context, job domain.BotJob) error
	GetJob(ctx context.Context, id domain.JobID) (domain.BotJob, error)
	ListJobs(ctx context.Context) ([]domain.BotJob, error)

	// Published posts
	SavePost(ctx context.Context, post domain.Post) error
	ListPosts(ctx context.Context, limit, offset int) ([]domain.Post, int, error)
	Metrics(ctx context.Context) (domain.Metrics, error)
	TopicTrends(ctx context.Context) ([]domain.TopicTrend, error)
	EngagementByDay(ctx context.Context, days int) ([]domain.EngagementPoint, error)

	// Scheduled posts committed from the approval workflow
	SaveScheduledPost(ctx context.Context, sp domain.ScheduledPost) error
	DueScheduledPosts(ctx context.Context, now time.Time) ([]domain.ScheduledPost, error)
	MarkScheduledPostDone(ctx context.Context, id string) error

	// Reply bookkeeping
	MarkTweetReplied(ctx context.Context, tweetID string) error
	HasRepliedTo(ctx context.Context, tweetID string) (bool, error)

	// Settings KV
	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key, value string) error
}
