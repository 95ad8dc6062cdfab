package domain

import "time"

type ContentType string

const (
	ContentTypePost  ContentType = "post"
	ContentTypeReply ContentType = "reply"
)

// ReviewState tracks where a generated item sits in the approval workflow.
// Regenerating is transient: a rejected item is immediately re-generated and
// returns to pending, it is never left in a durable "rejected" state.
type ReviewState string

const (
	ReviewPending      ReviewState = "pending"
	ReviewApproved     ReviewState = "approved"
	ReviewRegenerating ReviewState = "regenerating"
)

// ContentItem is one candidate in a generation batch, reviewed and
// committed by a human before anything reaches the posting API.
type ContentItem struct {
	ID      string      `json:"id"`
	Type    ContentType `json:"type"`
	Content string      `json:"content"`
	State   ReviewState `json:"state"`

	// Post fields
	Topic         string     `json:"topic,omitempty"`
	Hashtags      []string   `json:"hashtags,omitempty"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`

	// Reply fields
	TweetID          string `json:"tweetId,omitempty"`
	TweetAuthor      string `json:"tweetAuthor,omitempty"`
	OriginalTweet    string `json:"originalTweet,omitempty"`
	OriginalTweetURL string `json:"originalTweetUrl,omitempty"`
}

// GeneratedPost is the raw output of one content-generation call.
type GeneratedPost struct {
	Content         string   `json:"content"`
	Topic           string   `json:"topic"`
	Hashtags        []string `json:"hashtags,omitempty"`
	EngagementScore float64  `json:"engagement_score,omitempty"`
	MentionsTradeUp bool     `json:"mentions_tradeup,omitempty"`
}

// SourceTweet is one candidate tweet from the sheet-backed pool.
type SourceTweet struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"`
}

// PostResult is the posting API's answer to a publish call.
type PostResult struct {
	TweetID string `json:"tweet_id"`
	URL     string `json:"tweet_url"`
}

// PostedReply is the display record kept for each reply that was actually
// published during a commit. It is never re-fetched.
type PostedReply struct {
	ID               string    `json:"id"`
	Content          string    `json:"content"`
	OriginalTweet    string    `json:"originalTweet"`
	TweetAuthor      string    `json:"tweetAuthor"`
	ReplyURL         string    `json:"replyUrl"`
	OriginalTweetURL string    `json:"originalTweetUrl"`
	PostedAt         time.Time `json:"postedAt"`
}

// ScheduledPost is an approved post committed into a posting job, waiting
// for its slot time.
type ScheduledPost struct {
	ID       string    `json:"id"`
	JobID    JobID     `json:"jobId"`
	Content  string    `json:"content"`
	Topic    string    `json:"topic"`
	Hashtags []string  `json:"hashtags,omitempty"`
	PostAt   time.Time `json:"postAt"`
	Posted   bool      `json:"posted"`
}
