package domain

import "time"

// BotStatus is one full snapshot of the bot-status endpoint: the job list
// plus aggregate counters. Consumers replace their view of the world with
// each successful snapshot, never merge.
type BotStatus struct {
	Running bool       `json:"running"`
	Uptime  string     `json:"uptime,omitempty"`
	LastRun *time.Time `json:"lastRun"`
	Stats   JobStats   `json:"stats"`
	Jobs    []BotJob   `json:"jobs"`
}

// Post is a published tweet as stored for the recent-posts panel.
type Post struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Topic      string     `json:"topic"`
	Topics     []string   `json:"topics"`
	Engagement Engagement `json:"engagement"`
	Timestamp  time.Time  `json:"timestamp"`
}

type Engagement struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
}

// Metrics drives the headline numbers on the dashboard.
type Metrics struct {
	TotalPosts    int       `json:"totalPosts"`
	AvgEngagement float64   `json:"avgEngagement"`
	TotalLikes    int       `json:"totalLikes"`
	Followers     int       `json:"followers"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// TopicTrend is one row of the trending-topics panel.
type TopicTrend struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Trend      string `json:"trend"`
	Percentage int    `json:"percentage"`
}

// EngagementPoint is one day of the engagement chart.
type EngagementPoint struct {
	Date       string  `json:"date"`
	Engagement float64 `json:"engagement"`
	Posts      int     `json:"posts"`
}

// Settings is the dashboard-editable bot configuration, persisted as an
// opaque blob by the settings endpoints.
type Settings struct {
	PostsPerDay    int             `json:"postsPerDay"`
	Keywords       []string        `json:"keywords"`
	EngagementMode string          `json:"engagementMode"`
	AutoReply      bool            `json:"autoReply"`
	ContentTypes   map[string]bool `json:"contentTypes"`
}

// DefaultSettings mirrors the seed configuration written on first boot.
func DefaultSettings() Settings {
	return Settings{
		PostsPerDay:    12,
		Keywords:       []string{"Pokemon", "TCG", "Charizard", "Pikachu"},
		EngagementMode: "balanced",
		AutoReply:      true,
		ContentTypes: map[string]bool{
			"cardPulls":      true,
			"deckBuilding":   true,
			"marketAnalysis": true,
			"tournaments":    true,
		},
	}
}
