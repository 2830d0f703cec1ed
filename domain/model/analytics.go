package model

import "time"

// PlatformBreakdown sums posts and engagement for one platform. A post that
// targets several platforms counts fully toward each of them.
type PlatformBreakdown struct {
	Platform          string  `json:"platform"`
	Posts             int     `json:"posts"`
	Engagement        int64   `json:"engagement"`
	Views             int64   `json:"views"`
	AverageEngagement float64 `json:"average_engagement"`
}

// TopContentItem is one entry in the top content ranking.
type TopContentItem struct {
	PostID      string    `json:"post_id"`
	UserID      string    `json:"user_id"`
	Content     string    `json:"content"`
	Platforms   []string  `json:"platforms"`
	Engagement  int64     `json:"engagement"`
	Views       int64     `json:"views"`
	PublishedAt time.Time `json:"published_at"`
}

// TopPerformer ranks a user by total engagement.
type TopPerformer struct {
	UserID     string `json:"user_id"`
	Posts      int    `json:"posts"`
	Engagement int64  `json:"engagement"`
}

// AnalyticsSnapshot is a derived rollup over a time window. It is recomputed on
// demand and never written back to posts.
type AnalyticsSnapshot struct {
	UserID              string              `json:"user_id,omitempty"`
	WindowDays          int                 `json:"window_days"`
	From                time.Time           `json:"from"`
	To                  time.Time           `json:"to"`
	TotalPosts          int                 `json:"total_posts"`
	TotalEngagement     int64               `json:"total_engagement"`
	AverageEngagement   float64             `json:"average_engagement"`
	TotalViews          int64               `json:"total_views"`
	PlatformBreakdown   []PlatformBreakdown `json:"platform_breakdown"`
	TopContent          []TopContentItem    `json:"top_content"`
	EngagementTrendPct  *float64            `json:"engagement_trend_pct,omitempty"`
	OptimalPostingHours map[string][]int    `json:"optimal_posting_hours"`
	TopPerformers       []TopPerformer      `json:"top_performers,omitempty"`
	GeneratedAt         time.Time           `json:"generated_at"`
}
