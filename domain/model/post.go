package model

import "time"

// PostStatus is the lifecycle state of a SocialPost.
type PostStatus string

const (
	PostStatusDraft           PostStatus = "draft"
	PostStatusScheduled       PostStatus = "scheduled"
	PostStatusPublishing      PostStatus = "publishing"
	PostStatusPublished       PostStatus = "published"
	PostStatusPartiallyFailed PostStatus = "partially_failed"
	PostStatusFailed          PostStatus = "failed"
	PostStatusDeleted         PostStatus = "deleted"
)

// IsTerminal reports whether every platform result has landed for the post.
func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPublished || s == PostStatusPartiallyFailed || s == PostStatusFailed
}

// IsEditable reports whether content and targets may still change.
func (s PostStatus) IsEditable() bool {
	return s == PostStatusDraft || s == PostStatusScheduled
}

// ResultState is the per-platform dispatch state.
type ResultState string

const (
	ResultPending   ResultState = "pending"
	ResultSucceeded ResultState = "succeeded"
	ResultFailed    ResultState = "failed"
)

// PlatformResult is the latest dispatch result for one platform of a post.
type PlatformResult struct {
	State     ResultState    `json:"state"                bson:"state"`
	RemoteID  string         `json:"remote_id,omitempty"  bson:"remote_id,omitempty"`
	Reason    DispatchReason `json:"reason,omitempty"     bson:"reason,omitempty"`
	Message   string         `json:"message,omitempty"    bson:"message,omitempty"`
	Attempts  int            `json:"attempts"             bson:"attempts"`
	UpdatedAt time.Time      `json:"updated_at"           bson:"updated_at"`
}

// Engagement holds raw counters collected for a published post.
// Views are tracked separately from the engagement total.
type Engagement struct {
	Likes     int64     `json:"likes,omitempty"      bson:"likes,omitempty"`
	Shares    int64     `json:"shares,omitempty"     bson:"shares,omitempty"`
	Comments  int64     `json:"comments,omitempty"   bson:"comments,omitempty"`
	Clicks    int64     `json:"clicks,omitempty"     bson:"clicks,omitempty"`
	Views     int64     `json:"views,omitempty"      bson:"views,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty" bson:"fetched_at,omitempty"`
}

// Total is likes+shares+comments+clicks.
func (e Engagement) Total() int64 {
	return e.Likes + e.Shares + e.Comments + e.Clicks
}

// Add returns the counter-wise sum of e and o.
func (e Engagement) Add(o Engagement) Engagement {
	return Engagement{
		Likes:    e.Likes + o.Likes,
		Shares:   e.Shares + o.Shares,
		Comments: e.Comments + o.Comments,
		Clicks:   e.Clicks + o.Clicks,
		Views:    e.Views + o.Views,
	}
}

// SocialPost is one piece of content fanned out to several platforms.
type SocialPost struct {
	ID             string                    `json:"id"                        bson:"_id"`
	UserID         string                    `json:"user_id"                   bson:"user_id"`
	Content        string                    `json:"content"                   bson:"content"`
	Platforms      []string                  `json:"platforms"                 bson:"platforms"`
	MediaURLs      []string                  `json:"media_urls,omitempty"      bson:"media_urls,omitempty"`
	ScheduledAt    *time.Time                `json:"scheduled_at,omitempty"    bson:"scheduled_at,omitempty"`
	Status         PostStatus                `json:"status"                    bson:"status"`
	Results        map[string]PlatformResult `json:"results"                   bson:"results"`
	Analytics      *Engagement               `json:"analytics,omitempty"       bson:"analytics,omitempty"`
	IdempotencyKey string                    `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	PublishedAt    *time.Time                `json:"published_at,omitempty"    bson:"published_at,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"                bson:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"                bson:"updated_at"`
}

// EngagementTotal returns the post's engagement, zero when no analytics were collected.
func (p *SocialPost) EngagementTotal() int64 {
	if p.Analytics == nil {
		return 0
	}
	return p.Analytics.Total()
}

// Views returns collected views, zero when absent.
func (p *SocialPost) Views() int64 {
	if p.Analytics == nil {
		return 0
	}
	return p.Analytics.Views
}

// PlatformsIn returns the platforms whose result is in one of the given states,
// preserving the post's platform order.
func (p *SocialPost) PlatformsIn(states ...ResultState) []string {
	out := make([]string, 0, len(p.Platforms))
	for _, platform := range p.Platforms {
		r, ok := p.Results[platform]
		if !ok {
			r = PlatformResult{State: ResultPending}
		}
		for _, s := range states {
			if r.State == s {
				out = append(out, platform)
				break
			}
		}
	}
	return out
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (p *SocialPost) Clone() *SocialPost {
	if p == nil {
		return nil
	}
	c := *p
	c.Platforms = append([]string(nil), p.Platforms...)
	if p.MediaURLs != nil {
		c.MediaURLs = append([]string(nil), p.MediaURLs...)
	}
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		c.ScheduledAt = &t
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		c.PublishedAt = &t
	}
	if p.Analytics != nil {
		a := *p.Analytics
		c.Analytics = &a
	}
	c.Results = make(map[string]PlatformResult, len(p.Results))
	for k, v := range p.Results {
		c.Results[k] = v
	}
	return &c
}

// PendingResults builds a result map with every platform pending.
func PendingResults(platforms []string, now time.Time) map[string]PlatformResult {
	out := make(map[string]PlatformResult, len(platforms))
	for _, p := range platforms {
		out[p] = PlatformResult{State: ResultPending, UpdatedAt: now}
	}
	return out
}

// DeriveStatus computes the post status from its per-platform results.
// complete is false while any platform is still pending; the status is then publishing.
func DeriveStatus(platforms []string, results map[string]PlatformResult) (status PostStatus, complete bool) {
	if len(platforms) == 0 {
		return PostStatusFailed, true
	}
	succeeded, failed := 0, 0
	for _, p := range platforms {
		switch results[p].State {
		case ResultSucceeded:
			succeeded++
		case ResultFailed:
			failed++
		default:
			return PostStatusPublishing, false
		}
	}
	switch {
	case failed == 0:
		return PostStatusPublished, true
	case succeeded == 0:
		return PostStatusFailed, true
	default:
		return PostStatusPartiallyFailed, true
	}
}

// RemovalOutcome records a best-effort remote removal attempt during delete.
type RemovalOutcome struct {
	Platform string `json:"platform"`
	RemoteID string `json:"remote_id"`
	Removed  bool   `json:"removed"`
	Error    string `json:"error,omitempty"`
}
