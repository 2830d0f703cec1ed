package model

import "time"

// PostEvent is published whenever a post's status changes.
type PostEvent struct {
	PostID     string                    `json:"post_id"`
	UserID     string                    `json:"user_id"`
	Status     PostStatus                `json:"status"`
	Results    map[string]PlatformResult `json:"results,omitempty"`
	OccurredAt time.Time                 `json:"occurred_at"`
}

// NewPostEvent snapshots p into an event.
func NewPostEvent(p *SocialPost, at time.Time) PostEvent {
	c := p.Clone()
	return PostEvent{PostID: c.ID, UserID: c.UserID, Status: c.Status, Results: c.Results, OccurredAt: at}
}
