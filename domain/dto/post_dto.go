package dto

import (
	"time"

	"crosspost/domain/model"
)

// CreatePostRequest is the body of POST /api/posts.
type CreatePostRequest struct {
	Content        string     `json:"content"`
	Platforms      []string   `json:"platforms"`
	MediaURLs      []string   `json:"media_urls,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

// UpdatePostRequest replaces the editable fields of a draft or scheduled post.
// Nil fields are left unchanged.
type UpdatePostRequest struct {
	Content       *string    `json:"content,omitempty"`
	Platforms     []string   `json:"platforms,omitempty"`
	MediaURLs     []string   `json:"media_urls,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	ClearSchedule bool       `json:"clear_schedule,omitempty"`
}

type ValidateRequest struct {
	Content   string   `json:"content"`
	Platforms []string `json:"platforms"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// ValidationResult is the validator's verdict; Errors keeps platform order.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

type DeletePostResponse struct {
	Post     *model.SocialPost      `json:"post"`
	Removals []model.RemovalOutcome `json:"removals"`
}

type PlatformInfo struct {
	Platform   string                   `json:"platform"`
	Constraint model.PlatformConstraint `json:"constraint"`
}
