package repository

import (
	"context"
	"errors"
	"time"

	"crosspost/domain/model"
)

var (
	ErrPostNotFound = errors.New("post not found")
	// ErrStatusConflict is returned when a conditional status change finds the
	// post in a state outside the expected set.
	ErrStatusConflict = errors.New("post status conflict")
)

// IPost is the durable store for social posts.
type IPost interface {
	// Create inserts post. When the user already has a post with the same
	// idempotency key, the stored post is returned with created=false.
	Create(ctx context.Context, post *model.SocialPost) (stored *model.SocialPost, created bool, err error)
	Get(ctx context.Context, id string) (*model.SocialPost, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*model.SocialPost, error)
	// UpdateContent replaces the editable fields while the post is draft or scheduled.
	UpdateContent(ctx context.Context, post *model.SocialPost) (*model.SocialPost, error)
	// TransitionStatus moves the post to `to` if its status is in `from`, merging
	// patch into the stored results in the same write.
	TransitionStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus, patch map[string]model.PlatformResult) (*model.SocialPost, error)
	// RecordResult atomically replaces one platform's result.
	RecordResult(ctx context.Context, id, platform string, result model.PlatformResult) error
	// FinalizeStatus sets a derived status on a publishing post.
	FinalizeStatus(ctx context.Context, id string, status model.PostStatus, publishedAt *time.Time) (*model.SocialPost, error)
	// ListPublished scans published posts with publishedAt in [from, to]. An empty
	// userID scans every user.
	ListPublished(ctx context.Context, userID string, from, to time.Time) ([]*model.SocialPost, error)
	ListByStatus(ctx context.Context, userID string, status model.PostStatus, limit int) ([]*model.SocialPost, error)
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.SocialPost, error)
	UpdateEngagement(ctx context.Context, id string, engagement model.Engagement) error
}
