package repository

import (
	"context"

	"crosspost/domain/model"
)

// IPlatformDispatcher is the outbound capability that publishes to social networks.
// Send must be safe to call concurrently for different platforms of one post.
type IPlatformDispatcher interface {
	Send(ctx context.Context, req model.DispatchRequest) (remoteID string, derr *model.DispatchError)
	Remove(ctx context.Context, userID, platform, remoteID string) error
}

// ICredentialVerifier checks a platform token and reports who owns it.
type ICredentialVerifier interface {
	VerifyCredentials(ctx context.Context, platform, token string) (*model.AccountIdentity, error)
}

// IDispatchAudit is the append-only trail of every send attempt.
type IDispatchAudit interface {
	Append(ctx context.Context, outcome model.DispatchOutcome) error
	ListByPost(ctx context.Context, postID string) ([]model.DispatchOutcome, error)
}

// IEngagementSource fetches current counters for a published item.
type IEngagementSource interface {
	Supports(platform string) bool
	Fetch(ctx context.Context, platform, remoteID string) (*model.Engagement, error)
}

// IEventPublisher forwards post lifecycle events to a broker.
type IEventPublisher interface {
	Publish(ctx context.Context, event model.PostEvent) error
}
