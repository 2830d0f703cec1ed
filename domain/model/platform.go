package model

import (
	"fmt"
	"time"
)

// MediaKind classifies attached media.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaGIF   MediaKind = "gif"
	MediaLink  MediaKind = "link"
)

// PlatformConstraint describes the content limits of one platform.
type PlatformConstraint struct {
	DisplayName    string      `json:"display_name"    mapstructure:"displayName"`
	MaxLength      int         `json:"max_length"      mapstructure:"maxLength"`
	MaxHashtags    int         `json:"max_hashtags"    mapstructure:"maxHashtags"`
	MaxMentions    int         `json:"max_mentions"    mapstructure:"maxMentions"`
	SupportedMedia []MediaKind `json:"supported_media" mapstructure:"supportedMedia"`
}

// Supports reports whether kind is accepted by the platform.
func (c PlatformConstraint) Supports(kind MediaKind) bool {
	for _, k := range c.SupportedMedia {
		if k == kind {
			return true
		}
	}
	return false
}

// DispatchReason is the structured cause of a failed platform send.
type DispatchReason string

const (
	ReasonAuthExpired  DispatchReason = "auth_expired"
	ReasonRateLimited  DispatchReason = "rate_limited"
	ReasonNetworkError DispatchReason = "network_error"
	ReasonRejected     DispatchReason = "rejected"
)

// DispatchError is a per-platform send failure. It is recorded on the post,
// never returned from a dispatch call.
type DispatchError struct {
	Platform string         `json:"platform"`
	Reason   DispatchReason `json:"reason"`
	Message  string         `json:"message,omitempty"`
}

func (e *DispatchError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Platform, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Reason, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *DispatchError) Temporary() bool {
	return e.Reason == ReasonNetworkError || e.Reason == ReasonRateLimited
}

// DispatchOutcome is the result of one send attempt to one platform.
type DispatchOutcome struct {
	ID          string         `json:"id"                    bson:"_id"`
	PostID      string         `json:"post_id"               bson:"post_id"`
	Platform    string         `json:"platform"              bson:"platform"`
	Succeeded   bool           `json:"succeeded"             bson:"succeeded"`
	RemoteID    string         `json:"remote_id,omitempty"   bson:"remote_id,omitempty"`
	Reason      DispatchReason `json:"reason,omitempty"      bson:"reason,omitempty"`
	Message     string         `json:"message,omitempty"     bson:"message,omitempty"`
	Latency     time.Duration  `json:"latency_ns"            bson:"latency_ns"`
	AttemptedAt time.Time      `json:"attempted_at"          bson:"attempted_at"`
}

// Result converts the outcome into the stored per-platform result.
func (o DispatchOutcome) Result(attempts int) PlatformResult {
	if o.Succeeded {
		return PlatformResult{State: ResultSucceeded, RemoteID: o.RemoteID, Attempts: attempts, UpdatedAt: o.AttemptedAt}
	}
	return PlatformResult{State: ResultFailed, Reason: o.Reason, Message: o.Message, Attempts: attempts, UpdatedAt: o.AttemptedAt}
}

// DispatchRequest is what a platform sender receives for one target.
type DispatchRequest struct {
	PostID    string   `json:"post_id"`
	UserID    string   `json:"user_id"`
	Platform  string   `json:"platform"`
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls,omitempty"`
}
