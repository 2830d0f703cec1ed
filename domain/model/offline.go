package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// OfflineAction is the discriminant of a queued client action.
type OfflineAction string

const (
	ActionCreateAccount OfflineAction = "createAccount"
	ActionCreatePost    OfflineAction = "createPost"
	ActionUpdateProfile OfflineAction = "updateProfile"
)

// CreateAccountPayload connects a social account.
type CreateAccountPayload struct {
	Platform    string `json:"platform"`
	AuthToken   string `json:"auth_token"`
	AccountName string `json:"account_name"`
}

// CreatePostPayload creates a post and optionally dispatches it right away.
type CreatePostPayload struct {
	Content     string     `json:"content"`
	Platforms   []string   `json:"platforms"`
	MediaURLs   []string   `json:"media_urls,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Dispatch    bool       `json:"dispatch,omitempty"`
}

// UpdateProfilePayload renames a connected account.
type UpdateProfilePayload struct {
	Platform    string `json:"platform"`
	DisplayName string `json:"display_name"`
}

// OfflineActionEntry is one queued action. Exactly one payload pointer is set,
// matching Action.
type OfflineActionEntry struct {
	ID             string        `json:"id,omitempty"`
	Action         OfflineAction `json:"action"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	EnqueuedAt     time.Time     `json:"enqueued_at"`

	CreateAccount *CreateAccountPayload `json:"-"`
	CreatePost    *CreatePostPayload    `json:"-"`
	UpdateProfile *UpdateProfilePayload `json:"-"`
}

type offlineEntryWire struct {
	ID             string          `json:"id,omitempty"`
	Action         OfflineAction   `json:"action"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	EnqueuedAt     time.Time       `json:"enqueued_at"`
	Payload        json.RawMessage `json:"payload"`
}

// UnmarshalJSON decodes the payload according to the action tag. Unknown actions
// decode without a payload so the reconciler can report them.
func (e *OfflineActionEntry) UnmarshalJSON(data []byte) error {
	var w offlineEntryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = OfflineActionEntry{ID: w.ID, Action: w.Action, IdempotencyKey: w.IdempotencyKey, EnqueuedAt: w.EnqueuedAt}
	if len(w.Payload) == 0 || string(w.Payload) == "null" {
		return nil
	}
	var target interface{}
	switch w.Action {
	case ActionCreateAccount:
		e.CreateAccount = &CreateAccountPayload{}
		target = e.CreateAccount
	case ActionCreatePost:
		e.CreatePost = &CreatePostPayload{}
		target = e.CreatePost
	case ActionUpdateProfile:
		e.UpdateProfile = &UpdateProfilePayload{}
		target = e.UpdateProfile
	default:
		return nil
	}
	if err := json.Unmarshal(w.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", w.Action, err)
	}
	return nil
}

// MarshalJSON writes the entry back in its wire form so retryLater entries
// can be re-enqueued verbatim by the client.
func (e OfflineActionEntry) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch e.Action {
	case ActionCreateAccount:
		payload = e.CreateAccount
	case ActionCreatePost:
		payload = e.CreatePost
	case ActionUpdateProfile:
		payload = e.UpdateProfile
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(offlineEntryWire{
		ID:             e.ID,
		Action:         e.Action,
		IdempotencyKey: e.IdempotencyKey,
		EnqueuedAt:     e.EnqueuedAt,
		Payload:        raw,
	})
}

// EntryOutcome reports what happened to one entry during a reconciliation pass.
type EntryOutcome struct {
	Entry   OfflineActionEntry `json:"entry"`
	PostID  string             `json:"post_id,omitempty"`
	Account *SocialAccount     `json:"account,omitempty"`
	Error   string             `json:"error,omitempty"`
	Code    string             `json:"code,omitempty"`
}

// ReconciliationReport partitions one pass's entries by outcome, each list in enqueue order.
type ReconciliationReport struct {
	Succeeded         []EntryOutcome `json:"succeeded"`
	RetryLater        []EntryOutcome `json:"retry_later"`
	PermanentlyFailed []EntryOutcome `json:"permanently_failed"`
}
