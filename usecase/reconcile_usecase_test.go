package usecase_test

import (
	"context"
	"encoding/json"
	"testing"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/infrastructure/persistence"
	"crosspost/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newReconcileFixture() (*persistence.MemoryPostRepository, *fakeDispatcher, *MockAccountConnector, usecase.IReconcileUsecase) {
	store := persistence.NewMemoryPostRepository()
	disp := newFakeDispatcher()
	accounts := new(MockAccountConnector)
	publisher := usecase.NewPublishUsecase(store, disp, nil, usecase.WithClock(fixedClock))
	return store, disp, accounts, usecase.NewReconcileUsecase(publisher, accounts)
}

func postEntry(key, content string, platforms ...string) model.OfflineActionEntry {
	return model.OfflineActionEntry{
		ID:             key,
		Action:         model.ActionCreatePost,
		IdempotencyKey: key,
		EnqueuedAt:     fixedNow,
		CreatePost:     &model.CreatePostPayload{Content: content, Platforms: platforms},
	}
}

func ids(outcomes []model.EntryOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Entry.ID)
	}
	return out
}

func TestReconcile_ReplayingSameKeyCreatesOnePost(t *testing.T) {
	store, _, _, uc := newReconcileFixture()
	entry := postEntry("k-1", "offline hello", "x")

	first := uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{entry})
	second := uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{entry, entry})

	require.Len(t, first.Succeeded, 1)
	require.Len(t, second.Succeeded, 2)
	assert.Equal(t, first.Succeeded[0].PostID, second.Succeeded[0].PostID)
	assert.Equal(t, first.Succeeded[0].PostID, second.Succeeded[1].PostID)

	list, err := store.ListByStatus(context.Background(), "user-1", "", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReconcile_PreservesOrderAndPartitions(t *testing.T) {
	_, _, accounts, uc := newReconcileFixture()
	accounts.On("Connect", mock.Anything, "user-1", "facebook", "tok-net", "Page").
		Return(nil, &model.DispatchError{Platform: "facebook", Reason: model.ReasonNetworkError}).Once()
	accounts.On("Connect", mock.Anything, "user-1", "x", "tok-bad", "me").
		Return(nil, &model.DispatchError{Platform: "x", Reason: model.ReasonAuthExpired}).Once()
	accounts.On("UpdateProfile", mock.Anything, "user-1", "x", "New Name").
		Return(&model.SocialAccount{Platform: "x", DisplayName: "New Name"}, nil).Once()

	entries := []model.OfflineActionEntry{
		postEntry("e1", "first", "x"),
		{ID: "e2", Action: model.ActionCreateAccount, CreateAccount: &model.CreateAccountPayload{Platform: "facebook", AuthToken: "tok-net", AccountName: "Page"}},
		postEntry("e3", "", "x"),
		{ID: "e4", Action: model.ActionUpdateProfile, UpdateProfile: &model.UpdateProfilePayload{Platform: "x", DisplayName: "New Name"}},
		{ID: "e5", Action: model.ActionCreateAccount, CreateAccount: &model.CreateAccountPayload{Platform: "x", AuthToken: "tok-bad", AccountName: "me"}},
		postEntry("e6", "second", "facebook"),
	}

	report := uc.Reconcile(context.Background(), "user-1", entries)
	assert.Equal(t, []string{"e1", "e4", "e6"}, ids(report.Succeeded))
	assert.Equal(t, []string{"e2"}, ids(report.RetryLater))
	assert.Equal(t, []string{"e3", "e5"}, ids(report.PermanentlyFailed))

	assert.Equal(t, apperror.CodeValidationFailed, report.PermanentlyFailed[0].Code)
	assert.Contains(t, report.PermanentlyFailed[0].Error, "Content must not be empty")
	assert.Equal(t, string(model.ReasonAuthExpired), report.PermanentlyFailed[1].Code)
	assert.Equal(t, string(model.ReasonNetworkError), report.RetryLater[0].Code)
	assert.Equal(t, "New Name", report.Succeeded[1].Account.DisplayName)
	accounts.AssertExpectations(t)
}

func TestReconcile_MalformedEntriesArePermanent(t *testing.T) {
	_, _, _, uc := newReconcileFixture()
	noKey := postEntry("", "hello", "x")
	noKey.ID = "no-key"

	report := uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{
		{ID: "unknown", Action: "deleteEverything"},
		noKey,
		{ID: "no-payload", Action: model.ActionUpdateProfile},
	})
	require.Len(t, report.PermanentlyFailed, 3)
	assert.Empty(t, report.Succeeded)
	assert.Empty(t, report.RetryLater)
	assert.Equal(t, apperror.CodeUnknownAction, report.PermanentlyFailed[0].Code)
	assert.Equal(t, apperror.CodeMissingKey, report.PermanentlyFailed[1].Code)
	assert.Equal(t, apperror.CodeMissingPayload, report.PermanentlyFailed[2].Code)
}

func TestReconcile_CancelledContextDefersRemainingEntries(t *testing.T) {
	store, _, _, uc := newReconcileFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := []model.OfflineActionEntry{postEntry("a", "one", "x"), postEntry("b", "two", "x")}
	report := uc.Reconcile(ctx, "user-1", entries)
	assert.Empty(t, report.Succeeded)
	assert.Equal(t, []string{"a", "b"}, ids(report.RetryLater))
	assert.Contains(t, report.RetryLater[0].Error, "context canceled")

	list, _ := store.ListByStatus(context.Background(), "", "", 0)
	assert.Empty(t, list)
}

func TestReconcile_DoesNotMutateCallerQueue(t *testing.T) {
	_, _, _, uc := newReconcileFixture()
	entries := []model.OfflineActionEntry{postEntry("a", "one", "x"), {ID: "bad", Action: "nope"}}
	before := append([]model.OfflineActionEntry(nil), entries...)

	uc.Reconcile(context.Background(), "user-1", entries)
	assert.Equal(t, before, entries)
}

func TestReconcile_DispatchFlagPublishesOnce(t *testing.T) {
	store, disp, _, uc := newReconcileFixture()
	entry := postEntry("k-pub", "go live", "x", "facebook")
	entry.CreatePost.Dispatch = true

	report := uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{entry})
	require.Len(t, report.Succeeded, 1)
	post, err := store.Get(context.Background(), report.Succeeded[0].PostID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusPublished, post.Status)

	report = uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{entry})
	require.Len(t, report.Succeeded, 1)
	assert.Len(t, disp.callsSnapshot(), 2)
}

func TestReconcile_TransientDispatchFailureIsRetriedLater(t *testing.T) {
	store, disp, _, uc := newReconcileFixture()
	disp.fail("x", model.ReasonNetworkError).fail("facebook", model.ReasonRateLimited)
	entry := postEntry("k-flaky", "go live", "x", "facebook")
	entry.CreatePost.Dispatch = true

	report := uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{entry})
	assert.Empty(t, report.Succeeded)
	require.Len(t, report.RetryLater, 1)
	assert.Equal(t, string(model.ReasonNetworkError), report.RetryLater[0].Code)
	postID := report.RetryLater[0].PostID
	require.NotEmpty(t, postID)

	post, err := store.Get(context.Background(), postID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusFailed, post.Status)

	report = uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{entry})
	require.Len(t, report.Succeeded, 1)
	assert.Equal(t, postID, report.Succeeded[0].PostID)
	assert.Len(t, disp.callsSnapshot(), 4)

	post, err = store.Get(context.Background(), postID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusPublished, post.Status)
	assert.Equal(t, 2, post.Results["x"].Attempts)
}

func TestReconcile_PermanentDispatchFailureIsNotResent(t *testing.T) {
	store, disp, _, uc := newReconcileFixture()
	disp.fail("x", model.ReasonNetworkError).fail("facebook", model.ReasonAuthExpired)
	entry := postEntry("k-mixed", "go live", "x", "facebook")
	entry.CreatePost.Dispatch = true

	report := uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{entry})
	require.Len(t, report.Succeeded, 1)
	post, err := store.Get(context.Background(), report.Succeeded[0].PostID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusFailed, post.Status)

	report = uc.Reconcile(context.Background(), "user-1", []model.OfflineActionEntry{entry})
	require.Len(t, report.Succeeded, 1)
	assert.Len(t, disp.callsSnapshot(), 2)
}

func TestOfflineActionEntry_DecodesPayloadByAction(t *testing.T) {
	raw := `[
		{"id":"1","action":"createPost","idempotency_key":"k","enqueued_at":"2026-03-10T12:00:00Z","payload":{"content":"hi","platforms":["x"],"dispatch":true}},
		{"id":"2","action":"updateProfile","payload":{"platform":"x","display_name":"Me"}},
		{"id":"3","action":"somethingElse","payload":{"foo":1}}
	]`
	var entries []model.OfflineActionEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entries))
	require.Len(t, entries, 3)

	require.NotNil(t, entries[0].CreatePost)
	assert.True(t, entries[0].CreatePost.Dispatch)
	assert.Equal(t, []string{"x"}, entries[0].CreatePost.Platforms)
	require.NotNil(t, entries[1].UpdateProfile)
	assert.Equal(t, "Me", entries[1].UpdateProfile.DisplayName)
	assert.Nil(t, entries[2].CreatePost)
	assert.Nil(t, entries[2].CreateAccount)

	out, err := json.Marshal(entries[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"2","action":"updateProfile","enqueued_at":"0001-01-01T00:00:00Z","payload":{"platform":"x","display_name":"Me"}}`, string(out))
}
