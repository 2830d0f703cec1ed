package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/persistence"
	"crosspost/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publishFixture struct {
	store      *persistence.MemoryPostRepository
	dispatcher *fakeDispatcher
	uc         usecase.IPublishUsecase
	events     *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []model.PostEvent
}

func (l *eventLog) add(ev model.PostEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) statuses() []model.PostStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.PostStatus, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Status)
	}
	return out
}

func newPublishFixture(opts ...usecase.PublishOption) *publishFixture {
	f := &publishFixture{
		store:      persistence.NewMemoryPostRepository(),
		dispatcher: newFakeDispatcher(),
		events:     &eventLog{},
	}
	opts = append([]usecase.PublishOption{usecase.WithClock(fixedClock), usecase.WithBroadcaster(f.events.add)}, opts...)
	f.uc = usecase.NewPublishUsecase(f.store, f.dispatcher, usecase.NewValidator(nil), opts...)
	return f
}

func (f *publishFixture) create(t *testing.T, content string, platforms ...string) *model.SocialPost {
	t.Helper()
	post, err := f.uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{Content: content, Platforms: platforms})
	require.NoError(t, err)
	return post
}

func TestCreatePost_ValidationErrorListsEveryMessage(t *testing.T) {
	f := newPublishFixture()
	content := strings.Repeat("x", 281) + strings.Repeat(" #t", 11)

	_, err := f.uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{Content: content, Platforms: []string{"x", "threads"}})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{
		"Content exceeds X character limit of 280",
		"Too many hashtags for X. Maximum: 10",
		"Too many hashtags for Threads. Maximum: 10",
	}, appErr.Details)

	list, _ := f.store.ListByStatus(context.Background(), "", "", 0)
	assert.Empty(t, list)
}

func TestCreatePost_RejectsMalformedInput(t *testing.T) {
	f := newPublishFixture()
	_, err := f.uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{Content: "  ", Platforms: []string{"x", "X", ""}})

	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{
		"Content must not be empty",
		"Duplicate platform: x",
		"Platform identifier must not be empty",
	}, appErr.Details)

	_, err = f.uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{Content: "hi"})
	assert.True(t, apperror.IsValidation(err))
}

func TestCreatePost_DraftOrScheduled(t *testing.T) {
	f := newPublishFixture()
	draft := f.create(t, "hello", "X", "facebook")
	assert.Equal(t, model.PostStatusDraft, draft.Status)
	assert.Equal(t, []string{"x", "facebook"}, draft.Platforms)
	assert.Len(t, draft.Results, 2)
	assert.Equal(t, model.ResultPending, draft.Results["x"].State)

	at := fixedNow.Add(time.Hour)
	scheduled, err := f.uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{Content: "later", Platforms: []string{"x"}, ScheduledAt: &at})
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusScheduled, scheduled.Status)
}

func TestCreatePost_IdempotencyKeyDeduplicates(t *testing.T) {
	f := newPublishFixture()
	req := dto.CreatePostRequest{Content: "once", Platforms: []string{"x"}, IdempotencyKey: "k-1"}

	first, err := f.uc.CreatePost(context.Background(), "user-1", req)
	require.NoError(t, err)
	second, err := f.uc.CreatePost(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := f.uc.CreatePost(context.Background(), "user-2", req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestDispatch_PartialFailureKeepsSuccessfulResult(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "a", "b")
	f.dispatcher.succeed("a", "ra").fail("b", model.ReasonRejected)

	got, err := f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusPartiallyFailed, got.Status)
	assert.Equal(t, model.ResultSucceeded, got.Results["a"].State)
	assert.Equal(t, "ra", got.Results["a"].RemoteID)
	assert.Equal(t, model.ResultFailed, got.Results["b"].State)
	assert.Equal(t, model.ReasonRejected, got.Results["b"].Reason)
	assert.Nil(t, got.PublishedAt)

	stored, _ := f.store.Get(context.Background(), post.ID)
	assert.Equal(t, "ra", stored.Results["a"].RemoteID)
	assert.Equal(t, 1, stored.Results["b"].Attempts)
	assert.Equal(t, []model.PostStatus{model.PostStatusDraft, model.PostStatusPublishing, model.PostStatusPartiallyFailed}, f.events.statuses())
}

func TestDispatch_AllSucceededStampsPublishedAt(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x", "facebook", "linkedin")

	got, err := f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, fixedNow, *got.PublishedAt)
	assert.ElementsMatch(t, []string{"x", "facebook", "linkedin"}, f.dispatcher.callsSnapshot())
}

func TestDispatch_AllFailed(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x", "facebook")
	f.dispatcher.fail("x", model.ReasonAuthExpired).fail("facebook", model.ReasonRateLimited)

	got, err := f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusFailed, got.Status)
}

func TestDispatch_RequiresDraftOrScheduled(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x")
	_, err := f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)

	_, err = f.uc.Dispatch(context.Background(), post.ID)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, apperror.CodeInvalidState, apperror.CodeOf(err))

	_, err = f.uc.Dispatch(context.Background(), "missing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDispatch_SecondCallWhileInFlightFailsFast(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x", "facebook")
	f.dispatcher.hold = make(chan struct{})
	f.dispatcher.holdFor["facebook"] = true

	done := make(chan *model.SocialPost)
	go func() {
		p, _ := f.uc.Dispatch(context.Background(), post.ID)
		done <- p
	}()
	<-f.dispatcher.entered

	_, err := f.uc.Dispatch(context.Background(), post.ID)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, apperror.CodeDispatchInFlight, apperror.CodeOf(err))

	_, err = f.uc.Redispatch(context.Background(), post.ID)
	assert.Equal(t, apperror.CodeDispatchInFlight, apperror.CodeOf(err))

	_, _, err = f.uc.DeletePost(context.Background(), "user-1", post.ID)
	assert.Equal(t, apperror.CodeDispatchInFlight, apperror.CodeOf(err))

	close(f.dispatcher.hold)
	final := <-done
	require.NotNil(t, final)
	assert.Equal(t, model.PostStatusPublished, final.Status)
}

func TestDispatch_CancellationLeavesPendingForRedispatch(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x", "facebook")
	f.dispatcher.succeed("x", "r1")
	f.dispatcher.hold = make(chan struct{})
	f.dispatcher.holdFor["facebook"] = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var got *model.SocialPost
	var err error
	go func() {
		got, err = f.uc.Dispatch(ctx, post.ID)
		close(done)
	}()
	<-f.dispatcher.entered
	cancel()
	<-done

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, got)
	assert.Equal(t, model.PostStatusPublishing, got.Status)
	assert.Equal(t, model.ResultSucceeded, got.Results["x"].State)
	assert.Equal(t, model.ResultPending, got.Results["facebook"].State)

	stored, _ := f.store.Get(context.Background(), post.ID)
	assert.Equal(t, model.PostStatusPublishing, stored.Status)
	assert.Equal(t, "r1", stored.Results["x"].RemoteID)

	f.dispatcher.hold = nil
	again, err := f.uc.Redispatch(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusPublished, again.Status)
	assert.Equal(t, "r1", again.Results["x"].RemoteID)
}

func TestRedispatch_OnlyRetargetsFailedPlatforms(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "a", "b", "c")
	f.dispatcher.succeed("a", "ra").fail("b", model.ReasonNetworkError).fail("c", model.ReasonRateLimited)
	_, err := f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)

	f.dispatcher.fail("c", model.ReasonRateLimited)
	got, err := f.uc.Redispatch(context.Background(), post.ID)
	require.NoError(t, err)

	calls := f.dispatcher.callsSnapshot()
	assert.ElementsMatch(t, []string{"a", "b", "c", "b", "c"}, calls)
	assert.Equal(t, "ra", got.Results["a"].RemoteID)
	assert.Equal(t, 1, got.Results["a"].Attempts)
	assert.Equal(t, model.ResultSucceeded, got.Results["b"].State)
	assert.Equal(t, 2, got.Results["b"].Attempts)
	assert.Equal(t, model.ResultFailed, got.Results["c"].State)
	assert.Equal(t, model.PostStatusPartiallyFailed, got.Status)
}

func TestRedispatch_StateRules(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x")

	_, err := f.uc.Redispatch(context.Background(), post.ID)
	assert.Equal(t, apperror.CodeInvalidState, apperror.CodeOf(err))

	_, err = f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)
	before := len(f.dispatcher.callsSnapshot())
	got, err := f.uc.Redispatch(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusPublished, got.Status)
	assert.Len(t, f.dispatcher.callsSnapshot(), before)
}

func TestEndToEnd_PartialFailureThenRedispatch(t *testing.T) {
	f := newPublishFixture()
	post, err := f.uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{
		Content:   "Hello #a #b world",
		Platforms: []string{"x", "facebook"},
	})
	require.NoError(t, err)

	f.dispatcher.succeed("x", "r1").fail("facebook", model.ReasonNetworkError)
	got, err := f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusPartiallyFailed, got.Status)
	assert.Equal(t, "r1", got.Results["x"].RemoteID)
	assert.Equal(t, model.ReasonNetworkError, got.Results["facebook"].Reason)

	got, err = f.uc.Redispatch(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "facebook", "facebook"}, orderedCalls(f.dispatcher.callsSnapshot()))
	assert.Equal(t, model.PostStatusPublished, got.Status)
	assert.Equal(t, "r1", got.Results["x"].RemoteID)
	assert.Equal(t, "remote-facebook", got.Results["facebook"].RemoteID)
	assert.NotNil(t, got.PublishedAt)
}

// orderedCalls puts the concurrent first batch in platform order so the
// sequence is comparable.
func orderedCalls(calls []string) []string {
	if len(calls) >= 2 && calls[0] == "facebook" && calls[1] == "x" {
		calls[0], calls[1] = calls[1], calls[0]
	}
	return calls
}

func TestUpdatePost(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x")

	content := "edited #go"
	at := fixedNow.Add(2 * time.Hour)
	got, err := f.uc.UpdatePost(context.Background(), "user-1", post.ID, dto.UpdatePostRequest{Content: &content, Platforms: []string{"x", "linkedin"}, ScheduledAt: &at})
	require.NoError(t, err)
	assert.Equal(t, "edited #go", got.Content)
	assert.Equal(t, model.PostStatusScheduled, got.Status)
	assert.Len(t, got.Results, 2)

	tooLong := strings.Repeat("y", 300)
	_, err = f.uc.UpdatePost(context.Background(), "user-1", post.ID, dto.UpdatePostRequest{Content: &tooLong})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.uc.UpdatePost(context.Background(), "user-2", post.ID, dto.UpdatePostRequest{Content: &content})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)
	_, err = f.uc.UpdatePost(context.Background(), "user-1", post.ID, dto.UpdatePostRequest{Content: &content})
	assert.Equal(t, apperror.CodeInvalidState, apperror.CodeOf(err))
}

func TestDeletePost_Draft(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x")

	got, removals, err := f.uc.DeletePost(context.Background(), "user-1", post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusDeleted, got.Status)
	assert.Empty(t, removals)
	assert.Empty(t, f.dispatcher.removed)

	_, _, err = f.uc.DeletePost(context.Background(), "user-1", post.ID)
	assert.Equal(t, apperror.CodeInvalidState, apperror.CodeOf(err))
}

func TestDeletePost_TerminalRemovesSucceededPlatformsBestEffort(t *testing.T) {
	f := newPublishFixture()
	post := f.create(t, "hello", "x", "facebook", "linkedin")
	f.dispatcher.succeed("x", "rx").succeed("facebook", "rf").fail("linkedin", model.ReasonRejected)
	_, err := f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)
	f.dispatcher.removeErr["facebook"] = errors.New("graph api: 500")

	got, removals, err := f.uc.DeletePost(context.Background(), "user-1", post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusDeleted, got.Status)
	require.Len(t, removals, 2)
	assert.Equal(t, model.RemovalOutcome{Platform: "x", RemoteID: "rx", Removed: true}, removals[0])
	assert.Equal(t, "facebook", removals[1].Platform)
	assert.False(t, removals[1].Removed)
	assert.Contains(t, removals[1].Error, "500")
	assert.Equal(t, []string{"x:rx"}, f.dispatcher.removed)
}

func TestProcessDueScheduled(t *testing.T) {
	f := newPublishFixture()
	past := fixedNow.Add(-time.Minute)
	future := fixedNow.Add(time.Hour)
	due, err := f.uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{Content: "due", Platforms: []string{"x"}, ScheduledAt: &past})
	require.NoError(t, err)
	notYet, err := f.uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{Content: "later", Platforms: []string{"x"}, ScheduledAt: &future})
	require.NoError(t, err)

	n, err := f.uc.ProcessDueScheduled(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := f.store.Get(context.Background(), due.ID)
	assert.Equal(t, model.PostStatusPublished, got.Status)
	got, _ = f.store.Get(context.Background(), notYet.ID)
	assert.Equal(t, model.PostStatusScheduled, got.Status)
}

type countingObserver struct {
	mu    sync.Mutex
	calls map[string]bool
}

func (o *countingObserver) ObserveDispatch(platform string, succeeded bool, reason model.DispatchReason, latency time.Duration) {
	o.mu.Lock()
	o.calls[platform] = succeeded
	o.mu.Unlock()
}

func TestDispatch_ReportsToObserver(t *testing.T) {
	obs := &countingObserver{calls: map[string]bool{}}
	f := newPublishFixture(usecase.WithObserver(obs), usecase.WithSendTimeout(time.Second))
	post := f.create(t, "hello", "x", "facebook")
	f.dispatcher.fail("facebook", model.ReasonRejected)

	_, err := f.uc.Dispatch(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"x": true, "facebook": false}, obs.calls)
}

func TestDispatch_PersistenceFailureIsSurfaced(t *testing.T) {
	repo := new(MockPostRepository)
	post := &model.SocialPost{ID: "p1", UserID: "user-1", Content: "hi", Platforms: []string{"x"}, Status: model.PostStatusDraft,
		Results: model.PendingResults([]string{"x"}, fixedNow)}
	publishing := post.Clone()
	publishing.Status = model.PostStatusPublishing

	repo.On("Get", mock.Anything, "p1").Return(post, nil).Once()
	repo.On("TransitionStatus", mock.Anything, "p1", mock.Anything, model.PostStatusPublishing, mock.Anything).Return(publishing, nil).Once()
	repo.On("RecordResult", mock.Anything, "p1", "x", mock.Anything).Return(errBackend).Once()

	uc := usecase.NewPublishUsecase(repo, newFakeDispatcher(), nil, usecase.WithClock(fixedClock))
	_, err := uc.Dispatch(context.Background(), "p1")
	assert.True(t, apperror.IsPersistence(err))
	assert.ErrorIs(t, err, errBackend)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "FinalizeStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePost_PersistenceFailure(t *testing.T) {
	repo := new(MockPostRepository)
	repo.On("FindByIdempotencyKey", mock.Anything, "user-1", "k").Return(nil, repository.ErrPostNotFound).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil, false, errBackend).Once()

	uc := usecase.NewPublishUsecase(repo, newFakeDispatcher(), nil)
	_, err := uc.CreatePost(context.Background(), "user-1", dto.CreatePostRequest{Content: "hi", Platforms: []string{"x"}, IdempotencyKey: "k"})
	assert.True(t, apperror.IsPersistence(err))
	repo.AssertExpectations(t)
}
