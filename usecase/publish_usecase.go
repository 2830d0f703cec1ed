package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// IPublishUsecase owns the post lifecycle: create, edit, fan-out dispatch,
// redispatch of failed targets and delete.
type IPublishUsecase interface {
	Validate(content string, platforms, mediaURLs []string) dto.ValidationResult
	CreatePost(ctx context.Context, userID string, req dto.CreatePostRequest) (*model.SocialPost, error)
	GetPost(ctx context.Context, userID, postID string) (*model.SocialPost, error)
	ListPosts(ctx context.Context, userID string, status model.PostStatus, limit int) ([]*model.SocialPost, error)
	UpdatePost(ctx context.Context, userID, postID string, req dto.UpdatePostRequest) (*model.SocialPost, error)
	DeletePost(ctx context.Context, userID, postID string) (*model.SocialPost, []model.RemovalOutcome, error)
	Dispatch(ctx context.Context, postID string) (*model.SocialPost, error)
	Redispatch(ctx context.Context, postID string) (*model.SocialPost, error)
	Outcomes(ctx context.Context, postID string) ([]model.DispatchOutcome, error)
	ProcessDueScheduled(ctx context.Context, batchSize int) (int, error)
}

// DispatchObserver receives one call per platform send attempt.
type DispatchObserver interface {
	ObserveDispatch(platform string, succeeded bool, reason model.DispatchReason, latency time.Duration)
}

type PublishOption func(*publishUsecase)

// WithAudit appends every send outcome to an audit trail.
func WithAudit(audit repository.IDispatchAudit) PublishOption {
	return func(u *publishUsecase) { u.audit = audit }
}

// WithBroadcaster registers a hook invoked after each status change. Hooks run
// synchronously and must not block.
func WithBroadcaster(fn func(model.PostEvent)) PublishOption {
	return func(u *publishUsecase) {
		if fn != nil {
			u.broadcasters = append(u.broadcasters, fn)
		}
	}
}

func WithObserver(o DispatchObserver) PublishOption {
	return func(u *publishUsecase) { u.observer = o }
}

func WithClock(now func() time.Time) PublishOption {
	return func(u *publishUsecase) {
		if now != nil {
			u.now = now
		}
	}
}

// WithSendTimeout bounds each individual platform call.
func WithSendTimeout(d time.Duration) PublishOption {
	return func(u *publishUsecase) { u.sendTimeout = d }
}

type publishUsecase struct {
	posts        repository.IPost
	dispatcher   repository.IPlatformDispatcher
	validator    *Validator
	audit        repository.IDispatchAudit
	observer     DispatchObserver
	broadcasters []func(model.PostEvent)
	now          func() time.Time
	sendTimeout  time.Duration
	inflight     *inflightSet
}

func NewPublishUsecase(posts repository.IPost, dispatcher repository.IPlatformDispatcher, validator *Validator, opts ...PublishOption) IPublishUsecase {
	if validator == nil {
		validator = NewValidator(nil)
	}
	u := &publishUsecase{
		posts:      posts,
		dispatcher: dispatcher,
		validator:  validator,
		now:        func() time.Time { return time.Now().UTC() },
		inflight:   newInflightSet(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *publishUsecase) Validate(content string, platforms, mediaURLs []string) dto.ValidationResult {
	normalized, errs := checkShape(content, platforms)
	if len(errs) > 0 {
		return dto.ValidationResult{IsValid: false, Errors: errs}
	}
	res := u.validator.Validate(content, normalized)
	res.Errors = append(res.Errors, u.validator.ValidateMedia(mediaURLs, normalized)...)
	res.IsValid = len(res.Errors) == 0
	return res
}

func (u *publishUsecase) CreatePost(ctx context.Context, userID string, req dto.CreatePostRequest) (*model.SocialPost, error) {
	lg := logger.GetLogger().WithField("user_id", userID)
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.Validation([]string{"User is required"})
	}
	if req.IdempotencyKey != "" {
		existing, err := u.posts.FindByIdempotencyKey(ctx, userID, req.IdempotencyKey)
		switch {
		case err == nil:
			lg.WithField("post_id", existing.ID).Debug("create replayed; returning existing post")
			return existing, nil
		case !errors.Is(err, repository.ErrPostNotFound):
			return nil, apperror.Persistence("find post by idempotency key", err)
		}
	}

	res := u.Validate(req.Content, req.Platforms, req.MediaURLs)
	if !res.IsValid {
		return nil, apperror.Validation(res.Errors)
	}
	platforms, _ := checkShape(req.Content, req.Platforms)

	now := u.now()
	post := &model.SocialPost{
		ID:             uuid.NewString(),
		UserID:         userID,
		Content:        req.Content,
		Platforms:      platforms,
		MediaURLs:      req.MediaURLs,
		ScheduledAt:    req.ScheduledAt,
		Status:         model.PostStatusDraft,
		Results:        model.PendingResults(platforms, now),
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if post.ScheduledAt != nil {
		post.Status = model.PostStatusScheduled
	}
	stored, created, err := u.posts.Create(ctx, post)
	if err != nil {
		return nil, apperror.Persistence("create post", err)
	}
	if created {
		lg.WithField("post_id", stored.ID).WithField("status", stored.Status).Info("post created")
		u.broadcast(stored)
	}
	return stored, nil
}

func (u *publishUsecase) GetPost(ctx context.Context, userID, postID string) (*model.SocialPost, error) {
	post, err := u.posts.Get(ctx, postID)
	if err != nil {
		return nil, storeErr("load post", postID, err)
	}
	if userID != "" && post.UserID != userID {
		return nil, apperror.NotFound("post %s not found", postID)
	}
	return post, nil
}

func (u *publishUsecase) ListPosts(ctx context.Context, userID string, status model.PostStatus, limit int) ([]*model.SocialPost, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := u.posts.ListByStatus(ctx, userID, status, limit)
	if err != nil {
		return nil, apperror.Persistence("list posts", err)
	}
	return list, nil
}

func (u *publishUsecase) UpdatePost(ctx context.Context, userID, postID string, req dto.UpdatePostRequest) (*model.SocialPost, error) {
	post, err := u.GetPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !post.Status.IsEditable() {
		return nil, apperror.Conflict(apperror.CodeInvalidState, "post %s is %s and can no longer be edited", postID, post.Status)
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.Platforms != nil {
		post.Platforms = req.Platforms
	}
	if req.MediaURLs != nil {
		post.MediaURLs = req.MediaURLs
	}
	if req.ClearSchedule {
		post.ScheduledAt = nil
	} else if req.ScheduledAt != nil {
		post.ScheduledAt = req.ScheduledAt
	}

	res := u.Validate(post.Content, post.Platforms, post.MediaURLs)
	if !res.IsValid {
		return nil, apperror.Validation(res.Errors)
	}
	post.Platforms, _ = checkShape(post.Content, post.Platforms)
	post.Status = model.PostStatusDraft
	if post.ScheduledAt != nil {
		post.Status = model.PostStatusScheduled
	}
	post.UpdatedAt = u.now()
	post.Results = model.PendingResults(post.Platforms, post.UpdatedAt)

	updated, err := u.posts.UpdateContent(ctx, post)
	if err != nil {
		return nil, storeErr("update post", postID, err)
	}
	u.broadcast(updated)
	return updated, nil
}

func (u *publishUsecase) DeletePost(ctx context.Context, userID, postID string) (*model.SocialPost, []model.RemovalOutcome, error) {
	if !u.inflight.acquire(postID) {
		return nil, nil, apperror.Conflict(apperror.CodeDispatchInFlight, "post %s is being dispatched", postID)
	}
	defer u.inflight.release(postID)

	post, err := u.GetPost(ctx, userID, postID)
	if err != nil {
		return nil, nil, err
	}
	lg := logger.GetLogger().WithField("post_id", postID)

	removals := make([]model.RemovalOutcome, 0)
	from := []model.PostStatus{model.PostStatusDraft, model.PostStatusScheduled}
	switch {
	case post.Status.IsEditable():
	case post.Status.IsTerminal() || post.Status == model.PostStatusPublishing:
		// A publishing post that reaches here has no batch running in this
		// process; its remaining pending targets are abandoned.
		from = []model.PostStatus{model.PostStatusPublishing, model.PostStatusPublished, model.PostStatusPartiallyFailed, model.PostStatusFailed}
		for _, platform := range post.PlatformsIn(model.ResultSucceeded) {
			r := post.Results[platform]
			out := model.RemovalOutcome{Platform: platform, RemoteID: r.RemoteID}
			if err := u.dispatcher.Remove(ctx, post.UserID, platform, r.RemoteID); err != nil {
				out.Error = err.Error()
				lg.WithField("platform", platform).WithField("error", err.Error()).Warn("remote removal failed")
			} else {
				out.Removed = true
			}
			removals = append(removals, out)
		}
	default:
		return nil, nil, apperror.Conflict(apperror.CodeInvalidState, "post %s is already %s", postID, post.Status)
	}

	deleted, err := u.posts.TransitionStatus(context.WithoutCancel(ctx), postID, from, model.PostStatusDeleted, nil)
	if err != nil {
		return nil, removals, storeErr("delete post", postID, err)
	}
	lg.WithField("removals", len(removals)).Info("post deleted")
	u.broadcast(deleted)
	return deleted, removals, nil
}

// Dispatch moves a draft or scheduled post to publishing and sends it to every
// platform concurrently. Per-platform failures are recorded on the post, not
// returned. When ctx ends first, the post is returned as far as it got along
// with ctx's error; unsent platforms stay pending.
func (u *publishUsecase) Dispatch(ctx context.Context, postID string) (*model.SocialPost, error) {
	if !u.inflight.acquire(postID) {
		return nil, apperror.Conflict(apperror.CodeDispatchInFlight, "post %s is already being dispatched", postID)
	}
	defer u.inflight.release(postID)

	post, err := u.posts.Get(ctx, postID)
	if err != nil {
		return nil, storeErr("load post", postID, err)
	}
	if !post.Status.IsEditable() {
		return nil, apperror.Conflict(apperror.CodeInvalidState, "post %s is %s; dispatch requires draft or scheduled", postID, post.Status)
	}
	started, err := u.posts.TransitionStatus(ctx, postID,
		[]model.PostStatus{model.PostStatusDraft, model.PostStatusScheduled},
		model.PostStatusPublishing,
		model.PendingResults(post.Platforms, u.now()))
	if err != nil {
		return nil, storeErr("start dispatch", postID, err)
	}
	u.broadcast(started)
	return u.fanOut(ctx, started, started.Platforms)
}

// Redispatch resends only the platforms whose last result is failed, or that
// were left pending by an interrupted batch. Succeeded platforms are untouched.
func (u *publishUsecase) Redispatch(ctx context.Context, postID string) (*model.SocialPost, error) {
	if !u.inflight.acquire(postID) {
		return nil, apperror.Conflict(apperror.CodeDispatchInFlight, "post %s is already being dispatched", postID)
	}
	defer u.inflight.release(postID)

	post, err := u.posts.Get(ctx, postID)
	if err != nil {
		return nil, storeErr("load post", postID, err)
	}
	switch post.Status {
	case model.PostStatusPublished:
		return post, nil
	case model.PostStatusPartiallyFailed, model.PostStatusFailed, model.PostStatusPublishing:
	default:
		return nil, apperror.Conflict(apperror.CodeInvalidState, "post %s is %s; nothing to redispatch", postID, post.Status)
	}

	targets := post.PlatformsIn(model.ResultFailed, model.ResultPending)
	now := u.now()
	patch := make(map[string]model.PlatformResult, len(targets))
	for _, p := range targets {
		patch[p] = model.PlatformResult{State: model.ResultPending, Attempts: post.Results[p].Attempts, UpdatedAt: now}
	}
	started, err := u.posts.TransitionStatus(ctx, postID,
		[]model.PostStatus{model.PostStatusPartiallyFailed, model.PostStatusFailed, model.PostStatusPublishing},
		model.PostStatusPublishing, patch)
	if err != nil {
		return nil, storeErr("start redispatch", postID, err)
	}
	logger.GetLogger().WithField("post_id", postID).WithField("targets", targets).Info("redispatching failed platforms")
	u.broadcast(started)
	return u.fanOut(ctx, started, targets)
}

func (u *publishUsecase) Outcomes(ctx context.Context, postID string) ([]model.DispatchOutcome, error) {
	if u.audit == nil {
		return []model.DispatchOutcome{}, nil
	}
	list, err := u.audit.ListByPost(ctx, postID)
	if err != nil {
		return nil, apperror.Persistence("list dispatch outcomes", err)
	}
	return list, nil
}

// ProcessDueScheduled dispatches scheduled posts whose time has come and
// returns how many batches were started.
func (u *publishUsecase) ProcessDueScheduled(ctx context.Context, batchSize int) (int, error) {
	lg := logger.GetLogger()
	due, err := u.posts.ListDueScheduled(ctx, u.now(), batchSize)
	if err != nil {
		return 0, apperror.Persistence("list due scheduled posts", err)
	}
	n := 0
	for _, p := range due {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		post, err := u.Dispatch(ctx, p.ID)
		if err != nil && post == nil {
			lg.WithField("post_id", p.ID).WithField("error", err.Error()).Warn("scheduled dispatch skipped")
			continue
		}
		n++
		if err != nil {
			lg.WithField("post_id", p.ID).WithField("error", err.Error()).Warn("scheduled dispatch interrupted")
		}
	}
	return n, nil
}

func (u *publishUsecase) fanOut(ctx context.Context, post *model.SocialPost, targets []string) (*model.SocialPost, error) {
	lg := logger.GetLogger().WithField("post_id", post.ID)
	// Results that do land must be written even when the caller has gone away.
	writeCtx := context.WithoutCancel(ctx)

	snapshot := post.Clone()
	attempts := make(map[string]int, len(targets))
	for _, p := range targets {
		attempts[p] = snapshot.Results[p].Attempts
	}

	var (
		mu         sync.Mutex
		persistErr error
		g          errgroup.Group
	)
	for _, platform := range targets {
		g.Go(func() error {
			outcome := u.send(ctx, post, platform)
			if !outcome.Succeeded && ctx.Err() != nil {
				lg.WithField("platform", platform).Warn("send interrupted; platform left pending")
				return nil
			}
			u.record(writeCtx, outcome)
			result := outcome.Result(attempts[platform] + 1)
			if err := u.posts.RecordResult(writeCtx, post.ID, platform, result); err != nil {
				mu.Lock()
				if persistErr == nil {
					persistErr = err
				}
				mu.Unlock()
				return nil
			}
			mu.Lock()
			snapshot.Results[platform] = result
			mu.Unlock()
			return nil
		})
	}
	// Goroutines never return errors so one platform can't cancel its siblings.
	_ = g.Wait()

	if persistErr != nil {
		return snapshot, apperror.Persistence("record dispatch result", persistErr)
	}
	status, complete := model.DeriveStatus(snapshot.Platforms, snapshot.Results)
	if !complete {
		u.broadcast(snapshot)
		return snapshot, ctx.Err()
	}
	var publishedAt *time.Time
	if status == model.PostStatusPublished {
		t := u.now()
		publishedAt = &t
	}
	final, err := u.posts.FinalizeStatus(writeCtx, post.ID, status, publishedAt)
	if err != nil {
		return snapshot, storeErr("finalize post status", post.ID, err)
	}
	lg.WithField("status", final.Status).Info("dispatch batch complete")
	u.broadcast(final)
	return final, nil
}

func (u *publishUsecase) send(ctx context.Context, post *model.SocialPost, platform string) (outcome model.DispatchOutcome) {
	started := time.Now()
	outcome = model.DispatchOutcome{
		ID:          uuid.NewString(),
		PostID:      post.ID,
		Platform:    platform,
		AttemptedAt: u.now(),
	}
	defer func() {
		if r := recover(); r != nil {
			outcome.Succeeded = false
			outcome.Reason = model.ReasonRejected
			outcome.Message = fmt.Sprintf("sender panic: %v", r)
		}
		outcome.Latency = time.Since(started)
	}()

	sendCtx := ctx
	if u.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, u.sendTimeout)
		defer cancel()
	}
	remoteID, derr := u.dispatcher.Send(sendCtx, model.DispatchRequest{
		PostID:    post.ID,
		UserID:    post.UserID,
		Platform:  platform,
		Content:   post.Content,
		MediaURLs: post.MediaURLs,
	})
	if derr != nil {
		outcome.Reason = derr.Reason
		outcome.Message = derr.Message
		return outcome
	}
	outcome.Succeeded = true
	outcome.RemoteID = remoteID
	return outcome
}

func (u *publishUsecase) record(ctx context.Context, outcome model.DispatchOutcome) {
	if u.observer != nil {
		u.observer.ObserveDispatch(outcome.Platform, outcome.Succeeded, outcome.Reason, outcome.Latency)
	}
	if u.audit == nil {
		return
	}
	if err := u.audit.Append(ctx, outcome); err != nil {
		logger.GetLogger().WithField("post_id", outcome.PostID).WithField("error", err.Error()).Warn("dispatch audit append failed")
	}
}

func (u *publishUsecase) broadcast(p *model.SocialPost) {
	if len(u.broadcasters) == 0 || p == nil {
		return
	}
	ev := model.NewPostEvent(p, u.now())
	for _, fn := range u.broadcasters {
		fn(ev)
	}
}

// checkShape normalizes platform keys and reports structural problems the
// content validator does not cover.
func checkShape(content string, platforms []string) ([]string, []string) {
	errs := make([]string, 0)
	if strings.TrimSpace(content) == "" {
		errs = append(errs, "Content must not be empty")
	}
	if len(platforms) == 0 {
		errs = append(errs, "At least one platform is required")
	}
	seen := make(map[string]bool, len(platforms))
	out := make([]string, 0, len(platforms))
	for _, raw := range platforms {
		p := NormalizePlatform(raw)
		switch {
		case p == "":
			errs = append(errs, "Platform identifier must not be empty")
		case seen[p]:
			errs = append(errs, fmt.Sprintf("Duplicate platform: %s", p))
		default:
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, errs
}

func storeErr(op, id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrPostNotFound):
		return apperror.NotFound("post %s not found", id)
	case errors.Is(err, repository.ErrStatusConflict):
		return apperror.Conflict(apperror.CodeInvalidState, "post %s changed state concurrently", id)
	default:
		return apperror.Persistence(op, err)
	}
}
