package usecase

import (
	"context"
	"errors"
	"fmt"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

// IReconcileUsecase replays a client's offline action queue.
type IReconcileUsecase interface {
	Reconcile(ctx context.Context, userID string, entries []model.OfflineActionEntry) model.ReconciliationReport
}

type reconcileUsecase struct {
	publisher IPublishUsecase
	accounts  repository.IAccountConnector
}

func NewReconcileUsecase(publisher IPublishUsecase, accounts repository.IAccountConnector) IReconcileUsecase {
	return &reconcileUsecase{publisher: publisher, accounts: accounts}
}

type bucket int

const (
	bucketSucceeded bucket = iota
	bucketRetry
	bucketPermanent
)

// Reconcile processes the entries present at call time exactly once, strictly
// in order. Nothing is retried within a pass: transient failures come back in
// RetryLater for the caller to re-enqueue.
func (r *reconcileUsecase) Reconcile(ctx context.Context, userID string, entries []model.OfflineActionEntry) model.ReconciliationReport {
	lg := logger.GetLogger().WithField("user_id", userID)
	queue := append([]model.OfflineActionEntry(nil), entries...)
	report := model.ReconciliationReport{
		Succeeded:         make([]model.EntryOutcome, 0),
		RetryLater:        make([]model.EntryOutcome, 0),
		PermanentlyFailed: make([]model.EntryOutcome, 0),
	}

	for i, entry := range queue {
		if err := ctx.Err(); err != nil {
			for _, rest := range queue[i:] {
				report.RetryLater = append(report.RetryLater, model.EntryOutcome{Entry: rest, Error: err.Error()})
			}
			lg.WithField("remaining", len(queue)-i).Warn("reconciliation interrupted")
			break
		}
		outcome, err := r.handle(ctx, userID, entry)
		outcome.Entry = entry
		if err != nil {
			outcome.Error = err.Error()
			outcome.Code = errorCode(err)
		}
		switch classify(err) {
		case bucketSucceeded:
			report.Succeeded = append(report.Succeeded, outcome)
		case bucketRetry:
			report.RetryLater = append(report.RetryLater, outcome)
		default:
			report.PermanentlyFailed = append(report.PermanentlyFailed, outcome)
		}
	}
	lg.WithFields(map[string]interface{}{
		"succeeded":          len(report.Succeeded),
		"retry_later":        len(report.RetryLater),
		"permanently_failed": len(report.PermanentlyFailed),
	}).Info("offline queue reconciled")
	return report
}

func (r *reconcileUsecase) handle(ctx context.Context, userID string, e model.OfflineActionEntry) (model.EntryOutcome, error) {
	switch e.Action {
	case model.ActionCreateAccount:
		p := e.CreateAccount
		if p == nil {
			return model.EntryOutcome{}, missingPayload(e.Action)
		}
		acc, err := r.accounts.Connect(ctx, userID, p.Platform, p.AuthToken, p.AccountName)
		return model.EntryOutcome{Account: acc}, err

	case model.ActionCreatePost:
		p := e.CreatePost
		if p == nil {
			return model.EntryOutcome{}, missingPayload(e.Action)
		}
		if e.IdempotencyKey == "" {
			return model.EntryOutcome{}, apperror.ReconciliationPermanent(apperror.CodeMissingKey, "createPost entries require an idempotency key", nil)
		}
		post, err := r.publisher.CreatePost(ctx, userID, dto.CreatePostRequest{
			Content:        p.Content,
			Platforms:      p.Platforms,
			MediaURLs:      p.MediaURLs,
			ScheduledAt:    p.ScheduledAt,
			IdempotencyKey: e.IdempotencyKey,
		})
		if err != nil {
			return model.EntryOutcome{}, err
		}
		out := model.EntryOutcome{PostID: post.ID}
		if !p.Dispatch {
			return out, nil
		}
		switch {
		case post.Status.IsEditable():
			post, err = r.publisher.Dispatch(ctx, post.ID)
		case transientFailure(post) != nil:
			// replay of an entry whose earlier dispatch only failed transiently
			post, err = r.publisher.Redispatch(ctx, post.ID)
		default:
			return out, nil
		}
		if err != nil {
			if apperror.IsConflict(err) {
				return out, nil
			}
			return out, err
		}
		if derr := transientFailure(post); derr != nil {
			return out, derr
		}
		return out, nil

	case model.ActionUpdateProfile:
		p := e.UpdateProfile
		if p == nil {
			return model.EntryOutcome{}, missingPayload(e.Action)
		}
		acc, err := r.accounts.UpdateProfile(ctx, userID, p.Platform, p.DisplayName)
		return model.EntryOutcome{Account: acc}, err

	default:
		return model.EntryOutcome{}, apperror.ReconciliationPermanent(apperror.CodeUnknownAction, fmt.Sprintf("unknown offline action %q", e.Action), nil)
	}
}

// transientFailure returns the first failed platform of a failed or partially
// failed post when every failure on it may succeed on retry, nil otherwise.
func transientFailure(post *model.SocialPost) *model.DispatchError {
	if post.Status != model.PostStatusFailed && post.Status != model.PostStatusPartiallyFailed {
		return nil
	}
	var first *model.DispatchError
	for _, platform := range post.PlatformsIn(model.ResultFailed) {
		res := post.Results[platform]
		derr := &model.DispatchError{Platform: platform, Reason: res.Reason, Message: res.Message}
		if !derr.Temporary() {
			return nil
		}
		if first == nil {
			first = derr
		}
	}
	return first
}

func missingPayload(a model.OfflineAction) error {
	return apperror.ReconciliationPermanent(apperror.CodeMissingPayload, fmt.Sprintf("%s entry has no payload", a), nil)
}

// classify maps a handler error onto a report bucket. Anything not known to be
// permanent is retried on the next pass.
func classify(err error) bucket {
	if err == nil {
		return bucketSucceeded
	}
	var derr *model.DispatchError
	if errors.As(err, &derr) {
		if derr.Temporary() {
			return bucketRetry
		}
		return bucketPermanent
	}
	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindConflict, apperror.KindNotFound, apperror.KindReconciliationPermanent:
		return bucketPermanent
	}
	return bucketRetry
}

func errorCode(err error) string {
	var derr *model.DispatchError
	if errors.As(err, &derr) {
		return string(derr.Reason)
	}
	return apperror.CodeOf(err)
}
