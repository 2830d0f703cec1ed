package usecase_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"crosspost/domain/model"

	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type sendResponse struct {
	remoteID string
	reason   model.DispatchReason
}

// fakeDispatcher answers Send from per-platform response queues; a platform
// with an empty queue succeeds with remote id "remote-<platform>".
type fakeDispatcher struct {
	mu        sync.Mutex
	responses map[string][]sendResponse
	calls     []string
	removed   []string
	removeErr map[string]error

	// when set, Send blocks on hold for the listed platforms until released or ctx ends
	hold    chan struct{}
	holdFor map[string]bool
	entered chan string
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		responses: make(map[string][]sendResponse),
		removeErr: make(map[string]error),
		holdFor:   make(map[string]bool),
		entered:   make(chan string, 16),
	}
}

func (f *fakeDispatcher) succeed(platform, remoteID string) *fakeDispatcher {
	f.responses[platform] = append(f.responses[platform], sendResponse{remoteID: remoteID})
	return f
}

func (f *fakeDispatcher) fail(platform string, reason model.DispatchReason) *fakeDispatcher {
	f.responses[platform] = append(f.responses[platform], sendResponse{reason: reason})
	return f
}

func (f *fakeDispatcher) Send(ctx context.Context, req model.DispatchRequest) (string, *model.DispatchError) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Platform)
	held := f.hold != nil && f.holdFor[req.Platform]
	hold := f.hold
	var resp *sendResponse
	if q := f.responses[req.Platform]; len(q) > 0 {
		resp = &q[0]
		f.responses[req.Platform] = q[1:]
	}
	f.mu.Unlock()

	if held {
		f.entered <- req.Platform
		select {
		case <-hold:
		case <-ctx.Done():
			return "", &model.DispatchError{Platform: req.Platform, Reason: model.ReasonNetworkError, Message: ctx.Err().Error()}
		}
	}
	if resp == nil {
		return "remote-" + req.Platform, nil
	}
	if resp.reason != "" {
		return "", &model.DispatchError{Platform: req.Platform, Reason: resp.reason, Message: "simulated " + string(resp.reason)}
	}
	return resp.remoteID, nil
}

func (f *fakeDispatcher) Remove(ctx context.Context, userID, platform, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[platform]; err != nil {
		return err
	}
	f.removed = append(f.removed, platform+":"+remoteID)
	return nil
}

func (f *fakeDispatcher) callsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// MockAccountConnector is a testify mock of repository.IAccountConnector.
type MockAccountConnector struct {
	mock.Mock
}

func (m *MockAccountConnector) Connect(ctx context.Context, userID, platform, authToken, accountName string) (*model.SocialAccount, error) {
	args := m.Called(ctx, userID, platform, authToken, accountName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialAccount), args.Error(1)
}

func (m *MockAccountConnector) UpdateProfile(ctx context.Context, userID, platform, displayName string) (*model.SocialAccount, error) {
	args := m.Called(ctx, userID, platform, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialAccount), args.Error(1)
}

// MockPostRepository is a testify mock of repository.IPost for failure paths.
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *model.SocialPost) (*model.SocialPost, bool, error) {
	args := m.Called(ctx, post)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.SocialPost), args.Bool(1), args.Error(2)
}

func (m *MockPostRepository) Get(ctx context.Context, id string) (*model.SocialPost, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialPost), args.Error(1)
}

func (m *MockPostRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*model.SocialPost, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialPost), args.Error(1)
}

func (m *MockPostRepository) UpdateContent(ctx context.Context, post *model.SocialPost) (*model.SocialPost, error) {
	args := m.Called(ctx, post)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialPost), args.Error(1)
}

func (m *MockPostRepository) TransitionStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus, patch map[string]model.PlatformResult) (*model.SocialPost, error) {
	args := m.Called(ctx, id, from, to, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialPost), args.Error(1)
}

func (m *MockPostRepository) RecordResult(ctx context.Context, id, platform string, result model.PlatformResult) error {
	return m.Called(ctx, id, platform, result).Error(0)
}

func (m *MockPostRepository) FinalizeStatus(ctx context.Context, id string, status model.PostStatus, publishedAt *time.Time) (*model.SocialPost, error) {
	args := m.Called(ctx, id, status, publishedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialPost), args.Error(1)
}

func (m *MockPostRepository) ListPublished(ctx context.Context, userID string, from, to time.Time) ([]*model.SocialPost, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SocialPost), args.Error(1)
}

func (m *MockPostRepository) ListByStatus(ctx context.Context, userID string, status model.PostStatus, limit int) ([]*model.SocialPost, error) {
	args := m.Called(ctx, userID, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SocialPost), args.Error(1)
}

func (m *MockPostRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.SocialPost, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SocialPost), args.Error(1)
}

func (m *MockPostRepository) UpdateEngagement(ctx context.Context, id string, engagement model.Engagement) error {
	return m.Called(ctx, id, engagement).Error(0)
}

var errBackend = errors.New("backend unavailable")
