package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
)

// MemoryPostRepository keeps posts in process memory. It is used when no SQL
// database is configured and by tests; every method copies in and out.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string]*model.SocialPost
	keys  map[string]string // user|idempotency key -> post id
	now   func() time.Time
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts: make(map[string]*model.SocialPost),
		keys:  make(map[string]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func idemKey(userID, key string) string { return userID + "|" + key }

func (r *MemoryPostRepository) Create(ctx context.Context, post *model.SocialPost) (*model.SocialPost, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post.IdempotencyKey != "" {
		if id, ok := r.keys[idemKey(post.UserID, post.IdempotencyKey)]; ok {
			return r.posts[id].Clone(), false, nil
		}
		r.keys[idemKey(post.UserID, post.IdempotencyKey)] = post.ID
	}
	r.posts[post.ID] = post.Clone()
	return post.Clone(), true, nil
}

func (r *MemoryPostRepository) Get(ctx context.Context, id string) (*model.SocialPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryPostRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*model.SocialPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.keys[idemKey(userID, key)]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return r.posts[id].Clone(), nil
}

func (r *MemoryPostRepository) UpdateContent(ctx context.Context, post *model.SocialPost) (*model.SocialPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[post.ID]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	if !cur.Status.IsEditable() {
		return nil, repository.ErrStatusConflict
	}
	next := post.Clone()
	next.CreatedAt = cur.CreatedAt
	next.IdempotencyKey = cur.IdempotencyKey
	next.UserID = cur.UserID
	r.posts[post.ID] = next
	return next.Clone(), nil
}

func (r *MemoryPostRepository) TransitionStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus, patch map[string]model.PlatformResult) (*model.SocialPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	if !statusIn(cur.Status, from) {
		return nil, repository.ErrStatusConflict
	}
	cur.Status = to
	if cur.Results == nil {
		cur.Results = make(map[string]model.PlatformResult, len(patch))
	}
	for k, v := range patch {
		cur.Results[k] = v
	}
	cur.UpdatedAt = r.now()
	return cur.Clone(), nil
}

func (r *MemoryPostRepository) RecordResult(ctx context.Context, id, platform string, result model.PlatformResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[id]
	if !ok {
		return repository.ErrPostNotFound
	}
	cur.Results[platform] = result
	cur.UpdatedAt = r.now()
	return nil
}

func (r *MemoryPostRepository) FinalizeStatus(ctx context.Context, id string, status model.PostStatus, publishedAt *time.Time) (*model.SocialPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	if cur.Status != model.PostStatusPublishing {
		return nil, repository.ErrStatusConflict
	}
	cur.Status = status
	if publishedAt != nil {
		t := *publishedAt
		cur.PublishedAt = &t
	}
	cur.UpdatedAt = r.now()
	return cur.Clone(), nil
}

func (r *MemoryPostRepository) ListPublished(ctx context.Context, userID string, from, to time.Time) ([]*model.SocialPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.SocialPost, 0)
	for _, p := range r.posts {
		if p.Status != model.PostStatusPublished || p.PublishedAt == nil {
			continue
		}
		if userID != "" && p.UserID != userID {
			continue
		}
		if p.PublishedAt.Before(from) || p.PublishedAt.After(to) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(*out[j].PublishedAt) })
	return out, nil
}

func (r *MemoryPostRepository) ListByStatus(ctx context.Context, userID string, status model.PostStatus, limit int) ([]*model.SocialPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.SocialPost, 0)
	for _, p := range r.posts {
		if userID != "" && p.UserID != userID {
			continue
		}
		if status == "" && p.Status == model.PostStatusDeleted {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryPostRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.SocialPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.SocialPost, 0)
	for _, p := range r.posts {
		if p.Status == model.PostStatusScheduled && p.ScheduledAt != nil && !p.ScheduledAt.After(now) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryPostRepository) UpdateEngagement(ctx context.Context, id string, engagement model.Engagement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[id]
	if !ok {
		return repository.ErrPostNotFound
	}
	e := engagement
	cur.Analytics = &e
	cur.UpdatedAt = r.now()
	return nil
}

func statusIn(s model.PostStatus, set []model.PostStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

var _ repository.IPost = (*MemoryPostRepository)(nil)
