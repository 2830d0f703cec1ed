package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

const (
	defaultWindowDays = 30
	// MaxWindowDays bounds the analytics window to ten years.
	MaxWindowDays = 3650
	topContentLimit   = 10
	topPerformerLimit = 10
	optimalHourLimit  = 3
	// hours with fewer published posts than this are not ranked
	minHourSamples = 2
)

type IAnalyticsUsecase interface {
	UserAnalytics(ctx context.Context, userID string, windowDays int, compareWithPrevious bool) (*model.AnalyticsSnapshot, error)
	SystemAnalytics(ctx context.Context, windowDays int) (*model.AnalyticsSnapshot, error)
	RefreshEngagement(ctx context.Context, userID, postID string) (*model.SocialPost, error)
}

type AnalyticsOption func(*analyticsUsecase)

// WithSnapshotCache memoizes computed snapshots for ttl.
func WithSnapshotCache(cache repository.ISnapshotCache, ttl time.Duration) AnalyticsOption {
	return func(u *analyticsUsecase) {
		u.cache = cache
		u.cacheTTL = ttl
	}
}

func WithEngagementSource(src repository.IEngagementSource) AnalyticsOption {
	return func(u *analyticsUsecase) { u.source = src }
}

func WithAnalyticsClock(now func() time.Time) AnalyticsOption {
	return func(u *analyticsUsecase) {
		if now != nil {
			u.now = now
		}
	}
}

type analyticsUsecase struct {
	posts    repository.IPost
	cache    repository.ISnapshotCache
	cacheTTL time.Duration
	source   repository.IEngagementSource
	now      func() time.Time
}

func NewAnalyticsUsecase(posts repository.IPost, opts ...AnalyticsOption) IAnalyticsUsecase {
	u := &analyticsUsecase{posts: posts, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *analyticsUsecase) UserAnalytics(ctx context.Context, userID string, windowDays int, compareWithPrevious bool) (*model.AnalyticsSnapshot, error) {
	if userID == "" {
		return nil, apperror.Validation([]string{"User is required"})
	}
	windowDays, err := normalizeWindow(windowDays)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("analytics:user:%s:%d:%t", userID, windowDays, compareWithPrevious)
	return u.memoize(ctx, key, func(ctx context.Context) (*model.AnalyticsSnapshot, error) {
		return u.compute(ctx, userID, windowDays, compareWithPrevious, false)
	})
}

// SystemAnalytics aggregates every user's posts and always compares against
// the previous window.
func (u *analyticsUsecase) SystemAnalytics(ctx context.Context, windowDays int) (*model.AnalyticsSnapshot, error) {
	windowDays, err := normalizeWindow(windowDays)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("analytics:system:%d", windowDays)
	return u.memoize(ctx, key, func(ctx context.Context) (*model.AnalyticsSnapshot, error) {
		return u.compute(ctx, "", windowDays, true, true)
	})
}

// RefreshEngagement pulls current counters for every succeeded platform the
// engagement source understands and stores their sum on the post.
func (u *analyticsUsecase) RefreshEngagement(ctx context.Context, userID, postID string) (*model.SocialPost, error) {
	post, err := u.posts.Get(ctx, postID)
	if err != nil {
		return nil, storeErr("load post", postID, err)
	}
	if userID != "" && post.UserID != userID {
		return nil, apperror.NotFound("post %s not found", postID)
	}
	if !post.Status.IsTerminal() {
		return nil, apperror.Conflict(apperror.CodeInvalidState, "post %s is %s; engagement is collected after dispatch", postID, post.Status)
	}
	if u.source == nil {
		return post, nil
	}
	var total model.Engagement
	fetched := 0
	for _, platform := range post.PlatformsIn(model.ResultSucceeded) {
		if !u.source.Supports(platform) {
			continue
		}
		e, err := u.source.Fetch(ctx, platform, post.Results[platform].RemoteID)
		if err != nil {
			logger.GetLogger().WithField("post_id", postID).WithField("platform", platform).WithField("error", err.Error()).Warn("engagement fetch failed")
			continue
		}
		total = total.Add(*e)
		fetched++
	}
	if fetched == 0 {
		return post, nil
	}
	total.FetchedAt = u.now()
	if err := u.posts.UpdateEngagement(ctx, postID, total); err != nil {
		return nil, storeErr("store engagement", postID, err)
	}
	post.Analytics = &total
	return post, nil
}

func (u *analyticsUsecase) memoize(ctx context.Context, key string, compute func(context.Context) (*model.AnalyticsSnapshot, error)) (*model.AnalyticsSnapshot, error) {
	if u.cache == nil || u.cacheTTL <= 0 {
		return compute(ctx)
	}
	raw, err := u.cache.GetOrRefresh(ctx, key, u.cacheTTL, func(ctx context.Context) ([]byte, error) {
		snap, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)
	})
	if err != nil {
		if apperror.KindOf(err) != "" {
			return nil, err
		}
		logger.GetLogger().WithField("key", key).WithField("error", err.Error()).Warn("analytics cache unavailable; computing directly")
		return compute(ctx)
	}
	var snap model.AnalyticsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return compute(ctx)
	}
	return &snap, nil
}

func (u *analyticsUsecase) compute(ctx context.Context, userID string, windowDays int, compare, system bool) (*model.AnalyticsSnapshot, error) {
	now := u.now()
	window := time.Duration(windowDays) * 24 * time.Hour
	from := now.Add(-window)

	posts, err := u.posts.ListPublished(ctx, userID, from, now)
	if err != nil {
		return nil, apperror.Persistence("list published posts", err)
	}
	posts = publishedWithin(posts, from, now)

	snap := aggregate(posts)
	snap.UserID = userID
	snap.WindowDays = windowDays
	snap.From = from
	snap.To = now
	snap.GeneratedAt = now

	if compare {
		prevTo := from.Add(-time.Nanosecond)
		prevFrom := from.Add(-window)
		prev, err := u.posts.ListPublished(ctx, userID, prevFrom, prevTo)
		if err != nil {
			return nil, apperror.Persistence("list previous window posts", err)
		}
		var previous int64
		for _, p := range publishedWithin(prev, prevFrom, prevTo) {
			previous += p.EngagementTotal()
		}
		trend := TrendPct(snap.TotalEngagement, previous)
		snap.EngagementTrendPct = &trend
	}
	if system {
		snap.TopPerformers = topPerformers(posts)
	}
	return snap, nil
}

// TrendPct is the relative change from previous to current in percent, and 0
// when there is no previous engagement to compare against.
func TrendPct(current, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

func aggregate(posts []*model.SocialPost) *model.AnalyticsSnapshot {
	snap := &model.AnalyticsSnapshot{
		PlatformBreakdown:   make([]model.PlatformBreakdown, 0),
		TopContent:          make([]model.TopContentItem, 0),
		OptimalPostingHours: make(map[string][]int),
	}
	type hourStat struct {
		sum   int64
		count int
	}
	byPlatform := make(map[string]*model.PlatformBreakdown)
	hours := make(map[string]*[24]hourStat)

	for _, p := range posts {
		engagement := p.EngagementTotal()
		snap.TotalPosts++
		snap.TotalEngagement += engagement
		snap.TotalViews += p.Views()
		hour := p.PublishedAt.UTC().Hour()
		for _, platform := range p.Platforms {
			b, ok := byPlatform[platform]
			if !ok {
				b = &model.PlatformBreakdown{Platform: platform}
				byPlatform[platform] = b
				hours[platform] = &[24]hourStat{}
			}
			b.Posts++
			b.Engagement += engagement
			b.Views += p.Views()
			hours[platform][hour].sum += engagement
			hours[platform][hour].count++
		}
		snap.TopContent = append(snap.TopContent, model.TopContentItem{
			PostID:      p.ID,
			UserID:      p.UserID,
			Content:     p.Content,
			Platforms:   append([]string(nil), p.Platforms...),
			Engagement:  engagement,
			Views:       p.Views(),
			PublishedAt: *p.PublishedAt,
		})
	}
	if snap.TotalPosts > 0 {
		snap.AverageEngagement = float64(snap.TotalEngagement) / float64(snap.TotalPosts)
	}

	for platform, b := range byPlatform {
		b.AverageEngagement = float64(b.Engagement) / float64(b.Posts)
		snap.PlatformBreakdown = append(snap.PlatformBreakdown, *b)

		type candidate struct {
			hour int
			mean float64
		}
		candidates := make([]candidate, 0, 24)
		for h, st := range hours[platform] {
			if st.count < minHourSamples {
				continue
			}
			candidates = append(candidates, candidate{hour: h, mean: float64(st.sum) / float64(st.count)})
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].mean != candidates[j].mean {
				return candidates[i].mean > candidates[j].mean
			}
			return candidates[i].hour < candidates[j].hour
		})
		best := make([]int, 0, optimalHourLimit)
		for i := 0; i < len(candidates) && i < optimalHourLimit; i++ {
			best = append(best, candidates[i].hour)
		}
		snap.OptimalPostingHours[platform] = best
	}
	sort.Slice(snap.PlatformBreakdown, func(i, j int) bool {
		a, b := snap.PlatformBreakdown[i], snap.PlatformBreakdown[j]
		if a.Engagement != b.Engagement {
			return a.Engagement > b.Engagement
		}
		return a.Platform < b.Platform
	})

	sort.Slice(snap.TopContent, func(i, j int) bool {
		a, b := snap.TopContent[i], snap.TopContent[j]
		if a.Engagement != b.Engagement {
			return a.Engagement > b.Engagement
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.PostID < b.PostID
	})
	if len(snap.TopContent) > topContentLimit {
		snap.TopContent = snap.TopContent[:topContentLimit]
	}
	return snap
}

func topPerformers(posts []*model.SocialPost) []model.TopPerformer {
	byUser := make(map[string]*model.TopPerformer)
	for _, p := range posts {
		tp, ok := byUser[p.UserID]
		if !ok {
			tp = &model.TopPerformer{UserID: p.UserID}
			byUser[p.UserID] = tp
		}
		tp.Posts++
		tp.Engagement += p.EngagementTotal()
	}
	out := make([]model.TopPerformer, 0, len(byUser))
	for _, tp := range byUser {
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Engagement != out[j].Engagement {
			return out[i].Engagement > out[j].Engagement
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > topPerformerLimit {
		out = out[:topPerformerLimit]
	}
	return out
}

// publishedWithin drops anything a store returned outside the scan contract,
// such as posts caught mid-dispatch.
func publishedWithin(posts []*model.SocialPost, from, to time.Time) []*model.SocialPost {
	out := posts[:0:0]
	for _, p := range posts {
		if p == nil || p.Status != model.PostStatusPublished || p.PublishedAt == nil {
			continue
		}
		if p.PublishedAt.Before(from) || p.PublishedAt.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func normalizeWindow(days int) (int, error) {
	switch {
	case days <= 0:
		return defaultWindowDays, nil
	case days > MaxWindowDays:
		return 0, apperror.Validation([]string{fmt.Sprintf("Window must not exceed %d days", MaxWindowDays)})
	}
	return days, nil
}
