package youtube

import (
	"context"
	"fmt"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"

	"google.golang.org/api/youtube/v3"
)

// EngagementSource reads video statistics for published youtube targets.
type EngagementSource struct {
	service *youtube.Service
	now     func() time.Time
}

func NewEngagementSource(service *youtube.Service) *EngagementSource {
	return &EngagementSource{service: service, now: func() time.Time { return time.Now().UTC() }}
}

func (s *EngagementSource) Supports(platform string) bool {
	return platform == "youtube"
}

func (s *EngagementSource) Fetch(ctx context.Context, platform, remoteID string) (*model.Engagement, error) {
	if !s.Supports(platform) {
		return nil, fmt.Errorf("no engagement source for %s", platform)
	}
	resp, err := s.service.Videos.List([]string{"statistics"}).Id(remoteID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get video statistics: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, fmt.Errorf("video %s not found", remoteID)
	}
	st := resp.Items[0].Statistics
	return &model.Engagement{
		Likes:     int64(st.LikeCount),
		Comments:  int64(st.CommentCount),
		Shares:    int64(st.FavoriteCount),
		Views:     int64(st.ViewCount),
		FetchedAt: s.now(),
	}, nil
}

var _ repository.IEngagementSource = (*EngagementSource)(nil)
