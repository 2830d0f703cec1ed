package youtube_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crosspost/domain/model"
	"crosspost/infrastructure/clients/platform"
	"crosspost/infrastructure/clients/youtube"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

func fakeAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEngagementSource_Fetch(t *testing.T) {
	srv := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"))
		assert.Equal(t, "v1", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"items":[{"id":"v1","statistics":{"viewCount":"300","likeCount":"5","commentCount":"3","favoriteCount":"0"}}]}`))
	})
	svc, err := yt.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	src := youtube.NewEngagementSource(svc)
	assert.True(t, src.Supports("youtube"))
	assert.False(t, src.Supports("x"))

	e, err := src.Fetch(context.Background(), "youtube", "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), e.Likes)
	assert.Equal(t, int64(3), e.Comments)
	assert.Equal(t, int64(300), e.Views)
	assert.Equal(t, int64(8), e.Total())
}

func TestEngagementSource_MissingVideo(t *testing.T) {
	srv := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	svc, err := yt.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	_, err = youtube.NewEngagementSource(svc).Fetch(context.Background(), "youtube", "gone")
	assert.Error(t, err)
}

func TestVideoSender_IdentifyAndDelete(t *testing.T) {
	srv := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/channels"):
			_, _ = w.Write([]byte(`{"items":[{"id":"UC1","snippet":{"title":"Acme TV"}}]}`))
		case strings.HasSuffix(r.URL.Path, "/videos") && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
		}
	})
	s := youtube.NewVideoSender(srv.Client(), "", option.WithEndpoint(srv.URL+"/"))

	id, err := s.Identify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, &model.AccountIdentity{RemoteID: "UC1", Name: "Acme TV"}, id)

	err = s.Delete(context.Background(), "tok", "v1")
	assert.Equal(t, model.ReasonAuthExpired, platform.Classify("youtube", err).Reason)
}

func TestVideoSender_RequiresVideo(t *testing.T) {
	s := youtube.NewVideoSender(nil, "")
	_, err := s.Publish(context.Background(), "tok", model.DispatchRequest{Platform: "youtube", Content: "hi", MediaURLs: []string{"https://cdn.example.com/a.png"}})
	assert.Equal(t, model.ReasonRejected, platform.Classify("youtube", err).Reason)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Launch day", youtube.Title("  Launch day \nmore details"))
	assert.Equal(t, 100, len([]rune(youtube.Title(strings.Repeat("é", 150)))))
}
