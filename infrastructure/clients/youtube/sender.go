package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"crosspost/domain/model"
	"crosspost/infrastructure/clients/platform"
	"crosspost/usecase"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const maxTitleRunes = 100

// VideoSender uploads a post's video with the user's channel token.
type VideoSender struct {
	http    *http.Client
	privacy string
	opts    []option.ClientOption
}

// NewVideoSender returns a sender; opts are appended to every per-user service.
func NewVideoSender(httpClient *http.Client, privacy string, opts ...option.ClientOption) *VideoSender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if privacy == "" {
		privacy = "private"
	}
	return &VideoSender{http: httpClient, privacy: privacy, opts: opts}
}

func (s *VideoSender) service(ctx context.Context, token string) (*youtube.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, s.opts...)
	return youtube.NewService(ctx, opts...)
}

func (s *VideoSender) Publish(ctx context.Context, token string, req model.DispatchRequest) (string, error) {
	videoURL := ""
	for _, u := range req.MediaURLs {
		if kind, ok := usecase.MediaKindOf(u); ok && kind == model.MediaVideo {
			videoURL = u
			break
		}
	}
	if videoURL == "" {
		return "", &model.DispatchError{Platform: "youtube", Reason: model.ReasonRejected, Message: "a video attachment is required"}
	}
	svc, err := s.service(ctx, token)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", err
	}
	media, err := s.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer media.Body.Close()
	if media.StatusCode != http.StatusOK {
		return "", &model.DispatchError{Platform: "youtube", Reason: model.ReasonRejected, Message: fmt.Sprintf("video download returned %d", media.StatusCode)}
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{Title: Title(req.Content), Description: req.Content},
		Status:  &youtube.VideoStatus{PrivacyStatus: s.privacy},
	}
	resp, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(media.Body).Context(ctx).Do()
	if err != nil {
		return "", apiError(err)
	}
	return resp.Id, nil
}

func (s *VideoSender) Delete(ctx context.Context, token, remoteID string) error {
	svc, err := s.service(ctx, token)
	if err != nil {
		return err
	}
	return apiError(svc.Videos.Delete(remoteID).Context(ctx).Do())
}

func (s *VideoSender) Identify(ctx context.Context, token string) (*model.AccountIdentity, error) {
	svc, err := s.service(ctx, token)
	if err != nil {
		return nil, err
	}
	resp, err := svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, apiError(err)
	}
	if len(resp.Items) == 0 {
		return nil, &platform.StatusError{Code: http.StatusForbidden, Body: "no channel found for authenticated user"}
	}
	ch := resp.Items[0]
	name := ""
	if ch.Snippet != nil {
		name = ch.Snippet.Title
	}
	return &model.AccountIdentity{RemoteID: ch.Id, Name: name}, nil
}

// Title derives a video title from the first line of the post.
func Title(content string) string {
	title := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	return title
}

func apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &platform.StatusError{Code: gerr.Code, Body: gerr.Message}
	}
	return err
}

var _ platform.Sender = (*VideoSender)(nil)
