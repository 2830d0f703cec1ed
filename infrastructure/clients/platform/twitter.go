package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"crosspost/domain/model"

	"golang.org/x/oauth2"
)

// TwitterSender posts through the X (Twitter) v2 API with OAuth2 user tokens.
type TwitterSender struct {
	baseURL string
	oauth   *oauth2.Config
	base    *http.Client
}

func NewTwitterSender(baseURL string, oauth *oauth2.Config, base *http.Client) *TwitterSender {
	if oauth == nil {
		oauth = &oauth2.Config{}
	}
	return &TwitterSender{baseURL: strings.TrimRight(baseURL, "/"), oauth: oauth, base: base}
}

func (s *TwitterSender) client(ctx context.Context, token string) *http.Client {
	if s.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)
	}
	return s.oauth.Client(ctx, &oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func (s *TwitterSender) Publish(ctx context.Context, token string, req model.DispatchRequest) (string, error) {
	text := req.Content
	// v2 media upload needs a separate flow; links ride along in the text
	for _, m := range req.MediaURLs {
		text += " " + m
	}
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := doJSON(s.client(ctx, token), httpReq, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("twitter api returned no tweet id")
	}
	return out.Data.ID, nil
}

func (s *TwitterSender) Delete(ctx context.Context, token, remoteID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/2/tweets/"+url.PathEscape(remoteID), nil)
	if err != nil {
		return err
	}
	return doJSON(s.client(ctx, token), httpReq, nil)
}

func (s *TwitterSender) Identify(ctx context.Context, token string) (*model.AccountIdentity, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/2/users/me", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := doJSON(s.client(ctx, token), httpReq, &out); err != nil {
		return nil, err
	}
	name := out.Data.Name
	if name == "" {
		name = out.Data.Username
	}
	return &model.AccountIdentity{RemoteID: out.Data.ID, Name: name}, nil
}
