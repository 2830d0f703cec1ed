package platform

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"crosspost/domain/model"

	"github.com/google/go-querystring/query"
)

// FacebookSender publishes page posts through the Graph API.
type FacebookSender struct {
	baseURL   string
	appSecret string
	client    *http.Client
}

func NewFacebookSender(baseURL, appSecret string, client *http.Client) *FacebookSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &FacebookSender{baseURL: strings.TrimRight(baseURL, "/"), appSecret: appSecret, client: client}
}

// GraphAuth is the credential part of every Graph API call.
type GraphAuth struct {
	AccessToken    string `url:"access_token"`
	AppSecretProof string `url:"appsecret_proof,omitempty"`
}

type feedParams struct {
	GraphAuth
	Message string `url:"message"`
	Link    string `url:"link,omitempty"`
}

type identifyParams struct {
	GraphAuth
	Fields string `url:"fields"`
}

func (s *FacebookSender) auth(token string) GraphAuth {
	a := GraphAuth{AccessToken: token}
	if s.appSecret != "" {
		mac := hmac.New(sha256.New, []byte(s.appSecret))
		mac.Write([]byte(token))
		a.AppSecretProof = hex.EncodeToString(mac.Sum(nil))
	}
	return a
}

func (s *FacebookSender) Publish(ctx context.Context, token string, req model.DispatchRequest) (string, error) {
	params := feedParams{GraphAuth: s.auth(token), Message: req.Content}
	if len(req.MediaURLs) > 0 {
		params.Link = req.MediaURLs[0]
	}
	form, err := query.Values(params)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/me/feed", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(s.client, httpReq, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("graph api returned no post id")
	}
	return out.ID, nil
}

func (s *FacebookSender) Delete(ctx context.Context, token, remoteID string) error {
	q, err := query.Values(s.auth(token))
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s?%s", s.baseURL, url.PathEscape(remoteID), q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	return doJSON(s.client, httpReq, nil)
}

func (s *FacebookSender) Identify(ctx context.Context, token string) (*model.AccountIdentity, error) {
	q, err := query.Values(identifyParams{GraphAuth: s.auth(token), Fields: "id,name"})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/me?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := doJSON(s.client, httpReq, &out); err != nil {
		return nil, err
	}
	return &model.AccountIdentity{RemoteID: out.ID, Name: out.Name}, nil
}
