package youtube

import (
	"context"
	"fmt"
	"time"

	"crosspost/infrastructure/configuration"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// NewService builds a Data API service from configuration. Without OAuth
// tokens but with an API key it runs read-only.
func NewService(ctx context.Context, cfg configuration.OAuthClient, opts ...option.ClientOption) (*youtube.Service, error) {
	if (cfg.AccessToken == "" || cfg.RefreshToken == "") && cfg.APIKey != "" {
		service, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create YouTube service with API key: %w", err)
		}
		return service, nil
	}
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("youtube credentials not configured")
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{youtube.YoutubeReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	token := &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-1 * time.Minute), // force refresh on first use
	}
	httpClient := oauth2Config.Client(ctx, token)
	service, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return service, nil
}
