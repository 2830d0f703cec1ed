package repository

import (
	"context"
	"errors"

	"crosspost/domain/model"
)

var ErrAccountNotFound = errors.New("social account not found")

type IAccount interface {
	Upsert(ctx context.Context, account *model.SocialAccount) (*model.SocialAccount, error)
	Get(ctx context.Context, userID, platform string) (*model.SocialAccount, error)
	List(ctx context.Context, userID string) ([]*model.SocialAccount, error)
	UpdateDisplayName(ctx context.Context, userID, platform, displayName string) (*model.SocialAccount, error)
}

// IAccountConnector connects platform accounts on behalf of a user.
type IAccountConnector interface {
	Connect(ctx context.Context, userID, platform, authToken, accountName string) (*model.SocialAccount, error)
	UpdateProfile(ctx context.Context, userID, platform, displayName string) (*model.SocialAccount, error)
}
