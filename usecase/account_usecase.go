package usecase

import (
	"context"
	"errors"
	"strings"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

type IAccountUsecase interface {
	repository.IAccountConnector
	List(ctx context.Context, userID string) ([]*model.SocialAccount, error)
}

type accountUsecase struct {
	accounts repository.IAccount
	verifier repository.ICredentialVerifier
}

func NewAccountUsecase(accounts repository.IAccount, verifier repository.ICredentialVerifier) IAccountUsecase {
	return &accountUsecase{accounts: accounts, verifier: verifier}
}

// Connect verifies the token with the platform and stores the account. A
// rejected token comes back as the verifier's *model.DispatchError.
func (u *accountUsecase) Connect(ctx context.Context, userID, platform, authToken, accountName string) (*model.SocialAccount, error) {
	platform = NormalizePlatform(platform)
	var errs []string
	if platform == "" {
		errs = append(errs, "Platform is required")
	}
	if strings.TrimSpace(authToken) == "" {
		errs = append(errs, "Auth token is required")
	}
	if strings.TrimSpace(accountName) == "" {
		errs = append(errs, "Account name is required")
	}
	if len(errs) > 0 {
		return nil, apperror.Validation(errs)
	}

	identity, err := u.verifier.VerifyCredentials(ctx, platform, authToken)
	if err != nil {
		logger.GetLogger().WithField("platform", platform).WithField("error", err.Error()).Warn("account verification failed")
		return nil, err
	}
	acc := &model.SocialAccount{
		UserID:      userID,
		Platform:    platform,
		AccountName: accountName,
		DisplayName: identity.Name,
		RemoteID:    identity.RemoteID,
		AccessToken: authToken,
		Active:      true,
	}
	if acc.DisplayName == "" {
		acc.DisplayName = accountName
	}
	stored, err := u.accounts.Upsert(ctx, acc)
	if err != nil {
		return nil, apperror.Persistence("store social account", err)
	}
	return stored, nil
}

func (u *accountUsecase) UpdateProfile(ctx context.Context, userID, platform, displayName string) (*model.SocialAccount, error) {
	platform = NormalizePlatform(platform)
	if platform == "" || strings.TrimSpace(displayName) == "" {
		return nil, apperror.Validation([]string{"Platform and display name are required"})
	}
	acc, err := u.accounts.UpdateDisplayName(ctx, userID, platform, displayName)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, apperror.NotFound("no %s account connected", platform)
	}
	if err != nil {
		return nil, apperror.Persistence("update social account", err)
	}
	return acc, nil
}

func (u *accountUsecase) List(ctx context.Context, userID string) ([]*model.SocialAccount, error) {
	list, err := u.accounts.List(ctx, userID)
	if err != nil {
		return nil, apperror.Persistence("list social accounts", err)
	}
	return list, nil
}
