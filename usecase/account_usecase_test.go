package usecase_test

import (
	"context"
	"errors"
	"testing"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Upsert(ctx context.Context, account *model.SocialAccount) (*model.SocialAccount, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialAccount), args.Error(1)
}

func (m *MockAccountRepository) Get(ctx context.Context, userID, platform string) (*model.SocialAccount, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialAccount), args.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context, userID string) ([]*model.SocialAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SocialAccount), args.Error(1)
}

func (m *MockAccountRepository) UpdateDisplayName(ctx context.Context, userID, platform, displayName string) (*model.SocialAccount, error) {
	args := m.Called(ctx, userID, platform, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SocialAccount), args.Error(1)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyCredentials(ctx context.Context, platform, token string) (*model.AccountIdentity, error) {
	args := m.Called(ctx, platform, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountIdentity), args.Error(1)
}

func TestConnect_StoresVerifiedAccount(t *testing.T) {
	repo := new(MockAccountRepository)
	verifier := new(MockVerifier)
	verifier.On("VerifyCredentials", mock.Anything, "facebook", "tok").Return(&model.AccountIdentity{RemoteID: "fb-1", Name: "Acme Page"}, nil)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(a *model.SocialAccount) bool {
		return a.UserID == "user-1" && a.Platform == "facebook" && a.RemoteID == "fb-1" && a.DisplayName == "Acme Page" && a.AccessToken == "tok" && a.Active
	})).Return(&model.SocialAccount{ID: 7, Platform: "facebook"}, nil)

	uc := usecase.NewAccountUsecase(repo, verifier)
	acc, err := uc.Connect(context.Background(), "user-1", " Facebook ", "tok", "acme")
	require.NoError(t, err)
	assert.Equal(t, uint(7), acc.ID)
	repo.AssertExpectations(t)
	verifier.AssertExpectations(t)
}

func TestConnect_VerificationFailureIsReturnedAsDispatchError(t *testing.T) {
	repo := new(MockAccountRepository)
	verifier := new(MockVerifier)
	verifier.On("VerifyCredentials", mock.Anything, "x", "expired").
		Return(nil, &model.DispatchError{Platform: "x", Reason: model.ReasonAuthExpired})

	uc := usecase.NewAccountUsecase(repo, verifier)
	_, err := uc.Connect(context.Background(), "user-1", "x", "expired", "me")

	var derr *model.DispatchError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, model.ReasonAuthExpired, derr.Reason)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestConnect_ValidatesInput(t *testing.T) {
	uc := usecase.NewAccountUsecase(new(MockAccountRepository), new(MockVerifier))
	_, err := uc.Connect(context.Background(), "user-1", "", "", "")

	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{"Platform is required", "Auth token is required", "Account name is required"}, appErr.Details)
}

func TestUpdateProfile(t *testing.T) {
	repo := new(MockAccountRepository)
	repo.On("UpdateDisplayName", mock.Anything, "user-1", "x", "New").Return(&model.SocialAccount{DisplayName: "New"}, nil).Once()
	repo.On("UpdateDisplayName", mock.Anything, "user-1", "tiktok", "New").Return(nil, repository.ErrAccountNotFound).Once()
	repo.On("UpdateDisplayName", mock.Anything, "user-1", "facebook", "New").Return(nil, errBackend).Once()
	uc := usecase.NewAccountUsecase(repo, new(MockVerifier))

	acc, err := uc.UpdateProfile(context.Background(), "user-1", "X", "New")
	require.NoError(t, err)
	assert.Equal(t, "New", acc.DisplayName)

	_, err = uc.UpdateProfile(context.Background(), "user-1", "tiktok", "New")
	assert.True(t, apperror.IsNotFound(err))

	_, err = uc.UpdateProfile(context.Background(), "user-1", "facebook", "New")
	assert.True(t, apperror.IsPersistence(err))

	_, err = uc.UpdateProfile(context.Background(), "user-1", "x", " ")
	assert.True(t, apperror.IsValidation(err))
}
