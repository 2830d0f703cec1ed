package persistence

import (
	"context"
	"errors"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository keeps connected social accounts, one per user and platform.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) repository.IAccount {
	return &AccountRepository{db: db}
}

// AutoMigrateAccounts creates or updates the social_accounts table.
func AutoMigrateAccounts(db *gorm.DB) error {
	return db.AutoMigrate(&model.SocialAccount{})
}

func (r *AccountRepository) Upsert(ctx context.Context, account *model.SocialAccount) (*model.SocialAccount, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_name", "display_name", "remote_id", "access_token", "active", "updated_at"}),
	}).Create(account).Error
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) Get(ctx context.Context, userID, platform string) (*model.SocialAccount, error) {
	var acc model.SocialAccount
	err := r.db.WithContext(ctx).Where("user_id = ? AND platform = ?", userID, platform).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *AccountRepository) List(ctx context.Context, userID string) ([]*model.SocialAccount, error) {
	list := make([]*model.SocialAccount, 0)
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("platform").Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *AccountRepository) UpdateDisplayName(ctx context.Context, userID, platform, displayName string) (*model.SocialAccount, error) {
	res := r.db.WithContext(ctx).Model(&model.SocialAccount{}).
		Where("user_id = ? AND platform = ?", userID, platform).
		Updates(map[string]interface{}{"display_name": displayName, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrAccountNotFound
	}
	return r.Get(ctx, userID, platform)
}
