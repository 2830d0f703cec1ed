package model

import "time"

// SocialAccount is a platform account connected by a user.
type SocialAccount struct {
	ID          uint      `json:"id"           gorm:"primaryKey;autoIncrement"`
	UserID      string    `json:"user_id"      gorm:"size:64;not null;uniqueIndex:idx_social_account_user_platform"`
	Platform    string    `json:"platform"     gorm:"size:32;not null;uniqueIndex:idx_social_account_user_platform"`
	AccountName string    `json:"account_name" gorm:"size:255;not null"`
	DisplayName string    `json:"display_name" gorm:"size:255"`
	RemoteID    string    `json:"remote_id"    gorm:"size:255"`
	AccessToken string    `json:"-"            gorm:"type:text"`
	Active      bool      `json:"active"       gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SocialAccount) TableName() string { return "social_accounts" }

// AccountIdentity is what a platform reports about the owner of a token.
type AccountIdentity struct {
	RemoteID string `json:"remote_id"`
	Name     string `json:"name"`
}
