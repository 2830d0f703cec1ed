package dto

import "crosspost/domain/model"

// ReconcileRequest carries the client's offline queue in enqueue order.
type ReconcileRequest struct {
	Entries []model.OfflineActionEntry `json:"entries"`
}

type ConnectAccountRequest struct {
	Platform    string `json:"platform"     binding:"required"`
	AuthToken   string `json:"auth_token"   binding:"required"`
	AccountName string `json:"account_name" binding:"required"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}
