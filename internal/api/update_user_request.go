// File: internal/api/update_user_request.go
package api

// UpdateUserRequest 整筆覆寫；display_name / email 省略即清除
// swagger:model api.UpdateUserRequest
type UpdateUserRequest struct {
	DisplayName *string `json:"display_name" form:"display_name" example:"Alice"`
	Email       *string `json:"email" form:"email" validate:"omitempty,email" example:"alice@example.com"`
	CanLogin    *bool   `json:"can_login" form:"can_login" validate:"required" example:"true"`
	Admin       *bool   `json:"admin" form:"admin" validate:"required" example:"false"`
}

// swagger:model api.SetPasswordRequest
type SetPasswordRequest struct {
	Password string `json:"password" form:"password" validate:"required,max=72" example:"NewSecret456!"`
}
