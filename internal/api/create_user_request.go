package api

// swagger:model api.CreateUserRequest
type CreateUserRequest struct {
	Username    string  `json:"username" form:"username" validate:"required,max=64" example:"alice"`
	DisplayName *string `json:"display_name" form:"display_name" example:"Alice"`
	Email       *string `json:"email" form:"email" validate:"omitempty,email" example:"alice@example.com"`
	// 未提供密碼的使用者無法登入
	Password *string `json:"password" form:"password" validate:"omitempty,max=72" example:"Secret123!"`
	// 預設 true
	CanLogin *bool `json:"can_login" form:"can_login" example:"true"`
	Admin    bool  `json:"admin" form:"admin" example:"false"`
}
