package api

import (
	"time"

	"key-custody/internal/model"
)

// swagger:model api.UserResponse
type UserResponse struct {
	ID          int64     `json:"id" example:"1"`
	Username    string    `json:"username" example:"alice"`
	DisplayName *string   `json:"display_name,omitempty" example:"Alice"`
	Email       *string   `json:"email,omitempty" example:"alice@example.com"`
	CanLogin    bool      `json:"can_login" example:"true"`
	Admin       bool      `json:"admin" example:"false"`
	HasPassword bool      `json:"has_password" example:"true"`
	CreatedAt   time.Time `json:"created_at" example:"2024-01-10T09:00:00Z"`
}

// NewUserResponse 不輸出密碼雜湊
func NewUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		CanLogin:    u.CanLogin,
		Admin:       u.Admin,
		HasPassword: u.HasPassword(),
		CreatedAt:   u.CreatedAt,
	}
}
