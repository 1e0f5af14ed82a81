package api

import "time"

// swagger:model api.LoginRequest
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required" example:"alice"`
	Password string `json:"password" form:"password" validate:"required" example:"Secret123!"`
}

// swagger:model api.LoginResponse
type LoginResponse struct {
	AccessToken string    `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string    `json:"token_type" example:"Bearer"`
	ExpiresAt   time.Time `json:"expires_at" example:"2024-01-10T21:00:00Z"`
}
