package api

import (
	"time"

	"key-custody/internal/model"
)

// swagger:model api.CreateKeyRequest
type CreateKeyRequest struct {
	Name        string  `json:"name" form:"name" validate:"required,max=64" example:"K1"`
	Description *string `json:"description" form:"description" example:"front door"`
	// 預設 true
	Active *bool `json:"active" form:"active" example:"true"`
}

// UpdateKeyRequest 部分更新；省略的欄位維持原值
// swagger:model api.UpdateKeyRequest
type UpdateKeyRequest struct {
	Name        *string `json:"name" form:"name" validate:"omitempty,min=1,max=64" example:"K1-front"`
	Description *string `json:"description" form:"description" example:"front door"`
	Active      *bool   `json:"active" form:"active" example:"false"`
}

// swagger:model api.KeyResponse
type KeyResponse struct {
	Name        string    `json:"name" example:"K1"`
	Description *string   `json:"description,omitempty" example:"front door"`
	Active      bool      `json:"active" example:"true"`
	CreatedAt   time.Time `json:"created_at" example:"2024-01-10T09:00:00Z"`
}

func NewKeyResponse(k model.Key) KeyResponse {
	return KeyResponse{
		Name:        k.Name,
		Description: k.Description,
		Active:      k.Active,
		CreatedAt:   k.CreatedAt,
	}
}
