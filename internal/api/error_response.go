package api

// swagger:model api.ErrorResponse
type ErrorResponse struct {
	// message 錯誤描述
	Message string `json:"message" example:"key \"K1\" is already checked out"`
	// kind 錯誤種類，例如 conflict、validation_error
	Kind string `json:"kind,omitempty" example:"conflict"`
}
