// File: internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"key-custody/internal/api"
	"key-custody/internal/apperr"
	"key-custody/internal/logging"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindConflict:           http.StatusConflict,
	apperr.KindReferential:        http.StatusUnprocessableEntity,
	apperr.KindInvariantViolation: http.StatusConflict,
	apperr.KindValidation:         http.StatusBadRequest,
	apperr.KindUnauthenticated:    http.StatusUnauthorized,
	apperr.KindUnauthorized:       http.StatusForbidden,
	apperr.KindInfrastructure:     http.StatusServiceUnavailable,
}

// StatusOf 依錯誤種類決定 HTTP 狀態碼
func StatusOf(err error) int {
	if s, ok := statusByKind[apperr.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WriteError 把核心層錯誤寫成 JSON。基礎設施錯誤只回傳通用訊息，
// 細節交給 logging.RequestLogger 寫進日誌
func WriteError(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	status := StatusOf(err)
	msg := err.Error()

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Msg != "" && kind != apperr.KindInfrastructure {
		msg = ae.Msg
	}
	if kind == apperr.KindInfrastructure {
		logging.RecordError(c, err)
		msg = "service temporarily unavailable, retry later"
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, api.ErrorResponse{Message: msg, Kind: kind.String()})
}

// Bind 綁定請求內容（JSON 或表單）後驗證；失敗時已寫出 400，回傳 false
func Bind(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, api.ErrorResponse{Message: "invalid request body", Kind: apperr.KindValidation.String()})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, api.ErrorResponse{Message: err.Error(), Kind: apperr.KindValidation.String()})
	}
	return true, nil
}

// Validator 把 go-playground/validator 接到 echo
// swagger:ignore
type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validator: validator.New()}
}

// Validate calls the underlying validator
func (cv *Validator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
