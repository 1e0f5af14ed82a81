package auth

import (
	"net/http"

	"key-custody/internal/handler"
	"key-custody/internal/middleware"

	"github.com/labstack/echo/v4"
)

// LogoutHandler 撤銷目前的 session
// @Summary     登出
// @Tags        auth
// @Success     204
// @Failure     401 {object} api.ErrorResponse
// @Failure     503 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /auth/logout [post]
func LogoutHandler(s Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.Purge(c.Request().Context(), middleware.Token(c)); err != nil {
			return handler.WriteError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
