// File: internal/handler/auth/login.go
package auth

import (
	"context"
	"errors"
	"net/http"

	"key-custody/internal/api"
	"key-custody/internal/apperr"
	"key-custody/internal/handler"
	"key-custody/internal/model"
	"key-custody/internal/service"

	"github.com/labstack/echo/v4"
)

// Authenticator 驗證帳號密碼
type Authenticator interface {
	Authenticate(ctx context.Context, username, plaintext string) (*model.User, error)
}

// Sessions 發行與撤銷 session
type Sessions interface {
	Login(ctx context.Context, username string) (*service.Session, error)
	Purge(ctx context.Context, token string) error
}

// LoginHandler 使用 Username/Password 驗證並回傳 session token
// @Summary     登入使用者
// @Description 使用 Username 與 Password 進行驗證，回傳 session token 與到期時間；每次使用 token 都會延長期限
// @Tags        auth
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       request body     api.LoginRequest true "帳號密碼"
// @Success     200     {object} api.LoginResponse
// @Failure     400     {object} api.ErrorResponse
// @Failure     401     {object} api.ErrorResponse
// @Failure     503     {object} api.ErrorResponse
// @Router      /auth/login [post]
func LoginHandler(a Authenticator, s Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.LoginRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}

		ctx := c.Request().Context()
		user, err := a.Authenticate(ctx, req.Username, req.Password)
		if err != nil {
			// 帳號不存在、密碼錯誤與停用帳號回傳相同訊息
			if errors.Is(err, service.ErrInvalidCredentials) {
				return c.JSON(http.StatusUnauthorized, api.ErrorResponse{
					Message: service.ErrInvalidCredentials.Msg,
					Kind:    apperr.KindUnauthenticated.String(),
				})
			}
			return handler.WriteError(c, err)
		}

		sess, err := s.Login(ctx, user.Username)
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, api.LoginResponse{
			AccessToken: sess.Token,
			TokenType:   "Bearer",
			ExpiresAt:   sess.ExpiresAt,
		})
	}
}
