package middleware

import (
	"context"
	"strings"

	"key-custody/internal/apperr"
	"key-custody/internal/handler"
	"key-custody/internal/model"

	"github.com/labstack/echo/v4"
)

const (
	ContextUserKey  = "user"
	ContextTokenKey = "session_token"
)

// Sessions 是 middleware 需要的 session 操作，由 *service.SessionAuthority 實作
type Sessions interface {
	CurrentUser(ctx context.Context, token string) (*model.User, error)
	RequireAdmin(ctx context.Context, token string) (*model.User, error)
}

func extractToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", apperr.New(apperr.KindUnauthenticated, "missing token")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.New(apperr.KindUnauthenticated, "invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func guard(check func(ctx context.Context, token string) (*model.User, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := extractToken(c)
			if err != nil {
				return handler.WriteError(c, err)
			}
			u, err := check(c.Request().Context(), token)
			if err != nil {
				return handler.WriteError(c, err)
			}
			c.Set(ContextUserKey, u)
			c.Set(ContextTokenKey, token)
			return next(c)
		}
	}
}

// RequireAuth 需要有效的 session；每次請求都會延長 session
func RequireAuth(s Sessions) echo.MiddlewareFunc {
	return guard(s.CurrentUser)
}

// RequireAdmin 需要有效的 session，且使用者「此刻」仍是可登入的管理員
func RequireAdmin(s Sessions) echo.MiddlewareFunc {
	return guard(s.RequireAdmin)
}

// CurrentUser 取得 RequireAuth / RequireAdmin 放入的使用者
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(ContextUserKey).(*model.User)
	return u
}

// Token 取得目前請求的 session token
func Token(c echo.Context) string {
	t, _ := c.Get(ContextTokenKey).(string)
	return t
}
