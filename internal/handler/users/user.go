package users

import (
	"context"
	"net/http"

	"key-custody/internal/api"
	"key-custody/internal/apperr"
	"key-custody/internal/handler"
	"key-custody/internal/middleware"
	"key-custody/internal/model"
	"key-custody/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// Identities 是使用者 handler 需要的 identity store 操作
type Identities interface {
	Get(ctx context.Context, username string) (*model.User, error)
	GetAll(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, in service.NewUser) (*model.User, error)
	Update(ctx context.Context, username string, upd service.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, username string) error
	SetPassword(ctx context.Context, username, plaintext string) error
	ChangeOwnPassword(ctx context.Context, username, oldPlaintext, newPlaintext string) error
}

// @Summary     List users
// @Tags        users
// @Produce     json
// @Success     200 {array}  api.UserResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     403 {object} api.ErrorResponse
// @Failure     503 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users [get]
func ListUsersHandler(s Identities) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := s.GetAll(c.Request().Context())
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, lo.Map(users, func(u model.User, _ int) api.UserResponse {
			return api.NewUserResponse(u)
		}))
	}
}

// @Summary     Create a new user
// @Description 建立使用者；未提供密碼的帳號無法登入，can_login 預設為 true
// @Tags        users
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       request body     api.CreateUserRequest true "新使用者"
// @Success     201     {object} api.UserResponse
// @Failure     400     {object} api.ErrorResponse
// @Failure     409     {object} api.ErrorResponse
// @Failure     503     {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users [post]
func CreateUserHandler(s Identities) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.CreateUserRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}

		user, err := s.Create(c.Request().Context(), service.NewUser{
			Username:    req.Username,
			DisplayName: req.DisplayName,
			Email:       req.Email,
			Password:    req.Password,
			CanLogin:    lo.FromPtrOr(req.CanLogin, true),
			Admin:       req.Admin,
		})
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusCreated, api.NewUserResponse(*user))
	}
}

// @Summary     Get a user by username
// @Tags        users
// @Produce     json
// @Param       username path     string true "使用者名稱"
// @Success     200      {object} api.UserResponse
// @Failure     404      {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/{username} [get]
func GetUserHandler(s Identities) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.Get(c.Request().Context(), c.Param("username"))
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, api.NewUserResponse(*user))
	}
}

// @Summary     Update a user
// @Description 覆寫 username 以外的屬性；不得讓系統失去最後一位可登入的管理員
// @Tags        users
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       username path     string                true "使用者名稱"
// @Param       request  body     api.UpdateUserRequest true "新屬性"
// @Success     200      {object} api.UserResponse
// @Failure     400      {object} api.ErrorResponse
// @Failure     404      {object} api.ErrorResponse
// @Failure     409      {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/{username} [put]
func UpdateUserHandler(s Identities) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.UpdateUserRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}

		user, err := s.Update(c.Request().Context(), c.Param("username"), service.UserUpdate{
			DisplayName: req.DisplayName,
			Email:       req.Email,
			CanLogin:    *req.CanLogin,
			Admin:       *req.Admin,
		})
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, api.NewUserResponse(*user))
	}
}

// @Summary     Delete a user
// @Description 仍持有鑰匙或為最後一位可登入管理員的使用者無法刪除
// @Tags        users
// @Param       username path string true "使用者名稱"
// @Success     204
// @Failure     404 {object} api.ErrorResponse
// @Failure     409 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/{username} [delete]
func DeleteUserHandler(s Identities) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.Delete(c.Request().Context(), c.Param("username")); err != nil {
			return handler.WriteError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// @Summary     Set a user's password
// @Tags        users
// @Accept      json,x-www-form-urlencoded
// @Param       username path string                 true "使用者名稱"
// @Param       request  body api.SetPasswordRequest true "新密碼"
// @Success     204
// @Failure     400 {object} api.ErrorResponse
// @Failure     404 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/{username}/password [put]
func SetPasswordHandler(s Identities) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.SetPasswordRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}
		if err := s.SetPassword(c.Request().Context(), c.Param("username"), req.Password); err != nil {
			return handler.WriteError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// @Summary     Get current user info
// @Tags        users
// @Produce     json
// @Success     200 {object} api.UserResponse
// @Failure     401 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/me [get]
func GetMeHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		user := middleware.CurrentUser(c)
		if user == nil {
			return handler.WriteError(c, apperr.New(apperr.KindUnauthenticated, "no valid session"))
		}
		return c.JSON(http.StatusOK, api.NewUserResponse(*user))
	}
}

// @Summary     Change own password
// @Description 必須提供目前的密碼
// @Tags        users
// @Accept      json,x-www-form-urlencoded
// @Param       request body api.UpdateMyPasswordRequest true "舊密碼與新密碼"
// @Success     204
// @Failure     400 {object} api.ErrorResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     403 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/me/password [patch]
func UpdatePasswordMeHandler(s Identities) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := middleware.CurrentUser(c)
		if user == nil {
			return handler.WriteError(c, apperr.New(apperr.KindUnauthenticated, "no valid session"))
		}

		var req api.UpdateMyPasswordRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}
		if err := s.ChangeOwnPassword(c.Request().Context(), user.Username, req.OldPassword, req.NewPassword); err != nil {
			return handler.WriteError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
