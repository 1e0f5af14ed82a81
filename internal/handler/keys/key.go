// File: internal/handler/keys/key.go
package keys

import (
	"context"
	"net/http"

	"key-custody/internal/api"
	"key-custody/internal/handler"
	"key-custody/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// Keys 是鑰匙 handler 需要的 ledger 操作
type Keys interface {
	CreateKey(ctx context.Context, k model.Key) (*model.Key, error)
	GetKey(ctx context.Context, name string) (*model.Key, error)
	ListKeys(ctx context.Context) ([]model.Key, error)
	UpdateKey(ctx context.Context, name string, patch model.KeyPatch) (*model.Key, error)
	DeleteKey(ctx context.Context, name string) error
}

// @Summary     List keys
// @Tags        keys
// @Produce     json
// @Success     200 {array}  api.KeyResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     503 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /keys [get]
func ListKeysHandler(s Keys) echo.HandlerFunc {
	return func(c echo.Context) error {
		keys, err := s.ListKeys(c.Request().Context())
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, lo.Map(keys, func(k model.Key, _ int) api.KeyResponse {
			return api.NewKeyResponse(k)
		}))
	}
}

// @Summary     Get a key by name
// @Tags        keys
// @Produce     json
// @Param       name path     string true "鑰匙名稱"
// @Success     200  {object} api.KeyResponse
// @Failure     404  {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /keys/{name} [get]
func GetKeyHandler(s Keys) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, err := s.GetKey(c.Request().Context(), c.Param("name"))
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, api.NewKeyResponse(*k))
	}
}

// @Summary     Register a key
// @Tags        keys
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       request body     api.CreateKeyRequest true "新鑰匙"
// @Success     201     {object} api.KeyResponse
// @Failure     400     {object} api.ErrorResponse
// @Failure     409     {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /keys [post]
func CreateKeyHandler(s Keys) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.CreateKeyRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}
		k, err := s.CreateKey(c.Request().Context(), model.Key{
			Name:        req.Name,
			Description: req.Description,
			Active:      lo.FromPtrOr(req.Active, true),
		})
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusCreated, api.NewKeyResponse(*k))
	}
}

// @Summary     Update a key
// @Description 部分更新；改名時既有的保管紀錄會跟著更新
// @Tags        keys
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       name    path     string               true "鑰匙名稱"
// @Param       request body     api.UpdateKeyRequest true "要修改的欄位"
// @Success     200     {object} api.KeyResponse
// @Failure     400     {object} api.ErrorResponse
// @Failure     404     {object} api.ErrorResponse
// @Failure     409     {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /keys/{name} [put]
func UpdateKeyHandler(s Keys) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.UpdateKeyRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}
		k, err := s.UpdateKey(c.Request().Context(), c.Param("name"), model.KeyPatch{
			Name:        req.Name,
			Description: req.Description,
			Active:      req.Active,
		})
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, api.NewKeyResponse(*k))
	}
}

// @Summary     Delete a key
// @Description 借出中的鑰匙不能刪除
// @Tags        keys
// @Param       name path string true "鑰匙名稱"
// @Success     204
// @Failure     404 {object} api.ErrorResponse
// @Failure     409 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /keys/{name} [delete]
func DeleteKeyHandler(s Keys) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.DeleteKey(c.Request().Context(), c.Param("name")); err != nil {
			return handler.WriteError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
