// File: internal/handler/ping.go
package handler

import (
	"net/http"

	"key-custody/internal/api"
	"key-custody/internal/cache"
	"key-custody/internal/database"

	"github.com/labstack/echo/v4"
)

// PingResponse 健康檢查回應模型
// swagger:model PingResponse
type PingResponse struct {
	// 回應訊息
	Message string `json:"message" example:"pong"`
}

// PingHandler 健康檢查（需通過認證）
// @Summary     Health Check
// @Description 回傳 pong，並檢查資料庫與 session 儲存是否正常
// @Tags        health
// @Produce     json
// @Success     200 {object} PingResponse
// @Failure     503 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /ping [get]
func PingHandler(db database.DB, cch cache.Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := db.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Message: "database unhealthy"})
		}
		if err := cch.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Message: "cache unhealthy"})
		}
		return c.JSON(http.StatusOK, PingResponse{Message: "pong"})
	}
}
