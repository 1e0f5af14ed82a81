// File: internal/router/router.go
package router

import (
	"github.com/labstack/echo/v4"

	"key-custody/internal/cache"
	"key-custody/internal/database"
	"key-custody/internal/handler"
	"key-custody/internal/handler/assignments"
	"key-custody/internal/handler/auth"
	"key-custody/internal/handler/keys"
	"key-custody/internal/handler/users"
	"key-custody/internal/middleware"
)

// Sessions 同時供 middleware 驗證與登入登出使用
type Sessions interface {
	middleware.Sessions
	auth.Sessions
}

// Ledger 鑰匙與保管紀錄
type Ledger interface {
	keys.Keys
	assignments.Ledger
}

// Deps 路由需要的所有元件
type Deps struct {
	DB         database.DB
	Cache      cache.Cache
	Sessions   Sessions
	Auth       auth.Authenticator
	Identities users.Identities
	Ledger     Ledger
}

// Setup 註冊所有路由與中介層
func Setup(e *echo.Echo, d Deps) {
	api := e.Group("/api")
	requireAuth := middleware.RequireAuth(d.Sessions)
	requireAdmin := middleware.RequireAdmin(d.Sessions)

	// 健康檢查（需登入）
	api.GET("/ping", handler.PingHandler(d.DB, d.Cache), requireAuth)

	// 登入、登出
	api.POST("/auth/login", auth.LoginHandler(d.Auth, d.Sessions))
	api.POST("/auth/logout", auth.LogoutHandler(d.Sessions), requireAuth)

	// 當前使用者
	api.GET("/users/me", users.GetMeHandler(), requireAuth)
	api.PATCH("/users/me/password", users.UpdatePasswordMeHandler(d.Identities), requireAuth)

	// 管理員專屬 Users CRUD
	api.GET("/users", users.ListUsersHandler(d.Identities), requireAdmin)
	api.POST("/users", users.CreateUserHandler(d.Identities), requireAdmin)
	api.GET("/users/:username", users.GetUserHandler(d.Identities), requireAdmin)
	api.PUT("/users/:username", users.UpdateUserHandler(d.Identities), requireAdmin)
	api.DELETE("/users/:username", users.DeleteUserHandler(d.Identities), requireAdmin)
	api.PUT("/users/:username/password", users.SetPasswordHandler(d.Identities), requireAdmin)

	// 鑰匙：登入即可查詢，異動需管理員
	api.GET("/keys", keys.ListKeysHandler(d.Ledger), requireAuth)
	api.GET("/keys/:name", keys.GetKeyHandler(d.Ledger), requireAuth)
	api.POST("/keys", keys.CreateKeyHandler(d.Ledger), requireAdmin)
	api.PUT("/keys/:name", keys.UpdateKeyHandler(d.Ledger), requireAdmin)
	api.DELETE("/keys/:name", keys.DeleteKeyHandler(d.Ledger), requireAdmin)

	// 保管紀錄
	api.GET("/assignments", assignments.ListAssignmentsHandler(d.Ledger), requireAuth)
	api.GET("/assignments/:id", assignments.GetAssignmentHandler(d.Ledger), requireAuth)
	api.POST("/assignments", assignments.CheckoutHandler(d.Ledger), requireAdmin)
	api.POST("/assignments/:id/checkin", assignments.CheckinHandler(d.Ledger), requireAdmin)
	api.PATCH("/assignments/:id", assignments.UpdateAssignmentHandler(d.Ledger), requireAdmin)
	api.DELETE("/assignments/:id", assignments.DeleteAssignmentHandler(d.Ledger), requireAdmin)
}
