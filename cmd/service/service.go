// @title        Key Custody API
// @version      1.0
// @description  實體鑰匙保管系統：使用者、鑰匙與借出／歸還紀錄
// @host         localhost:8080
// @BasePath     /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"key-custody/internal/cache"
	"key-custody/internal/config"
	"key-custody/internal/database"
	"key-custody/internal/handler"
	"key-custody/internal/logging"
	"key-custody/internal/metrics"
	"key-custody/internal/router"
	"key-custody/internal/service"
	"key-custody/internal/worker"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "key-custody/docs" // 引入 swag 產出的 docs

	echoSwagger "github.com/swaggo/echo-swagger"
)

const shutdownTimeout = 10 * time.Second

var (
	loadConfig      = config.Load
	newLogger       = logging.New
	newPgxPool      = database.NewPgxPool
	newRedisClient  = cache.NewRedisClient
	runMigrationsFn = database.RunMigrations
	runBootstrap    = func(ctx context.Context, b *service.Bootstrap) (bool, error) { return b.Run(ctx) }
	startServer     = func(e *echo.Echo, addr string) error { return e.Start(addr) }
	newWorkerPool   = worker.NewPool
	exitFunc        = os.Exit
)

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("設定錯誤: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("建立 logger 失敗: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := newPgxPool(ctx, cfg.DatabaseURL, cfg.StorageTimeout)
	if err != nil {
		return fmt.Errorf("DB 連線失敗: %w", err)
	}
	defer db.Close()

	rdb, err := newRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.StorageTimeout)
	if err != nil {
		return fmt.Errorf("Redis 連線失敗: %w", err)
	}
	defer rdb.Close()

	if err := runMigrationsFn(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("Migration 執行失敗: %w", err)
	}

	wp := newWorkerPool(cfg.WorkerCount)
	defer wp.Stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("註冊 metrics 失敗: %w", err)
	}

	hasher, err := service.NewPasswordHasher(cfg.BcryptCost, wp)
	if err != nil {
		return err
	}
	sessions, err := service.NewSessionAuthority(rdb, db, []byte(cfg.SessionSecret), cfg.SessionTTL, cfg.StorageTimeout)
	if err != nil {
		return err
	}
	identities := service.NewIdentityService(db, hasher, cfg.StorageTimeout, logger)
	ledger := service.NewCustodyLedger(db, cfg.StorageTimeout, logger, m)
	authn := service.NewAuthenticator(db, hasher, cfg.StorageTimeout, logger, m)

	created, err := runBootstrap(ctx, service.NewBootstrap(db, hasher, cfg.AdminPassword, cfg.StorageTimeout, logger, m))
	if err != nil {
		return fmt.Errorf("建立初始管理員失敗: %w", err)
	}
	logger.Info("startup checks complete", zap.Bool("admin_created", created))

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(logging.RequestLogger(logger))
	e.Use(middleware.Recover())

	router.Setup(e, router.Deps{
		DB:         db,
		Cache:      rdb,
		Sessions:   sessions,
		Auth:       authn,
		Identities: identities,
		Ledger:     ledger,
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	errCh := make(chan error, 1)
	go func() { errCh <- startServer(e, cfg.HTTPAddr) }()
	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		log.Print(err)
		exitFunc(1)
	}
}
