// Package logging 建立 zap logger 以及 echo 的請求日誌中介層
package logging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader 回應中帶回的請求編號
const RequestIDHeader = echo.HeaderXRequestID

// New 依等級與格式（json / console）建立 logger
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	var cfg zap.Config
	switch format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

var newRequestID = uuid.NewString

const errorContextKey = "logging_error"

// RecordError 讓已自行寫出回應的 handler 把錯誤交給 RequestLogger 記錄
func RecordError(c echo.Context, err error) {
	c.Set(errorContextKey, err)
}

// RequestLogger 每個請求寫一行日誌；沿用用戶端送來的 X-Request-ID，否則產生新的 uuid
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			id := req.Header.Get(RequestIDHeader)
			if id == "" {
				id = newRequestID()
			}
			c.Response().Header().Set(RequestIDHeader, id)

			err := next(c)
			if err != nil {
				// 讓 echo 的 HTTPErrorHandler 先寫出回應，才能記錄實際狀態碼
				c.Error(err)
			} else if recorded, ok := c.Get(errorContextKey).(error); ok {
				err = recorded
			}

			fields := []zap.Field{
				zap.String("request_id", id),
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			status := c.Response().Status
			switch {
			case status >= 500:
				logger.Error("request", append(fields, zap.Error(err))...)
			case status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
			return nil
		}
	}
}
