package logging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn", "console")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", "json")
	require.Error(t, err)
	_, err = New("info", "xml")
	require.Error(t, err)
}

func TestRequestLogger(t *testing.T) {
	t.Cleanup(func() { newRequestID = uuid.NewString })
	newRequestID = func() string { return "req-1" }

	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/bad", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "nope") })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/bad", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "client-id", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.EqualValues(t, http.StatusNoContent, entries[0].ContextMap()["status"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "client-id", entries[1].ContextMap()["request_id"])
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(t, "/boom", entries[2].ContextMap()["path"])
}

func TestRequestLoggerUsesRecordedError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/handled", func(c echo.Context) error {
		RecordError(c, errors.New("redis: connection refused"))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "retry later"})
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/handled", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	require.Equal(t, "redis: connection refused", entries[0].ContextMap()["error"])
}
