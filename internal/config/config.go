// Package config 讀取服務設定：預設值 → CONFIG_PATH 指定的 YAML 檔 → 環境變數
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 服務設定
type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	HTTPAddr       string
	WorkerCount    int
	BcryptCost     int
	SessionSecret  string
	SessionTTL     time.Duration
	StorageTimeout time.Duration
	AdminPassword  string
	LogLevel       string
	LogFormat      string
}

// 與 bcrypt.MinCost / bcrypt.MaxCost 相同
const (
	minBcryptCost = 4
	maxBcryptCost = 31

	minSessionSecretBytes = 32
)

var defaults = map[string]any{
	"redis_db":        0,
	"redis_password":  "",
	"http_addr":       ":8080",
	"worker_count":    4,
	"bcrypt_cost":     12,
	"session_ttl":     "12h",
	"storage_timeout": "5s",
	"admin_password":  "",
	"log_level":       "info",
	"log_format":      "json",
}

// 沒有預設值但仍要能從環境變數讀到的鍵
var required = []string{"database_url", "redis_addr", "session_secret"}

// Load 由環境變數（與選用的設定檔）建立 Config
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range required {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	if err := v.BindEnv("config_path"); err != nil {
		return nil, err
	}
	if path := v.GetString("config_path"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		DatabaseURL:    v.GetString("database_url"),
		RedisAddr:      v.GetString("redis_addr"),
		RedisPassword:  v.GetString("redis_password"),
		RedisDB:        v.GetInt("redis_db"),
		HTTPAddr:       v.GetString("http_addr"),
		WorkerCount:    v.GetInt("worker_count"),
		BcryptCost:     v.GetInt("bcrypt_cost"),
		SessionSecret:  v.GetString("session_secret"),
		SessionTTL:     v.GetDuration("session_ttl"),
		StorageTimeout: v.GetDuration("storage_timeout"),
		AdminPassword:  v.GetString("admin_password"),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
		LogFormat:      strings.ToLower(v.GetString("log_format")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 回傳所有不合法設定合併後的錯誤
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if len(c.SessionSecret) < minSessionSecretBytes {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretBytes))
	}
	if c.RedisDB < 0 {
		errs = append(errs, errors.New("REDIS_DB must not be negative"))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, errors.New("WORKER_COUNT must be positive"))
	}
	if c.BcryptCost < minBcryptCost || c.BcryptCost > maxBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", minBcryptCost, maxBcryptCost))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be a positive duration"))
	}
	if c.StorageTimeout <= 0 {
		errs = append(errs, errors.New("STORAGE_TIMEOUT must be a positive duration"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
