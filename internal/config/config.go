package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ストアの種類
const (
	StoreBadger   = "badger"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数（および任意の設定ファイル）から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string

	// Store
	StoreDriver   string
	BadgerDir     string
	DatabaseURL   string
	StoragePrefix string

	// Logging
	LogLevel slog.Level

	// CORS
	CORSAllowedOrigin string

	// Scan
	SecureContext bool

	// Import
	ImportMaxSize      int64
	ImportFetchTimeout time.Duration

	// Rate Limit（1分あたりの回数）
	RateLimitScan   int
	RateLimitImport int

	// Offline shell
	ShellCacheName string
}

// defaults は設定キーと既定値。
var defaults = map[string]any{
	"server_port":          "8080",
	"store_driver":         StoreBadger,
	"badger_dir":           "./data/badger",
	"database_url":         "",
	"storage_prefix":       "packman",
	"log_level":            "info",
	"cors_allowed_origin":  "http://localhost:8080",
	"secure_context":       false,
	"import_max_size":      int64(10485760),
	"import_fetch_timeout": 10 * time.Second,
	"rate_limit_scan":      600,
	"rate_limit_import":    10,
	"shell_cache_name":     "packman-shell-v1",
}

// Load は環境変数からConfigを読み込む。
// PACKMAN_CONFIGが設定されている場合はそのファイルを先に読み、環境変数で上書きする。
// 設定値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if path := v.GetString("packman_config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ServerPort:         v.GetString("server_port"),
		StoreDriver:        strings.ToLower(strings.TrimSpace(v.GetString("store_driver"))),
		BadgerDir:          v.GetString("badger_dir"),
		DatabaseURL:        v.GetString("database_url"),
		StoragePrefix:      v.GetString("storage_prefix"),
		CORSAllowedOrigin:  v.GetString("cors_allowed_origin"),
		SecureContext:      v.GetBool("secure_context"),
		ImportMaxSize:      positiveInt64(v.GetInt64("import_max_size"), defaults["import_max_size"].(int64)),
		ImportFetchTimeout: positiveDuration(v.GetDuration("import_fetch_timeout"), defaults["import_fetch_timeout"].(time.Duration)),
		RateLimitScan:      positiveInt(v.GetInt("rate_limit_scan"), defaults["rate_limit_scan"].(int)),
		RateLimitImport:    positiveInt(v.GetInt("rate_limit_import"), defaults["rate_limit_import"].(int)),
		ShellCacheName:     v.GetString("shell_cache_name"),
	}

	level, err := ParseLogLevel(v.GetString("log_level"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLogLevel はdebug、info、warn、errorのいずれかをslog.Levelに変換する。
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func (c *Config) validate() error {
	var problems []string

	switch c.StoreDriver {
	case StoreBadger:
		if c.BadgerDir == "" {
			problems = append(problems, "BADGER_DIR must be set when STORE_DRIVER=badger")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	case StoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if strings.TrimSpace(c.StoragePrefix) == "" {
		problems = append(problems, "STORAGE_PREFIX must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %v", problems)
	}
	return nil
}

func positiveInt(v, defaultVal int) int {
	if v <= 0 {
		return defaultVal
	}
	return v
}

func positiveInt64(v, defaultVal int64) int64 {
	if v <= 0 {
		return defaultVal
	}
	return v
}

func positiveDuration(v, defaultVal time.Duration) time.Duration {
	if v <= 0 {
		return defaultVal
	}
	return v
}
