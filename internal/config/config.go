// Package config reads service settings from the environment. Outside
// production a .env file is loaded first; production injects variables
// through its infrastructure.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StoreBackend string

const (
	StorePostgres StoreBackend = "postgres"
	StoreSQLite   StoreBackend = "sqlite"
	StoreMemory   StoreBackend = "memory"
)

type Config struct {
	Env  string
	Port string

	StoreBackend StoreBackend
	DatabaseURL  string
	SQLitePath   string

	RedisAddr string
	RedisDB   int
	CacheTTL  time.Duration

	StorageType string
	UploadDir   string
	BaseURL     string
	AWSBucket   string
	AWSRegion   string

	AllowedOrigins []string
	TemplatesPath  string
	LogLevel       string

	AutosaveDebounce time.Duration
	HistoryDepth     int
}

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres store")

// Load reads the environment. envFiles are passed to godotenv; with none
// it looks for ./.env.
func Load(envFiles ...string) (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// a missing .env is fine in dev
		_ = godotenv.Load(envFiles...)
	}

	cfg := Config{
		Env:            getenv("APP_ENV", "development"),
		Port:           getenv("PORT", "8083"),
		StoreBackend:   StoreBackend(getenv("STORE_BACKEND", string(StorePostgres))),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getenv("SQLITE_PATH", "./data/editor.sqlite"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		StorageType:    getenv("STORAGE_TYPE", "local"),
		UploadDir:      getenv("UPLOAD_DIR", "./uploads"),
		BaseURL:        getenv("BASE_URL", "http://localhost:8083"),
		AWSBucket:      os.Getenv("AWS_BUCKET"),
		AWSRegion:      os.Getenv("AWS_REGION"),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "http://localhost:5173")),
		TemplatesPath:  os.Getenv("TEMPLATES_PATH"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.AutosaveDebounce, err = durationEnv("AUTOSAVE_DEBOUNCE", time.Second); err != nil {
		return cfg, err
	}
	if cfg.HistoryDepth, err = intEnv("HISTORY_DEPTH", 50); err != nil {
		return cfg, err
	}

	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, ErrMissingDatabaseURL
		}
	case StoreSQLite, StoreMemory:
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q (supported: postgres, sqlite, memory)", cfg.StoreBackend)
	}
	return cfg, nil
}

func (c Config) Production() bool { return c.Env == "production" }

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
