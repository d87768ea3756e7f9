package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, time.Second, cfg.AutosaveDebounce)
	assert.Equal(t, 50, cfg.HistoryDepth)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Production())
}

func TestLoad_PostgresNeedsURL(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "memory")

	t.Setenv("AUTOSAVE_DEBOUNCE", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "AUTOSAVE_DEBOUNCE")

	t.Setenv("AUTOSAVE_DEBOUNCE", "")
	t.Setenv("HISTORY_DEPTH", "lots")
	_, err = Load()
	assert.ErrorContains(t, err, "HISTORY_DEPTH")

	t.Setenv("HISTORY_DEPTH", "")
	t.Setenv("STORE_BACKEND", "mongo")
	_, err = Load()
	assert.ErrorContains(t, err, "mongo")
}

func TestLoad_DotEnvInDevelopment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STORE_BACKEND=sqlite\nALLOWED_ORIGINS=https://a.example, https://b.example\n"), 0o600))

	t.Setenv("APP_ENV", "development")
	// godotenv never overrides variables that are already set
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	os.Unsetenv("STORE_BACKEND")
	os.Unsetenv("ALLOWED_ORIGINS")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
