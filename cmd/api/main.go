// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reel-editor/internal/config"
	"reel-editor/internal/handler"
	xlog "reel-editor/internal/log"
	"reel-editor/internal/service"
	"reel-editor/internal/storage"
	"reel-editor/internal/templates"
)

func main() {
	cfg, err := config.Load()
	xlog.Configure(xlog.Config{Level: cfg.LogLevel})
	logger := xlog.WithComponent("api")
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// ── Persistence ───────────────────────────────────────────────────────────
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", string(cfg.StoreBackend)).Msg("failed to open project store")
	}
	defer repo.Close()
	logger.Info().Str("backend", string(cfg.StoreBackend)).Msg("project store ready")

	var cache *service.Cache
	if cfg.RedisAddr != "" {
		cache, err = service.NewRedisCache(ctx, service.RedisConfig{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
			TTL:  cfg.CacheTTL,
		}, xlog.WithComponent("cache"))
		if err != nil {
			// the cache is optional; run against the store alone
			logger.Warn().Err(err).Msg("redis unavailable, project cache disabled")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	svcLogger := xlog.WithComponent("project_service")
	projects := service.NewProjectService(repo, service.Options{Cache: cache, Logger: &svcLogger})

	// ── Storage (swappable: LocalStorage today, S3 tomorrow) ──────────────────
	fileStorage, err := openStorage(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up upload storage")
	}

	catalog, err := templates.Load(cfg.TemplatesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load template catalog")
	}
	logger.Info().Int("templates", catalog.Len()).Msg("template catalog loaded")

	// ── Router ────────────────────────────────────────────────────────────────
	handlerLogger := xlog.WithComponent("handler")
	editorHandler := handler.NewEditorHandler(projects, fileStorage, catalog, &handlerLogger)

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := projects.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	editorHandler.Register(r.PathPrefix("/api/v1").Subrouter())

	// S3 serves files directly in production; this route only serves local uploads.
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))),
	)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		// X-User-ID is injected by the API gateway in production
		handlers.AllowedHeaders([]string{"Content-Type", handler.UserHeader, "Authorization"}),
	)
	accessLog := xlog.WithComponent("http").Level(zerolog.InfoLevel)
	root := handlers.RecoveryHandler(handlers.PrintRecoveryStack(!cfg.Production()))(
		handlers.CombinedLoggingHandler(accessLog, cors(r)),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // uploads
		IdleTimeout:  60 * time.Second,
	}

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	// In-flight saves finish before the process exits.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("editor service running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return
	}
	logger.Info().Msg("server stopped cleanly")
}

func openRepository(ctx context.Context, cfg config.Config) (service.Repository, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		return service.OpenSQLite(ctx, cfg.SQLitePath)
	case config.StoreMemory:
		return service.NewMemoryRepository(), nil
	default:
		return service.OpenPostgres(ctx, cfg.DatabaseURL)
	}
}

func openStorage(cfg config.Config) (storage.Storage, error) {
	if cfg.StorageType == "s3" {
		return storage.NewS3Storage(cfg.AWSBucket, cfg.AWSRegion), nil
	}
	storageLogger := xlog.WithComponent("storage")
	return storage.NewLocalStorage(cfg.UploadDir, cfg.BaseURL, &storageLogger)
}
