package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shelfmark/shelfmark/internal/app"
	"github.com/shelfmark/shelfmark/internal/auth"
	"github.com/shelfmark/shelfmark/internal/books"
	"github.com/shelfmark/shelfmark/internal/isbn"
	"github.com/shelfmark/shelfmark/internal/observability"
	"github.com/shelfmark/shelfmark/internal/platform/cache"
	"github.com/shelfmark/shelfmark/internal/platform/db"
	"github.com/shelfmark/shelfmark/internal/shared"
	"github.com/shelfmark/shelfmark/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// The ISBN cache degrades to pass-through when redis is unreachable.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, isbn cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, cfg.SessionTTL)
	authHandler := auth.NewHandler(logger, authService, templates, csrfManager, metrics, cfg.IsProduction())

	isbnClient := isbn.NewClient(cfg.ISBNLookupURL)
	isbnCache := isbn.NewCache(redisClient, cfg.ISBNCacheTTL)
	isbnService := isbn.NewService(isbnClient, isbnCache)

	booksRepo := books.NewRepository(dbpool)
	booksService := books.NewService(booksRepo)
	booksHandler := books.NewHandler(logger, booksService, isbnService, templates, csrfManager)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Templates:    templates,
		AuthService:  authService,
		CSRFManager:  csrfManager,
		AuthHandler:  authHandler,
		BooksHandler: booksHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
