package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mitienda/mitienda/internal/app"
	"github.com/mitienda/mitienda/internal/auth"
	"github.com/mitienda/mitienda/internal/cart"
	"github.com/mitienda/mitienda/internal/catalog"
	"github.com/mitienda/mitienda/internal/checkout"
	"github.com/mitienda/mitienda/internal/pages"
	"github.com/mitienda/mitienda/internal/reporting"
	"github.com/mitienda/mitienda/internal/shared"
	"github.com/mitienda/mitienda/internal/view"
	"github.com/mitienda/mitienda/jobs"
	"github.com/mitienda/mitienda/report"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "mitienda_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	ownerList := append([]string{cfg.OwnerEmail}, cfg.OwnerBCC...)
	notifier := jobs.NewNotifier(jobClient, cfg.StoreName, ownerList)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService, templates, csrfManager, cfg.StoreName)

	cartStore := cart.NewStore(redisClient, cfg.SessionTTL)
	cartService := cart.NewService(cartStore, catalogService)
	cartHandler := cart.NewHandler(logger, cartService, templates, csrfManager, cfg.StoreName)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, cartService, templates, sessionManager, csrfManager, cfg.StoreName)

	checkoutRepo := checkout.NewRepository(dbpool)
	checkoutService := checkout.NewService(logger, checkoutRepo, cartService, catalogService, notifier)
	checkoutHandler := checkout.NewHandler(
		logger,
		checkoutService,
		cartService,
		app.NewProfileAdapter(authService),
		templates,
		csrfManager,
		cfg.StoreName,
	)

	pagesRepo := pages.NewRepository(dbpool)
	pagesService := pages.NewService(logger, pagesRepo, notifier)
	pagesHandler := pages.NewHandler(logger, pagesService, templates, csrfManager, cfg.StoreName)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	reportingService := reporting.NewService(catalogService, checkoutService)
	reportingHandler := reporting.NewHandler(logger, reportingService, pdfClient, templates, csrfManager, cfg.StoreName)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthService:      authService,
		AuthHandler:      authHandler,
		CatalogHandler:   catalogHandler,
		CartHandler:      cartHandler,
		CheckoutHandler:  checkoutHandler,
		PagesHandler:     pagesHandler,
		ReportingHandler: reportingHandler,
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
