package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/qbo-connector/internal/api"
	"github.com/Checker-Finance/qbo-connector/internal/bootstrap"
	"github.com/Checker-Finance/qbo-connector/internal/quickbooks"
	"github.com/Checker-Finance/qbo-connector/internal/syncer"
	"github.com/Checker-Finance/qbo-connector/pkg/config"
	"github.com/Checker-Finance/qbo-connector/pkg/logger"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
	"github.com/Checker-Finance/qbo-connector/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Infof("starting [%s]...", cfg.ServiceName)
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- Intuit app registration (env or AWS Secrets Manager) ---
	appCache := bootstrap.NewOAuthAppCache(cfg)
	go appCache.StartCleaner(ctx, cfg.CleanupFreq)

	qc, err := bootstrap.OAuthConfig(ctx, cfg, nil, appCache, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to load QuickBooks OAuth config", "error", err)
	}

	cookieKey, err := bootstrap.CookieKey(cfg, logg.Desugar())
	if err != nil {
		logg.Fatalw("invalid cookie key", "error", err)
	}

	// --- Store (Redis + Postgres hybrid) ---
	st, err := bootstrap.OpenStore(ctx, cfg, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Event publisher ---
	events, err := bootstrap.Notifier(cfg, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init event publisher", "backend", cfg.EventsBackend, "error", err)
	}

	// --- Rate limiter, OAuth client, sessions ---
	rateMgr := bootstrap.RateManager(cfg)
	oauth := quickbooks.NewOAuthClient(qc, logg.Desugar(), quickbooks.WithOAuthRateManager(rateMgr))
	newSession := bootstrap.SessionFactory(logg.Desugar(), qc, oauth, rateMgr, st)

	orchestrator := syncer.New(logg.Desugar(), st, events)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	qboHandler := api.NewQuickBooksHandler(logg.Desugar(), api.HandlerConfig{
		CookieName:   cfg.QBOCookieName,
		SecureCookie: cfg.QBOCookieSecure,
		SuccessURL:   cfg.QBOSuccessURL,
		ErrorURL:     cfg.QBOErrorURL,
		StateTTL:     api.DefaultStateTTL,
	}, oauth, st, func(b model.CredentialBundle) api.Session {
		return newSession(b)
	}, orchestrator)

	api.RegisterRoutes(app, st, events, qboHandler, cookieKey)

	// Start HTTP server
	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("["+cfg.ServiceName+"] running",
		"env", cfg.Env,
		"qbo_environment", qc.Environment,
		"events_backend", cfg.EventsBackend)

	<-ctx.Done()
	logg.Infof("shutting down [%s]...", cfg.ServiceName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := events.Close(); err != nil {
		logg.Warnw("events.close_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
