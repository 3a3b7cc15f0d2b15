package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lockin-monolith/internal/bot"
	"lockin-monolith/internal/catalog"
	"lockin-monolith/internal/config"
	"lockin-monolith/internal/dispatch"
	"lockin-monolith/internal/i18n"
	"lockin-monolith/internal/ledger"
	"lockin-monolith/internal/logger"
	"lockin-monolith/internal/reminder"
	"lockin-monolith/internal/store"
	"lockin-monolith/internal/web"
)

const workerInterval = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := store.NewStore(cfg.DBPath)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	zlog.Info("database ready", zap.String("path", cfg.DBPath))

	habits, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		zlog.Fatal("failed to load habit catalog", zap.Error(err))
	}

	translator, err := i18n.NewTranslator(cfg.LocalesPath, "en")
	if err != nil {
		zlog.Warn("failed to load locales, falling back to keys", zap.Error(err))
		translator = i18n.NewFallback("en")
	}

	langOf := func(userID int64) string {
		user, err := db.GetUserByID(userID)
		if err != nil || user == nil {
			return "en"
		}
		return user.Language
	}
	texts := reminder.NewTranslatedTexts(translator, langOf)

	maxDaily := func(userID int64) int {
		gs, err := db.GetGlobalSettings(userID)
		if err != nil {
			return 0
		}
		return gs.MaxDailyNotifications
	}
	scheduler := dispatch.NewScheduler(db, zlog, maxDaily)

	engine := reminder.NewEngine(db, scheduler, habits, texts, zlog)
	completions := ledger.New(db, habits, zlog)

	// Completion from a notification button goes through the same ledger
	// entry point as web and bot completions, then settles reminder state.
	scheduler.RegisterAction(reminder.ActionMarkDone, func(ctx context.Context, userID int64, habitID string) error {
		now := time.Now()
		if _, err := completions.Record(userID, habitID, now); err != nil {
			return err
		}
		return engine.OnCompletion(userID, habitID, now)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tgBot, err := bot.NewBot(cfg.TelegramBotToken, cfg.PublicURL, cfg.SessionSecret, db, completions, engine, scheduler, habits, translator, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize telegram bot", zap.Error(err))
	}
	go tgBot.Start()

	go scheduler.StartWorker(ctx, workerInterval, tgBot)

	server := web.NewServer(engine, completions, db, habits, cfg.SessionSecret, cfg.PublicURL, cfg.RateLimitPerMinute, zlog)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http server shutdown failed", zap.Error(err))
	}
	tgBot.Stop()
	zlog.Info("shutdown complete")
}
