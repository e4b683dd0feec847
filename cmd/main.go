package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/video-summarizer/internal/config"
	"github.com/MimeLyc/video-summarizer/internal/httpapi"
	"github.com/MimeLyc/video-summarizer/internal/persistence"
	"github.com/MimeLyc/video-summarizer/internal/service"
	"github.com/MimeLyc/video-summarizer/internal/tasks"
	"github.com/MimeLyc/video-summarizer/pkg/log"
)

func main() {
	_ = godotenv.Load()

	settingsPath := config.RuntimeSettingsFilePath()
	var opts []config.Option
	if persisted, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		opts = append(opts, config.WithRuntimeSettings(persisted))
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("Failed to open store: %v", err)
	}
	defer store.Close()

	coordinator := tasks.NewCoordinator(store)
	provider := service.NewProvider(cfg)
	svc := service.New(provider, store, coordinator)

	c := cron.New()
	scheduler := service.NewScheduler(svc, coordinator, c, cfg.Summary.CronExpr, cfg.Summary.WatchDirs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Schedule(ctx); err != nil {
		log.Fatal("Failed to schedule automatic summarization: %v", err)
	}
	c.Start()
	defer c.Stop()

	settingsStore := config.NewFileSettingsStore(settingsPath, cfg.RuntimeSettings())
	server := httpapi.NewServer(
		svc,
		coordinator,
		store,
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(provider.Apply),
	)

	go func() {
		log.Info("HTTP API listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(cfg.HTTP.Addr); err != nil {
			log.Error("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed: %v", err)
	}
	coordinator.Stop()
}
