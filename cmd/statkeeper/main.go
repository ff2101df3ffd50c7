// Entry point for the statkeeper hit collector — chi router over the
// tracker engine, SQLite counter store, online sweep scheduler.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hazyhaar/statkeeper/tracker"
)

func main() {
	godotenv.Load()

	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := tracker.LoadConfig(env("CONFIG", ""))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if listen := os.Getenv("LISTEN"); listen != "" {
		cfg.Listen = listen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t, err := tracker.New(cfg, tracker.WithLogger(logger))
	if err != nil {
		slog.Error("tracker init", "error", err)
		os.Exit(1)
	}
	defer t.Close()
	t.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           t.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("statkeeper listening", "addr", cfg.Listen, "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server", "error", err)
		os.Exit(1)
	}
	slog.Info("statkeeper stopped")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
