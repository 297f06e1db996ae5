package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/sitegrab/api"
	"github.com/use-agent/sitegrab/config"
	"github.com/use-agent/sitegrab/history"
	"github.com/use-agent/sitegrab/models"
	"github.com/use-agent/sitegrab/orchestrator"
	"github.com/use-agent/sitegrab/session"
	"github.com/use-agent/sitegrab/webhook"
)

var version = "0.1.0"

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load(version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("sitegrab console starting",
		"host", cfg.Console.Host,
		"port", cfg.Console.Port,
		"mode", cfg.Console.Mode,
		"service", cfg.Service.URL,
	)

	// ── 3. Orchestrator and its collaborator ────────────────────────
	collab := orchestrator.NewHTTPCollaborator(cfg.Service.URL, orchestrator.HTTPOptions{
		Timeout:   cfg.Service.Timeout,
		MaxBytes:  cfg.Service.MaxArchiveBytes,
		UserAgent: cfg.Service.UserAgent,
	})
	orch := orchestrator.New(collab,
		orchestrator.WithLogger(slog.Default()),
		orchestrator.OnChange(func(s orchestrator.Snapshot) {
			slog.Debug("state changed", "state", s.State, "token", s.Token)
		}),
	)

	// ── 4. History and notifications ────────────────────────────────
	store := history.New(cfg.History.MaxEntries, cfg.History.TTL)
	defer store.Close()

	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Service.UserAgent)
		slog.Info("webhook notifications enabled", "url", cfg.Webhook.URL)
	}

	sess := &session.Session{
		Orch:     orch,
		History:  store,
		Notifier: notifier,
		Preview:  cfg.Output.Preview,
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(sess, cfg, version, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Console.Host, cfg.Console.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Anything not downloaded by now is dropped.
	if orch.Revoke() {
		slog.Info("released undownloaded archive")
	}
	if orch.State() == models.StateSubmitting {
		slog.Warn("a submission was still in flight at shutdown")
	}
	if notifier != nil {
		notifier.Wait()
	}
	slog.Info("sitegrab console stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
