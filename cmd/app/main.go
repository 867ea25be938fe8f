package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mm_bot/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(app.DefaultConfigPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config

	// 2. Pprof Server (for performance profiling)
	if addr := cfg.App.PprofAddr; addr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Quoting loop, balance reporter and feed
	if err := bootstrap.Start(ctx); err != nil {
		slog.Error("❌ Startup failed", slog.Any("error", err))
		return
	}

	slog.InfoContext(ctx, "✨ Market maker fully operational. Press Ctrl+C to exit.",
		slog.String("version", cfg.App.Version))

	// Wait for shutdown signal
	<-ctx.Done()

	bootstrap.Reporter.Report()
	bootstrap.LogJournalSummary(context.Background())
	slog.Info("👋 Shutting down gracefully...")
}
