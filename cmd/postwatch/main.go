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

	"github.com/use-agent/postwatch/api"
	"github.com/use-agent/postwatch/cache"
	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/engine"
	"github.com/use-agent/postwatch/platform"
	"github.com/use-agent/postwatch/readiness"
	"github.com/use-agent/postwatch/scraper"
	"github.com/use-agent/postwatch/sink"
	"github.com/use-agent/postwatch/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if path := os.Getenv("POSTWATCH_CONFIG"); path != "" {
		fileCfg, err := config.LoadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "postwatch: %v\n", err)
			os.Exit(1)
		}
		cfg = fileCfg
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("postwatch starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"identities", cfg.Pool.Identities,
		"maxConcurrency", cfg.Pool.MaxConcurrency,
	)

	// ── 3. Platform extractors ──────────────────────────────────────
	runner := &platform.Runner{
		Poller: readiness.Poller{
			Interval: cfg.Extract.PollInterval,
			Timeout:  cfg.Extract.ReadinessTimeout,
		},
		Sink:              sink.NewDir(cfg.Extract.SaveDir),
		NavigationTimeout: cfg.Extract.NavigationTimeout,
		FieldTimeout:      cfg.Extract.FieldTimeout,
		SlowRead:          cfg.Extract.SlowRead,
		MediaTimeout:      cfg.Extract.MediaTimeout,
		Location:          loadLocation(cfg.Extract.Timezone),
	}
	registry, err := platform.NewRegistry(runner)
	if err != nil {
		slog.Error("invalid platform probe tables", "error", err)
		os.Exit(1)
	}

	// ── 4. Identity pool ────────────────────────────────────────────
	pool, err := engine.NewPool(engine.PoolConfig{
		Identities:     cfg.Pool.Identities,
		MaxConcurrency: cfg.Pool.MaxConcurrency,
		RequestTimeout: cfg.Extract.RequestTimeout(),
	}, scraper.NewLauncher(cfg.Browser), &engine.DirProfileStore{Root: cfg.Pool.ProfilesDir})
	if err != nil {
		slog.Error("failed to initialise identity pool", "error", err)
		os.Exit(1)
	}

	// ── 5. Cache and router ─────────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	router := api.NewRouter(bgCtx, cfg, api.Deps{
		Pool:       pool,
		Extractors: registry,
		Cache:      cc,
		Notifier:   webhook.New(cfg.Webhook.Secret),
		StartTime:  time.Now(),
	})

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
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

	// In-flight extractions may hold a browser for the whole request budget.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Extract.RequestTimeout())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Batch items still queued stop here; running ones finish or time out.
	stopBackground()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Extract.RequestTimeout())
	defer cancelDrain()
	if err := pool.Close(drainCtx); err != nil {
		slog.Error("identity pool did not drain", "error", err)
	}
	slog.Info("postwatch stopped")
}

// loadLocation falls back to the local zone when tzdata is missing.
func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("timezone unavailable, using local time", "timezone", name, "error", err)
		return time.Local
	}
	return loc
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
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
