package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/schemaforge/schemaforge/internal/api"
	"github.com/schemaforge/schemaforge/internal/config"
	"github.com/schemaforge/schemaforge/internal/engine"
	"github.com/schemaforge/schemaforge/internal/metrics"
	"github.com/schemaforge/schemaforge/internal/ratelimit"
	"github.com/schemaforge/schemaforge/internal/store"
	"github.com/schemaforge/schemaforge/internal/telemetry"
	"github.com/schemaforge/schemaforge/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the websocket server",
	RunE:  runServe,
}

func buildEngine(cfg config.EngineConfig) (engine.Engine, error) {
	switch cfg.Backend {
	case "ollama":
		return engine.NewOllamaEngine(cfg), nil
	case "openai":
		return engine.NewOpenAIEngine(cfg), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q (want \"ollama\" or \"openai\")", cfg.Backend)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cfg.Engine)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(cmd.Context())
	if err != nil {
		appLog.Warn("tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var cache *store.Store
	if cfg.Cache.Enabled {
		var err error
		if cfg.Cache.Dir != "" {
			cache, err = store.OpenWithPath(cfg.Cache.Dir)
		} else {
			cache, err = store.OpenInMemory()
		}
		if err != nil {
			appLog.Warn("result cache disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	orchestrator := worker.New(eng, worker.Options{
		MinFreeMB:     int64(cfg.Engine.MinFreeMemoryMB),
		RunEvaluation: cfg.Evaluation.Enabled,
		MaxAttempts:   cfg.Retry.MaxAttempts,
		Backend:       cfg.Engine.Backend,
		Metrics:       m,
		Cache:         cache,
	})
	limiter := ratelimit.New(
		time.Duration(cfg.RateLimiter.CooldownMs)*time.Millisecond,
		time.Duration(cfg.RateLimiter.UpdateIntervalMs)*time.Millisecond,
	)

	server := api.NewServer(orchestrator, limiter, appLog)
	router := server.Router()
	router.GET("/metrics", gin.WrapH(metrics.Handler(reg)))

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	watchConfigForHotReload(cmd.Context(), limiter)

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		appLog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}

// watchConfigForHotReload reloads the fields that are safe to change on a
// running server — today, only the rate limiter's cooldown — when the
// config file changes on disk. Backend/model/listen-address changes
// still require a restart, the same constraint the teacher's own
// file-watcher-driven reload paths document for settings that touch
// live connections.
func watchConfigForHotReload(ctx context.Context, limiter *ratelimit.Limiter) {
	if configPath == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		appLog.Warn("config hot-reload disabled", "error", err)
		return
	}
	if err := watcher.Add(configPath); err != nil {
		appLog.Warn("config hot-reload disabled", "error", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := config.Load(configPath)
				if err != nil {
					appLog.Warn("config reload failed", "error", err)
					continue
				}
				limiter.SetCooldown(time.Duration(reloaded.RateLimiter.CooldownMs) * time.Millisecond)
				appLog.Info("config reloaded", "cooldown_ms", reloaded.RateLimiter.CooldownMs)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				appLog.Warn("config watcher error", "error", err)
			}
		}
	}()
}
