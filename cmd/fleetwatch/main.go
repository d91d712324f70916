package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/analytics"
	"github.com/fleetwatch/fleetwatch/internal/auth"
	"github.com/fleetwatch/fleetwatch/internal/clock"
	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/engine"
	"github.com/fleetwatch/fleetwatch/internal/events"
	"github.com/fleetwatch/fleetwatch/internal/handlers"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/ratelimit"
	"github.com/fleetwatch/fleetwatch/internal/reconciler"
	"github.com/fleetwatch/fleetwatch/internal/rules"
	"github.com/fleetwatch/fleetwatch/internal/server"
	"github.com/fleetwatch/fleetwatch/internal/service"
	"github.com/fleetwatch/fleetwatch/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	logging.SetDefault(logger)
	log := logger.Logger

	registry, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		log.Error("failed to load alert rules", "path", cfg.Rules.Path, "error", err)
		os.Exit(1)
	}
	log.Info("alert rules loaded", "path", cfg.Rules.Path, "rules", registry.Len())

	if cfg.Auth.Secret == "" {
		log.Error("auth.secret must be configured")
		os.Exit(1)
	}

	st, err := store.Connect(cfg.Redis.URL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	// The store may be unreachable at boot. Alerts degrade to safe defaults
	// until it comes back, so a failed ping is a warning, not a fatal.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := st.Ping(pingCtx); err != nil {
		log.Warn("alert store unreachable at startup, continuing degraded", "error", err)
	}
	pingCancel()
	defer st.Close()

	clk := clock.Real{}
	evaluator := engine.NewEvaluator(registry, st, clk, log)

	var publisher service.Publisher = service.NoopPublisher{}
	if cfg.NATS.Enabled {
		pub, err := events.Connect(cfg.NATS.URL)
		if err != nil {
			log.Warn("failed to connect to nats, lifecycle events disabled", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			log.Info("lifecycle event publisher connected", "url", cfg.NATS.URL)
		}
	}

	alerts := service.NewService(st, registry, evaluator, clk, publisher, log)
	an := analytics.New(st, alerts, clk, log)

	rec := reconciler.New(alerts, registry, clk, cfg.Reconciler.AutoCloseInterval, cfg.Reconciler.ReevaluateInterval, log)
	recCtx, recCancel := context.WithCancel(context.Background())
	defer recCancel()
	go rec.Start(recCtx)

	if cfg.Reconciler.SnapshotInterval > 0 {
		go runSnapshotLoop(recCtx, an, cfg.Reconciler.SnapshotInterval, log)
	}

	tokens := auth.NewTokenGenerator(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	handler := handlers.New(alerts, an, registry, st, tokens, cfg.Auth.Users, log)

	globalLimiter := ratelimit.Limiter(ratelimit.NoopLimiter{})
	createLimiter := ratelimit.Limiter(ratelimit.NoopLimiter{})
	if cfg.RateLimit.Enabled {
		globalLimiter = ratelimit.NewRedisLimiter(st.Client(), "global", cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow)
		createLimiter = ratelimit.NewRedisLimiter(st.Client(), "alert_create", cfg.RateLimit.CreateLimit, cfg.RateLimit.CreateWindow)
	}

	router := server.NewRouter(server.Options{
		Handler:       handler,
		Tokens:        tokens,
		GlobalLimiter: globalLimiter,
		CreateLimiter: createLimiter,
		Log:           log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("fleetwatch listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	rec.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("stopped")
}

func runSnapshotLoop(ctx context.Context, an *analytics.Service, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := an.Snapshot(ctx); err != nil {
				log.Error("daily snapshot pass failed", "error", err)
			}
		}
	}
}
