// FundSage is a multi-agent pension analysis service. A supervisor engine
// routes member queries across risk, fraud and projection workers, renders
// charts for visual requests and consolidates the gathered results into a
// single guarded answer served over REST, SSE, WebSocket and MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	fshttp "github.com/fundsage/FundSage/internal/adapter/http"
	"github.com/fundsage/FundSage/internal/adapter/litellm"
	"github.com/fundsage/FundSage/internal/adapter/mcp"
	"github.com/fundsage/FundSage/internal/adapter/nats"
	"github.com/fundsage/FundSage/internal/adapter/natskv"
	"github.com/fundsage/FundSage/internal/adapter/otel"
	"github.com/fundsage/FundSage/internal/adapter/postgres"
	"github.com/fundsage/FundSage/internal/adapter/ristretto"
	"github.com/fundsage/FundSage/internal/adapter/tiered"
	"github.com/fundsage/FundSage/internal/adapter/vegalite"
	"github.com/fundsage/FundSage/internal/adapter/ws"
	"github.com/fundsage/FundSage/internal/config"
	"github.com/fundsage/FundSage/internal/logger"
	"github.com/fundsage/FundSage/internal/middleware"
	"github.com/fundsage/FundSage/internal/port/cache"
	"github.com/fundsage/FundSage/internal/port/renderer"
	"github.com/fundsage/FundSage/internal/port/worker"
	"github.com/fundsage/FundSage/internal/resilience"
	"github.com/fundsage/FundSage/internal/service"
	"github.com/fundsage/FundSage/internal/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fundsage: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg, yamlPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("starting fundsage",
		"port", cfg.Server.Port,
		"config_file", yamlPath,
		"mcp_enabled", cfg.MCP.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SIGHUP re-reads the config file; a failed reload keeps the running
	// snapshot.
	holder := config.NewHolder(cfg, yamlPath)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := holder.Reload(); err != nil {
				log.Error("config reload failed", "error", err)
				continue
			}
			log.Info("config reloaded", "config_file", yamlPath, "log_level", holder.Get().Logging.Level)
		}
	}()

	shutdownTelemetry, err := otel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	// Infrastructure.
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	queue, err := nats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer func() {
		if err := queue.Drain(); err != nil {
			log.Warn("nats drain", "error", err)
		}
	}()

	routeCache, err := buildRouteCache(ctx, cfg.Cache, queue, log)
	if err != nil {
		return fmt.Errorf("build route cache: %w", err)
	}

	// LLM client shared by routing and consolidation.
	llmClient := litellm.NewClient(
		cfg.LiteLLM.URL,
		cfg.LiteLLM.MasterKey,
		cfg.Orchestrator.RouteModel,
		cfg.Orchestrator.SynthesisModel,
		cfg.Orchestrator.SynthesisMaxTokens,
	)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	var chartRenderer renderer.Renderer
	if cfg.Renderer.URL != "" {
		chartRenderer = vegalite.New(cfg.Renderer.URL, cfg.Renderer.Timeout)
	} else {
		log.Warn("no renderer configured, charts will ship as specs only")
	}

	// Workers.
	registry := worker.NewRegistry()
	registry.Register(workers.NewRisk(store, log))
	registry.Register(workers.NewFraud(store, log))
	registry.Register(workers.NewProjection(store, log))

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	hub := ws.NewHub()
	archive := service.NewArchive(store, log)

	engine := service.NewEngine(service.EngineDeps{
		Policy:       service.NewPolicy(llmClient, routeCache, cfg.Cache.RouteTTL, log),
		Adapter:      service.NewWorkerAdapter(registry, cfg.Orchestrator.PreviewLength, log),
		Visualizer:   service.NewVisualizer(chartRenderer, cfg.Orchestrator.DefaultProjectionYears, log),
		Consolidator: service.NewConsolidator(llmClient, service.NewGuardrail(), cfg.Orchestrator.PreviewLength, log),
		Archive:      archive,
		Hub:          hub,
		Queue:        queue,
		Metrics:      metrics,
		MaxTurns:     cfg.Orchestrator.MaxTurns,
		Log:          log,
	})

	// Optional MCP surface for agent clients.
	var mcpServer *mcp.Server
	if cfg.MCP.Enabled {
		mcpServer = mcp.NewServer(
			mcp.ServerConfig{
				Addr:    ":" + cfg.MCP.Port,
				Name:    "fundsage",
				Version: "1.0.0",
				APIKey:  cfg.MCP.APIKey,
			},
			mcp.ServerDeps{Runner: engine, Runs: archive},
		)
		if err := mcpServer.Start(); err != nil {
			return fmt.Errorf("start mcp server: %w", err)
		}
		log.Info("mcp server listening", "port", cfg.MCP.Port)
	}

	limiter := middleware.NewRateLimiter(10, 30)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	handlers := fshttp.NewHandlers(engine, archive, store, hub, queue)
	router := fshttp.NewRouter(handlers, cfg.Logging.Service, cfg.Server.CORSOrigin, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if mcpServer != nil {
			if err := mcpServer.Stop(shutdownCtx); err != nil {
				log.Warn("mcp shutdown", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown complete")
	return nil
}

// buildRouteCache assembles the tiered routing cache: an in-process ristretto
// layer backed by a shared JetStream key-value bucket. A bucket failure
// degrades to L1 only rather than refusing to start.
func buildRouteCache(ctx context.Context, cfg config.Cache, queue *nats.Queue, log *slog.Logger) (cache.Cache, error) {
	l1, err := ristretto.New(cfg.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}

	l2, err := natskv.NewBucket(ctx, queue.JetStream(), cfg.L2Bucket, cfg.L2TTL)
	if err != nil {
		log.Warn("kv bucket unavailable, using in-process cache only", "error", err)
		return l1, nil
	}

	return tiered.New(l1, l2, cfg.RouteTTL), nil
}
