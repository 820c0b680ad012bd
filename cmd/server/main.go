// Sequencer - assistant-driven step sequence editor server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kaihuan-huang/HR-AI/internal/api"
	"github.com/kaihuan-huang/HR-AI/internal/chat"
	"github.com/kaihuan-huang/HR-AI/internal/config"
	"github.com/kaihuan-huang/HR-AI/internal/grpchealth"
	"github.com/kaihuan-huang/HR-AI/internal/identity"
	"github.com/kaihuan-huang/HR-AI/internal/live"
	"github.com/kaihuan-huang/HR-AI/internal/llm"
	"github.com/kaihuan-huang/HR-AI/internal/metrics"
	"github.com/kaihuan-huang/HR-AI/internal/middleware"
	"github.com/kaihuan-huang/HR-AI/internal/orchestrator"
	"github.com/kaihuan-huang/HR-AI/internal/retention"
	"github.com/kaihuan-huang/HR-AI/internal/store"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthProbeInterval = 15 * time.Second
	healthProbeTimeout  = 2 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "grpc_port", cfg.GRPCPort, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	providers, err := llm.BuildProviders(ctx, cfg.ProviderConfigs(), llm.Pacing{
		Limit: rate.Limit(cfg.Completion.ProviderRateLimit),
		Burst: cfg.Completion.ProviderBurst,
	}, logger)
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		slog.Warn("No completion providers configured, every request will get the unavailable reply")
	} else {
		slog.Info("Completion providers ready", "providers", llm.Names(providers))
	}

	orch := orchestrator.New(orchestrator.Config{
		ProviderTimeout: cfg.Completion.ProviderTimeout,
		HistoryWindow:   cfg.Completion.HistoryWindow,
	}, providers, logger, m)

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return err
	}

	// Initialize services.
	chatService := chat.NewService(repo, orch, orch.HistoryWindow(), conversationLogger, m)
	defer func() {
		if closeErr := chatService.Close(); closeErr != nil {
			slog.Error("Failed to flush conversation log", "error", closeErr)
		}
	}()

	rateLimiter := chat.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer rateLimiter.Close()

	sm := live.NewSessionManager()
	toucher := identity.NewToucher(repo, identity.DefaultTouchInterval)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, orch, cfg.HTTP.MaxRequestBodySize)
	healthHandler := api.NewHealthHandler(repo, healthProbeTimeout)
	chatHandler := chat.NewHandler(chatService, rateLimiter, chat.HandlerConfig{
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	}, m)
	wsHandler := live.NewWebSocketHandler(chatService, sm, cfg.AllowedOrigins(), cfg.IsDevelopment(), m)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Everything else runs under the anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(toucher, !cfg.IsDevelopment()))
		baseHandler.RegisterRoutes(r)
		chatHandler.RegisterRoutes(r)
		r.Get("/ws/workspace", wsHandler.ServeHTTP)
	})

	// WriteTimeout stays 0: completions can run for several provider timeouts.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}
	grpcServer := grpchealth.New(repo, healthProbeInterval, healthProbeTimeout)

	sweeper := retention.NewSweeper(repo, sm, cfg.Retention.TTL, cfg.Retention.SweepInterval, m, toucher.Forget)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return grpcServer.Serve(gctx, grpcLis)
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	// Wait for shutdown signal or a server failure.
	g.Go(func() error {
		<-gctx.Done()
		stop()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.Shutdown()
		for _, uid := range sm.Users() {
			sm.CloseUser(uid)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
