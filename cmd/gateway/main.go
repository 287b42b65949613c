// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gateway runs the trust-boundary AI gateway.
//
//	gateway serve              start the HTTP gateway
//	gateway verify --journal   verify a chain journal offline
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianGateway/pkg/extensions"
	"github.com/AleutianAI/AleutianGateway/services/gateway/audit"
	"github.com/AleutianAI/AleutianGateway/services/gateway/chain"
	"github.com/AleutianAI/AleutianGateway/services/gateway/config"
	"github.com/AleutianAI/AleutianGateway/services/gateway/memory"
	"github.com/AleutianAI/AleutianGateway/services/gateway/middleware"
	"github.com/AleutianAI/AleutianGateway/services/gateway/observability"
	"github.com/AleutianAI/AleutianGateway/services/gateway/providers"
	"github.com/AleutianAI/AleutianGateway/services/gateway/ratelimit"
	"github.com/AleutianAI/AleutianGateway/services/gateway/routes"
	"github.com/AleutianAI/AleutianGateway/services/gateway/tasks"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	shutdownGrace = 10 * time.Second
	sweepInterval = 30 * time.Second
)

func main() {
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Trust-boundary AI gateway for untrusted agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), verifyCmd())

	// Bare invocation serves, matching the container entrypoint.
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	if err := root.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func verifyCmd() *cobra.Command {
	var journalPath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a chain journal offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(journalPath)
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := chain.ReadJournal(f)
			if err != nil {
				return err
			}
			result := chain.VerifyRecords(records, true)
			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			if !result.Valid {
				return fmt.Errorf("chain broken at %s", result.FirstInvalid)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&journalPath, "journal", "", "path to the journal file")
	_ = cmd.MarkFlagRequired("journal")
	return cmd
}

// initTracer sets up the OTLP trace exporter when an endpoint is
// configured. Returns a shutdown func, or nil when tracing is disabled.
func initTracer(ctx context.Context) (func(context.Context), error) {
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		return nil, nil
	}

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("gateway-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// openChain opens a journaled chain, or an unjournaled one when path is
// empty.
func openChain(path string) (*chain.Log, error) {
	if path == "" {
		return chain.NewLog(), nil
	}
	return chain.OpenLog(path)
}

// buildRegistry binds every provider with a configured credential or local
// endpoint. Together and gemini speak the OpenAI-compatible surface.
func buildRegistry(cfg *config.Config) *providers.Registry {
	registry := providers.NewRegistry()

	ollamaURL := cfg.OllamaURL
	if ollamaURL == "" {
		ollamaURL = cfg.BaseURLs[providers.ProviderOllama]
	}
	registry.Register(providers.ProviderOllama,
		providers.NewOllamaAdapter(ollamaURL), 0)

	if cfg.AnthropicKey != "" {
		registry.Register(providers.ProviderAnthropic,
			providers.NewAnthropicAdapter(cfg.BaseURLs[providers.ProviderAnthropic], cfg.AnthropicKey), 0)
	}
	if cfg.OpenAIKey != "" {
		registry.Register(providers.ProviderOpenAI,
			providers.NewOpenAICompatAdapter(providers.ProviderOpenAI, cfg.BaseURLs[providers.ProviderOpenAI], cfg.OpenAIKey), 0)
	}
	if cfg.TogetherKey != "" {
		baseURL := cfg.BaseURLs[providers.ProviderTogether]
		if baseURL == "" {
			baseURL = "https://api.together.xyz/v1"
		}
		registry.Register(providers.ProviderTogether,
			providers.NewOpenAICompatAdapter(providers.ProviderTogether, baseURL, cfg.TogetherKey), 0)
	}
	if cfg.GeminiKey != "" {
		baseURL := cfg.BaseURLs[providers.ProviderGemini]
		if baseURL == "" {
			baseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
		}
		registry.Register(providers.ProviderGemini,
			providers.NewOpenAICompatAdapter(providers.ProviderGemini, baseURL, cfg.GeminiKey), 0)
	}
	return registry
}

func runServe() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanup, err := initTracer(ctx)
	if err != nil {
		return fmt.Errorf("setup OTLP tracer: %w", err)
	}
	if cleanup != nil {
		defer cleanup(context.Background())
	}

	metrics := observability.InitMetrics()

	memoryLog, err := openChain(cfg.MemoryJournal)
	if err != nil {
		return fmt.Errorf("open memory journal: %w", err)
	}
	taskLog, err := openChain(cfg.TaskJournal)
	if err != nil {
		return fmt.Errorf("open task journal: %w", err)
	}

	var auditor *audit.Logger
	if cfg.AuditJournal != "" {
		auditLog, err := chain.OpenLog(cfg.AuditJournal)
		if err != nil {
			return fmt.Errorf("open audit journal: %w", err)
		}
		auditor = audit.NewLogger(auditLog)
	} else {
		slog.Warn("AUDIT_JOURNAL not set; audit chain is in-memory and ring-bounded")
		auditor = audit.NewRingLogger()
	}

	opts := extensions.DefaultOptions().
		WithAudit(auditor).
		WithSecretFilter(extensions.NewCredentialFilter(cfg.Credentials()...))
	if cfg.DevMode() {
		slog.Warn("GATEWAY_AUTH_SECRET not set: running in DEVELOPMENT MODE, all requests use a synthetic admin principal")
	} else {
		opts = opts.WithAuth(middleware.NewHMACAuthProvider(cfg.AuthSecret))
	}

	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.NewLimiter(store, cfg.RateLimits)
	registry := buildRegistry(cfg)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		router.Use(otelgin.Middleware("gateway-service"))
	}
	routes.SetupRoutes(router, routes.Deps{
		Registry: registry,
		Tasks:    tasks.NewStore(taskLog),
		Memory:   memory.New(memoryLog),
		Limiter:  limiter,
		Opts:     opts,
		Metrics:  metrics,
		Agents:   cfg.Agents,
		DevMode:  cfg.DevMode(),
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: router}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("gateway listening", "addr", cfg.Addr(), "providers", registry.IDs(), "dev_mode", cfg.DevMode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listener failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if removed := store.Sweep(); removed > 0 {
					slog.Debug("rate limit sweep", "removed", removed)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown incomplete", "error", err)
		}
		return auditor.Flush(context.Background())
	})

	return g.Wait()
}
