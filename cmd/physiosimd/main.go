// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// physiosimd is the HTTP façade over the causal reasoning engine:
// simulate, compare, graph inspection, and hot reload of the knowledge
// packs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/physiograph/internal/api"
	"github.com/AleutianAI/physiograph/internal/audit"
	"github.com/AleutianAI/physiograph/internal/config"
	"github.com/AleutianAI/physiograph/internal/graph"
	"github.com/AleutianAI/physiograph/internal/reload"
	"github.com/AleutianAI/physiograph/internal/snapshot"
	"github.com/AleutianAI/physiograph/pkg/logging"
)

func main() {
	configPath := flag.String("config", "physiosimd.yaml", "path to the daemon config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "physiosimd: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:   parseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.LogDir,
		Service: cfg.Logging.Service,
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()

	if cfg.Tracing.Enabled {
		shutdown, err := initTracer(cfg.Tracing.ServiceName)
		if err != nil {
			logger.Error("failed to initialize tracing", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	snap, err := graph.Load(cfg.PacksDir, logger)
	if err != nil {
		logger.Error("failed to load knowledge packs", "error", err, "packs_dir", cfg.PacksDir)
		os.Exit(1)
	}
	handle := snapshot.New(snap)

	var watcher *reload.Watcher
	var auditLog *audit.Log
	if cfg.Reload.Enabled {
		if cfg.Reload.AuditDir != "" {
			auditLog, err = audit.Open(cfg.Reload.AuditDir, 500)
			if err != nil {
				logger.Error("failed to open reload audit log", "error", err)
				auditLog = nil
			} else {
				defer auditLog.Close()
			}
		}

		watcher, err = reload.New(cfg.PacksDir, handle, logger, nil)
		if err != nil {
			logger.Error("failed to start hot reload watcher", "error", err)
		} else {
			if auditLog != nil {
				watcher = watcher.WithAudit(auditLog)
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := watcher.Start(ctx); err != nil {
				logger.Error("failed to start hot reload watcher", "error", err)
				watcher = nil
			}
		}
	}

	server := api.NewServer(handle, watcher, auditLog, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Handler(),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("physiosimd listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func parseLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func initTracer(serviceName string) (func(context.Context), error) {
	ctx := context.Background()
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return func(ctx context.Context) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "physiosimd: tracer shutdown: %v\n", err)
		}
	}, nil
}
