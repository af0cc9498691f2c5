// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianInsights/services/insights/clients"
	"github.com/AleutianAI/AleutianInsights/services/insights/handlers"
	"github.com/AleutianAI/AleutianInsights/services/insights/pipeline"
	"github.com/AleutianAI/AleutianInsights/services/insights/routes"
	"github.com/AleutianAI/AleutianInsights/services/insights/sanitizer"
	"github.com/AleutianAI/AleutianInsights/services/insights/storage"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
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
		resource.WithAttributes(semconv.ServiceNameKey.String("insights-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("INSIGHTS_PORT")
	if port == "" {
		port = "12230"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	statsURL := os.Getenv("STATS_SERVICE_URL")
	// Trim quotes and whitespace in case Podman passes them literally
	statsURL = strings.Trim(statsURL, "\"' ")
	if statsURL == "" {
		log.Fatal("FATAL: STATS_SERVICE_URL is not set")
	}
	statsClient := clients.NewStatsClient(statsURL, &http.Client{Timeout: 120 * time.Second})

	badgerPath := os.Getenv("BADGER_PATH")
	if badgerPath == "" {
		badgerPath = "/data/insights-badger"
		slog.Warn("BADGER_PATH is not set, defaulting", "path", badgerPath)
	}
	db, err := storage.Open(storage.DefaultConfig(badgerPath))
	if err != nil {
		log.Fatalf("FATAL: Could not open the snapshot store: %v", err)
	}
	defer db.Close()

	engine, err := sanitizer.NewEngine()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the Sanitizer Engine %v", err)
	}

	opts := pipeline.Options{
		SuppressWeakCorrelations: os.Getenv("SUPPRESS_WEAK_CORRELATIONS") == "true",
		RejectCausalNarratives:   os.Getenv("REJECT_CAUSAL_NARRATIVES") == "true",
	}
	deps := handlers.InsightsDeps{
		Stats:    statsClient,
		Store:    storage.NewSnapshotStore(db),
		Pipeline: pipeline.New(engine, opts),
		NewLLM:   handlers.GroqFactory,
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("insights-service"))

	routes.SetupRoutes(router, deps)

	log.Println("Starting the insights server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
