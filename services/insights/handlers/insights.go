// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianInsights/services/insights/clients"
	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
	"github.com/AleutianAI/AleutianInsights/services/insights/observability"
	"github.com/AleutianAI/AleutianInsights/services/insights/pipeline"
	"github.com/AleutianAI/AleutianInsights/services/insights/storage"
	"github.com/AleutianAI/AleutianInsights/services/llm"
)

var insightsTracer = otel.Tracer("aleutian.insights.handlers")

// persistTimeout bounds the fire-and-forget snapshot write after the
// response has already been decided.
const persistTimeout = 10 * time.Second

// LLMFactory builds a language-model client for one request. The request's
// provider is validated to "groq" upstream; the factory exists so tests can
// substitute a stub model.
type LLMFactory func(provider, model, apiKey string) (llm.LLMClient, error)

// GroqFactory is the production LLMFactory.
func GroqFactory(provider, model, apiKey string) (llm.LLMClient, error) {
	return llm.NewGroqClient(apiKey, model)
}

// InsightsDeps wires the collaborators the insights handler needs.
type InsightsDeps struct {
	Stats    *clients.StatsClient
	Store    *storage.SnapshotStore
	Pipeline *pipeline.Pipeline
	NewLLM   LLMFactory
}

// GenerateInsights handles POST /v1/insights.
//
// # Description
//
// Runs the generation state machine: CacheCheck (skipped on regeneration),
// ComputeStats, LLMCall, Validate, Sanitize, Persist, Respond. On
// regeneration the prior snapshot is loaded first (its sentences feed the
// avoid-list in the prompt) and deleted before fresh statistics are
// computed. Persistence is fire-and-forget: a failed snapshot write is
// logged and never affects the response.
func GenerateInsights(deps InsightsDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := insightsTracer.Start(c.Request.Context(), "GenerateInsights")
		defer span.End()

		start := time.Now()
		defer func() {
			observability.PipelineDurationSeconds.Observe(time.Since(start).Seconds())
		}()

		var req datatypes.GenerateInsightsRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the insights request", "error", err)
			respondError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			slog.Warn("insights request failed validation", "error", err)
			respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}

		// CacheCheck. Regeneration skips the cache but reads the prior
		// snapshot so the model can be told not to reuse its phrasing.
		var avoid []string
		if req.Regenerate {
			if prior, err := deps.Store.Load(ctx, req.WorkspaceID, req.DatasetID, req.DecisionMetric); err == nil && prior != nil {
				for _, ins := range prior.Insights.TopInsights {
					avoid = append(avoid, ins.WhyItMatters)
				}
				if err := deps.Store.Delete(ctx, req.WorkspaceID, req.DatasetID, req.DecisionMetric); err != nil {
					slog.Warn("failed to delete prior snapshot before regeneration", "error", err)
				}
			}
		} else {
			if cached := deps.tryCache(ctx, &req); cached != nil {
				observability.RequestsTotal.WithLabelValues("success", "true").Inc()
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ComputeStats and GetSchema in parallel. Stats failure is fatal;
		// schema failure only drops the authoritative column list.
		var stats *datatypes.BackendStats
		var schema *datatypes.DatasetSchema
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			s, err := deps.Stats.ComputeStats(gctx, req.WorkspaceID, req.DatasetID, req.DecisionMetric)
			if err != nil {
				return err
			}
			stats = s
			return nil
		})
		g.Go(func() error {
			sc, err := deps.Stats.GetSchema(gctx, req.WorkspaceID, req.DatasetID)
			if err != nil {
				slog.Warn("schema unavailable, falling back to statistics factor names", "error", err)
				return nil
			}
			schema = sc
			return nil
		})
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			status := http.StatusBadGateway
			var upstream *clients.UpstreamError
			if errors.As(err, &upstream) {
				status = upstream.StatusCode
			}
			slog.Error("statistics backend call failed", "error", err)
			respondError(c, status, err.Error())
			return
		}

		// LLMCall.
		llmClient, err := deps.NewLLM(req.Provider, req.Model, req.APIKey)
		if err != nil {
			slog.Error("failed to construct LLM client", "provider", req.Provider, "error", err)
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		prompt := buildInsightPrompt(stats, schema.ColumnNames(), avoid)
		content, err := llmClient.Generate(ctx, prompt, llm.GenerationParams{ForceJSON: true})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("LLM generate failed", "model", req.Model, "error", err)
			respondError(c, http.StatusInternalServerError, "language model call failed: "+err.Error())
			return
		}

		envelope, err := pipeline.ParseModelOutput(content)
		if err != nil {
			var malformed *pipeline.MalformedOutputError
			if errors.As(err, &malformed) {
				slog.Error("model output unparseable", "reason", malformed.Reason)
				c.JSON(http.StatusInternalServerError, gin.H{
					"success":     false,
					"error":       malformed.Error(),
					"raw_excerpt": malformed.Excerpt,
				})
				observability.RequestsTotal.WithLabelValues("error", "false").Inc()
				return
			}
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}

		// Validate.
		result, err := deps.Pipeline.Validate(*stats, schema.ColumnNames(), envelope.TopInsights)
		if err != nil {
			span.RecordError(err)
			slog.Warn("validation rejected the batch", "error", err)
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		// Sanitize.
		payload := datatypes.InsightPayload{
			DecisionMetric: stats.DecisionMetric,
			TopInsights:    deps.Pipeline.Sanitize(result),
			DataRisks:      deps.Pipeline.CleanFreeText(envelope.DataRisks),
			Limitations:    deps.Pipeline.CleanLimitations(envelope.Limitations),
		}

		// Persist, fire-and-forget.
		snapshot := &datatypes.InsightSnapshot{
			WorkspaceID:    req.WorkspaceID,
			DatasetID:      req.DatasetID,
			DecisionMetric: req.DecisionMetric,
			DatasetHash:    storage.ComputeDatasetHash(schema),
			BackendStats:   *stats,
			Insights:       payload,
		}
		go persistSnapshot(deps.Store, snapshot)

		observability.RequestsTotal.WithLabelValues("success", "false").Inc()
		c.JSON(http.StatusOK, datatypes.GenerateInsightsResponse{
			Success:         true,
			Insights:        payload,
			BackendStats:    *stats,
			ExcludedColumns: stats.ExcludedColumns,
			Cached:          false,
		})
	}
}

// tryCache returns a response built from a stored snapshot when one exists
// and the dataset schema still matches its recorded hash.
func (deps InsightsDeps) tryCache(ctx context.Context, req *datatypes.GenerateInsightsRequest) *datatypes.GenerateInsightsResponse {
	snap, err := deps.Store.Load(ctx, req.WorkspaceID, req.DatasetID, req.DecisionMetric)
	if err != nil {
		slog.Warn("snapshot load failed, regenerating", "error", err)
		return nil
	}
	if snap == nil {
		return nil
	}

	schema, err := deps.Stats.GetSchema(ctx, req.WorkspaceID, req.DatasetID)
	if err != nil {
		// Cannot verify the dataset is unchanged; safer to regenerate.
		slog.Warn("schema fetch failed during cache check, regenerating", "error", err)
		return nil
	}
	if storage.ComputeDatasetHash(schema) != snap.DatasetHash {
		slog.Info("dataset hash changed, invalidating snapshot",
			"workspace", req.WorkspaceID, "dataset", req.DatasetID)
		return nil
	}

	return &datatypes.GenerateInsightsResponse{
		Success:         true,
		Insights:        snap.Insights,
		BackendStats:    snap.BackendStats,
		ExcludedColumns: snap.BackendStats.ExcludedColumns,
		Cached:          true,
	}
}

// persistSnapshot writes the snapshot outside the request lifecycle.
// Failures are logged and counted, never surfaced.
func persistSnapshot(store *storage.SnapshotStore, snap *datatypes.InsightSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := store.Save(ctx, snap); err != nil {
		slog.Error("snapshot persistence failed", "workspace", snap.WorkspaceID,
			"dataset", snap.DatasetID, "metric", snap.DecisionMetric, "error", err)
		observability.SnapshotWritesTotal.WithLabelValues("error").Inc()
		return
	}
	observability.SnapshotWritesTotal.WithLabelValues("success").Inc()
}

// respondError writes the standard error body and counts the request.
func respondError(c *gin.Context, status int, message string) {
	observability.RequestsTotal.WithLabelValues("error", "false").Inc()
	c.JSON(status, gin.H{"success": false, "error": message})
}
