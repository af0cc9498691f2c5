// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianInsights/services/insights/handlers"
	"github.com/AleutianAI/AleutianInsights/services/insights/pipeline"
	"github.com/AleutianAI/AleutianInsights/services/insights/sanitizer"
	"github.com/AleutianAI/AleutianInsights/services/insights/storage"
)

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func testDeps(t *testing.T) handlers.InsightsDeps {
	t.Helper()
	db, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	engine, err := sanitizer.NewEngine()
	if err != nil {
		t.Fatalf("failed to build the sanitizer engine: %v", err)
	}

	return handlers.InsightsDeps{
		Store:    storage.NewSnapshotStore(db),
		Pipeline: pipeline.New(engine, pipeline.Options{}),
		NewLLM:   handlers.GroqFactory,
	}
}

func TestSetupRoutesRegistersEndpoints(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDeps(t))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/v1/insights"},
		{http.MethodGet, "/v1/insights/snapshot"},
		{http.MethodDelete, "/v1/insights/snapshot"},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusNotFound {
			t.Errorf("%s %s is not registered", tt.method, tt.path)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDeps(t))

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("health check returned %d", w.Code)
	}
}
