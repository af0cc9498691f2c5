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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianInsights/services/insights/datatypes"
	"github.com/AleutianAI/AleutianInsights/services/insights/storage"
)

// GetSnapshot handles GET /v1/insights/snapshot. Returns the stored
// snapshot verbatim, without re-running the schema freshness check.
func GetSnapshot(store *storage.SnapshotStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q datatypes.SnapshotQuery
		if err := c.BindQuery(&q); err != nil {
			respondError(c, http.StatusBadRequest, "invalid query parameters")
			return
		}
		if err := q.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "invalid query: "+err.Error())
			return
		}

		snap, err := store.Load(c.Request.Context(), q.WorkspaceID, q.DatasetID, q.DecisionMetric)
		if err != nil {
			slog.Error("snapshot load failed", "workspace", q.WorkspaceID,
				"dataset", q.DatasetID, "error", err)
			respondError(c, http.StatusInternalServerError, "failed to read snapshot")
			return
		}
		if snap == nil {
			respondError(c, http.StatusNotFound, "no snapshot for this dataset and metric")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "snapshot": snap})
	}
}

// DeleteSnapshot handles DELETE /v1/insights/snapshot. Deleting a
// snapshot that does not exist is not an error.
func DeleteSnapshot(store *storage.SnapshotStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q datatypes.SnapshotQuery
		if err := c.BindQuery(&q); err != nil {
			respondError(c, http.StatusBadRequest, "invalid query parameters")
			return
		}
		if err := q.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "invalid query: "+err.Error())
			return
		}

		if err := store.Delete(c.Request.Context(), q.WorkspaceID, q.DatasetID, q.DecisionMetric); err != nil {
			slog.Error("snapshot delete failed", "workspace", q.WorkspaceID,
				"dataset", q.DatasetID, "error", err)
			respondError(c, http.StatusInternalServerError, "failed to delete snapshot")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
