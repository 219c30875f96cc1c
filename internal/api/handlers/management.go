// Package handlers provides the HTTP request handlers for the relay API.
// This file serves the management endpoints: process-wide usage totals and
// the audit log.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sparkmatch/chatrelay/internal/audit"
	"github.com/sparkmatch/chatrelay/internal/usage"
)

// ManagementHandler serves the /v0/management endpoints.
type ManagementHandler struct {
	counters    *usage.Counters
	auditLogger *audit.Logger
}

// NewManagementHandler creates the management handler.
func NewManagementHandler(counters *usage.Counters, auditLogger *audit.Logger) *ManagementHandler {
	return &ManagementHandler{counters: counters, auditLogger: auditLogger}
}

// UsageTotals returns the accumulated usage counters.
func (h *ManagementHandler) UsageTotals(c *gin.Context) {
	c.JSON(http.StatusOK, h.counters.Snapshot())
}

// AuditLog returns recent audit entries, newest first. The limit query
// parameter caps the result; default 100.
func (h *ManagementHandler) AuditLog(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   h.auditLogger.Len(),
		"entries": h.auditLogger.Recent(limit),
	})
}
