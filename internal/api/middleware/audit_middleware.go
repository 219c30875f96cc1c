// Package middleware provides HTTP middleware components for the relay API.
// This file implements audit logging middleware that records chat request
// metadata. Message content is never retained.
package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/sparkmatch/chatrelay/internal/audit"
)

// responseBodyWriter wraps gin.ResponseWriter to capture the response body
// so token counts can be extracted after the handler runs.
type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Audit records each chat request into the audit log.
func Audit(logger *audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		rbw := &responseBodyWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = rbw

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		response := rbw.body.Bytes()
		entry := audit.Entry{
			Timestamp:       start,
			RequestID:       GetRequestID(c),
			Model:           gjson.GetBytes(requestBody, "modelType").String(),
			Endpoint:        c.Request.URL.Path,
			Method:          c.Request.Method,
			StatusCode:      c.Writer.Status(),
			Latency:         latency,
			InputTokens:     gjson.GetBytes(response, "cacheStats.inputTokens").Int(),
			CacheReadTokens: gjson.GetBytes(response, "cacheStats.cacheReadTokens").Int(),
			OutputTokens:    gjson.GetBytes(response, "cacheStats.outputTokens").Int(),
			Error:           gjson.GetBytes(response, "error").String(),
			ClientIP:        c.ClientIP(),
		}
		logger.Log(entry)
	}
}
