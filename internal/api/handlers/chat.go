// Package handlers provides the HTTP request handlers for the relay API.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/sparkmatch/chatrelay/internal/api/middleware"
	relayerrors "github.com/sparkmatch/chatrelay/internal/errors"
	"github.com/sparkmatch/chatrelay/internal/observability"
	"github.com/sparkmatch/chatrelay/internal/relay"
	"github.com/sparkmatch/chatrelay/internal/usage"
)

// fallbackError is the only error text ever sent to clients for upstream
// failures. Upstream bodies and statuses stay in the server logs.
const fallbackError = "Failed to get AI response"

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	pipeline *relay.Pipeline
}

// NewChatHandler creates the chat handler over a relay pipeline.
func NewChatHandler(pipeline *relay.Pipeline) *ChatHandler {
	return &ChatHandler{pipeline: pipeline}
}

// chatResponse is the success envelope returned to the mobile client.
type chatResponse struct {
	Message    string      `json:"message"`
	UsedModel  string      `json:"usedModel"`
	CacheStats usage.Stats `json:"cacheStats"`
}

// errorResponse is the failure envelope. fallback is always true so the
// client knows to display a canned reply.
type errorResponse struct {
	Error    string `json:"error"`
	Fallback bool   `json:"fallback"`
}

// Handle processes one chat request.
func (h *ChatHandler) Handle(c *gin.Context) {
	metrics := observability.GetMetrics()
	metrics.RequestStarted()
	defer metrics.RequestFinished()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "could not read request body", Fallback: true})
		return
	}

	requestID := middleware.GetRequestID(c)
	reply, err := h.pipeline.Handle(c.Request.Context(), body, requestID)
	if err != nil {
		h.writeError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		Message:    reply.Message,
		UsedModel:  reply.UsedModel,
		CacheStats: reply.Stats,
	})
}

func (h *ChatHandler) writeError(c *gin.Context, requestID string, err error) {
	log.WithFields(log.Fields{
		"request_id": requestID,
		"kind":       relayerrors.KindOf(err),
	}).Errorf("chat request failed: %v", err)

	if relayerrors.IsClientError(err) {
		message := fallbackError
		var relayErr *relayerrors.RelayError
		if errors.As(err, &relayErr) && relayErr.Message != "" {
			message = relayErr.Message
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: message, Fallback: true})
		return
	}

	c.JSON(http.StatusInternalServerError, errorResponse{Error: fallbackError, Fallback: true})
}
