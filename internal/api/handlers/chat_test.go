package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/sparkmatch/chatrelay/internal/api/middleware"
	"github.com/sparkmatch/chatrelay/internal/config"
	relayerrors "github.com/sparkmatch/chatrelay/internal/errors"
	"github.com/sparkmatch/chatrelay/internal/relay"
	"github.com/sparkmatch/chatrelay/internal/usage"
)

// stubProvider satisfies relay.Provider without any network traffic.
type stubProvider struct {
	calls    int
	response []byte
	err      error
}

func (s *stubProvider) Invoke(context.Context, string, []byte, []byte) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubProvider) ExtractText(raw []byte) string {
	return gjson.GetBytes(raw, "content.0.text").String()
}

func newTestRouter(provider relay.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	pipeline := relay.NewPipeline(provider, usage.NewAccountant(config.DefaultPricing()))
	handler := NewChatHandler(pipeline)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.POST("/api/chat", handler.Handle)
	return router
}

func postChat(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatSuccessEnvelope(t *testing.T) {
	provider := &stubProvider{response: []byte(`{
		"content":[{"type":"text","text":"sounds like a great first date!"}],
		"usage":{"input_tokens":50,"cache_read_input_tokens":200,"output_tokens":12}
	}`)}
	router := newTestRouter(provider)

	rec := postChat(router, `{"messages":[{"role":"user","content":"any date ideas?"}],"modelType":"haiku"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	body := gjson.Parse(rec.Body.String())
	if body.Get("message").String() != "sounds like a great first date!" {
		t.Errorf("message = %q", body.Get("message").String())
	}
	if body.Get("usedModel").String() != "haiku" {
		t.Errorf("usedModel = %q, want haiku", body.Get("usedModel").String())
	}
	if body.Get("cacheStats.cacheReadTokens").Int() != 200 {
		t.Errorf("cacheStats.cacheReadTokens = %d, want 200", body.Get("cacheStats.cacheReadTokens").Int())
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
}

func TestChatMissingMessagesRejected(t *testing.T) {
	provider := &stubProvider{}
	router := newTestRouter(provider)

	rec := postChat(router, `{"modelType":"haiku"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := gjson.Parse(rec.Body.String())
	if !body.Get("fallback").Bool() {
		t.Error("fallback flag not set on error response")
	}
	if body.Get("error").String() == "" {
		t.Error("error message missing")
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 (malformed input must not reach upstream)", provider.calls)
	}
}

func TestChatUnknownModelRejected(t *testing.T) {
	provider := &stubProvider{err: relayerrors.NewUnknownModel("opus")}
	router := newTestRouter(provider)

	rec := postChat(router, `{"messages":[{"role":"user","content":"hi"}],"modelType":"opus"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !gjson.Get(rec.Body.String(), "fallback").Bool() {
		t.Error("fallback flag not set")
	}
}

func TestChatUpstreamFailureHidesDetails(t *testing.T) {
	provider := &stubProvider{err: relayerrors.ParseUpstreamError(500, []byte(`{"error":{"type":"api_error","message":"internal secret detail"}}`))}
	router := newTestRouter(provider)

	rec := postChat(router, `{"messages":[{"role":"user","content":"hi"}],"modelType":"haiku"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := gjson.Parse(rec.Body.String())
	if body.Get("error").String() != "Failed to get AI response" {
		t.Errorf("error = %q, want the fixed fallback text", body.Get("error").String())
	}
	if !body.Get("fallback").Bool() {
		t.Error("fallback flag not set")
	}
	if strings.Contains(rec.Body.String(), "internal secret detail") {
		t.Error("upstream error detail leaked to the client")
	}
}

func TestChatEchoesRequestID(t *testing.T) {
	provider := &stubProvider{response: []byte(`{"content":[{"type":"text","text":"ok"}]}`)}
	router := newTestRouter(provider)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}],"modelType":"haiku"}`))
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "client-supplied-id" {
		t.Errorf("X-Request-ID = %q, want the client-supplied value echoed", got)
	}
}
