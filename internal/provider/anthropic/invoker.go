// Package anthropic implements the upstream invoker and response extractor
// for the Anthropic Messages API. This file issues the HTTP call with the
// prompt-caching beta enabled.
package anthropic

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/sparkmatch/chatrelay/internal/config"
	relayerrors "github.com/sparkmatch/chatrelay/internal/errors"
	"github.com/sparkmatch/chatrelay/internal/runtime/executor"
)

const messagesPath = "/v1/messages"

// Client calls the Anthropic Messages API. It is safe for concurrent use;
// all per-request state lives on the call stack.
type Client struct {
	cfg        config.AnthropicConfig
	httpClient *http.Client
}

// NewClient creates a client from the provider configuration. A missing API
// key is logged loudly but does not prevent construction: requests will
// surface the real upstream authentication error at call time.
func NewClient(cfg config.AnthropicConfig) *Client {
	if cfg.APIKey == "" {
		log.Error("ANTHROPIC_API_KEY is not set; every chat request will fail upstream")
	}

	return &Client{
		cfg:        cfg,
		httpClient: executor.GetHTTPPool().GetClient(cfg.ProxyURL),
	}
}

// Invoke sends the transformed payload upstream and returns the raw response
// body. systemBlocks may be nil when the request carries no system prompt.
func (c *Client) Invoke(ctx context.Context, modelType string, systemBlocks, messages []byte) ([]byte, error) {
	spec, err := ResolveModel(modelType)
	if err != nil {
		return nil, err
	}

	body, _ := sjson.SetBytes([]byte("{}"), "model", spec.ID)
	body, _ = sjson.SetBytes(body, "max_tokens", spec.MaxTokens)
	if systemBlocks != nil {
		body, _ = sjson.SetRawBytes(body, "system", systemBlocks)
	}
	body, _ = sjson.SetRawBytes(body, "messages", messages)

	timeout := time.Duration(c.cfg.TimeoutSeconds) * time.Second
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, &relayerrors.RelayError{Kind: relayerrors.KindUpstreamError, Message: err.Error()}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)
	req.Header.Set("anthropic-beta", c.cfg.CacheBeta)
	req.Header.Set("Accept-Encoding", executor.AcceptEncoding)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, relayerrors.NewUpstreamTimeout(err.Error())
		}
		return nil, &relayerrors.RelayError{Kind: relayerrors.KindUpstreamError, Message: err.Error()}
	}
	defer executor.DrainAndClose(resp)

	reader, err := executor.DecodeBody(resp)
	if err != nil {
		return nil, &relayerrors.RelayError{Kind: relayerrors.KindUpstreamError, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, &relayerrors.RelayError{Kind: relayerrors.KindUpstreamError, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		relayErr := relayerrors.ParseUpstreamError(resp.StatusCode, raw)
		log.WithFields(log.Fields{
			"status":        resp.StatusCode,
			"upstream_type": relayErr.UpstreamType,
			"body":          relayerrors.Truncate(string(raw), 512),
		}).Error("upstream call failed")
		return nil, relayErr
	}

	return raw, nil
}
