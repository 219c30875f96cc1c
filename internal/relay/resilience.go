// Package relay implements the chat relay pipeline.
// This file decorates a Provider with retry and circuit breaking. The core
// pipeline performs no retries itself; resilience is layered on from outside
// so the core stays pure and testable with a mocked invoker.
package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sparkmatch/chatrelay/internal/config"
	relayerrors "github.com/sparkmatch/chatrelay/internal/errors"
	"github.com/sparkmatch/chatrelay/internal/runtime/executor"
)

// ResilientProvider wraps a Provider with optional retry and circuit
// breaking, configured from ResilienceConfig.
type ResilientProvider struct {
	inner   Provider
	retry   executor.RetryConfig
	doRetry bool
	breaker *executor.CircuitBreaker
}

// WrapProvider applies the configured resilience layers to provider.
// With everything disabled it returns provider unchanged.
func WrapProvider(provider Provider, cfg config.ResilienceConfig) Provider {
	if !cfg.RetryEnabled && !cfg.CircuitBreakerEnabled {
		return provider
	}

	rp := &ResilientProvider{inner: provider, doRetry: cfg.RetryEnabled}

	rp.retry = executor.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		rp.retry.MaxRetries = cfg.MaxRetries
	}
	if cfg.InitialDelayMs > 0 {
		rp.retry.InitialDelay = time.Duration(cfg.InitialDelayMs) * time.Millisecond
	}
	if cfg.MaxDelayMs > 0 {
		rp.retry.MaxDelay = time.Duration(cfg.MaxDelayMs) * time.Millisecond
	}

	if cfg.CircuitBreakerEnabled {
		rp.breaker = executor.DefaultCircuitBreaker()
	}

	return rp
}

// Invoke runs the inner invoker under the configured resilience policy.
func (r *ResilientProvider) Invoke(ctx context.Context, modelType string, systemBlocks, messages []byte) ([]byte, error) {
	if r.breaker != nil && !r.breaker.Allow() {
		return nil, &relayerrors.RelayError{
			Kind:       relayerrors.KindUpstreamError,
			StatusCode: http.StatusServiceUnavailable,
			Message:    "upstream circuit open",
		}
	}

	raw, err := r.invoke(ctx, modelType, systemBlocks, messages)

	if r.breaker != nil {
		switch {
		case err == nil:
			r.breaker.RecordSuccess()
		case !relayerrors.IsClientError(err):
			r.breaker.RecordFailure()
		}
	}

	return raw, err
}

func (r *ResilientProvider) invoke(ctx context.Context, modelType string, systemBlocks, messages []byte) ([]byte, error) {
	if !r.doRetry {
		return r.inner.Invoke(ctx, modelType, systemBlocks, messages)
	}

	var raw []byte
	err := executor.ExecuteWithRetry(ctx, r.retry, func() (int, *time.Duration, error) {
		var attemptErr error
		raw, attemptErr = r.inner.Invoke(ctx, modelType, systemBlocks, messages)
		return statusOf(attemptErr), nil, attemptErr
	})
	return raw, err
}

// ExtractText delegates to the inner provider.
func (r *ResilientProvider) ExtractText(raw []byte) string {
	return r.inner.ExtractText(raw)
}

func statusOf(err error) int {
	var relayErr *relayerrors.RelayError
	if errors.As(err, &relayErr) {
		return relayErr.StatusCode
	}
	return 0
}
