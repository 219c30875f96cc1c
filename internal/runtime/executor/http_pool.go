// Package executor provides runtime support for calls to the upstream AI
// provider. This file implements a shared HTTP/2 transport pool so that every
// chat request reuses warm connections to the provider.
package executor

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// HTTPPoolConfig holds configuration for HTTP connection pooling.
type HTTPPoolConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	ForceHTTP2          bool
}

// DefaultHTTPPoolConfig returns defaults tuned for a single upstream AI provider.
func DefaultHTTPPoolConfig() HTTPPoolConfig {
	return HTTPPoolConfig{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		MaxConnsPerHost:     64,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceHTTP2:          true,
	}
}

// HTTPPool manages reusable HTTP transports keyed by proxy URL. The empty key
// is the direct connection used by almost every deployment.
type HTTPPool struct {
	mu         sync.RWMutex
	transports map[string]*http.Transport
	config     HTTPPoolConfig
}

var (
	globalHTTPPool     *HTTPPool
	globalHTTPPoolOnce sync.Once
)

// GetHTTPPool returns the global HTTP connection pool singleton.
func GetHTTPPool() *HTTPPool {
	globalHTTPPoolOnce.Do(func() {
		globalHTTPPool = NewHTTPPool(DefaultHTTPPoolConfig())
	})
	return globalHTTPPool
}

// NewHTTPPool creates a new HTTP connection pool with the given configuration.
func NewHTTPPool(cfg HTTPPoolConfig) *HTTPPool {
	return &HTTPPool{
		transports: make(map[string]*http.Transport),
		config:     cfg,
	}
}

// Configure updates the pool configuration. Should be called at startup;
// existing transports are discarded so the new settings apply.
func (p *HTTPPool) Configure(cfg HTTPPoolConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = cfg
	for _, t := range p.transports {
		t.CloseIdleConnections()
	}
	p.transports = make(map[string]*http.Transport)
}

// GetClient returns an HTTP client backed by the pooled transport for the
// given proxy URL (empty for a direct connection). The client carries no
// timeout of its own; callers bound requests with a context deadline.
func (p *HTTPPool) GetClient(proxyURL string) *http.Client {
	t := p.getTransport(proxyURL)
	if t == nil {
		return &http.Client{}
	}
	return &http.Client{Transport: t}
}

func (p *HTTPPool) getTransport(proxyURL string) *http.Transport {
	p.mu.RLock()
	if t, ok := p.transports[proxyURL]; ok {
		p.mu.RUnlock()
		return t
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.transports[proxyURL]; ok {
		return t
	}

	t := p.createTransport(proxyURL)
	if t != nil {
		p.transports[proxyURL] = t
		log.Debugf("created pooled HTTP transport (proxy=%q)", proxyURL)
	}
	return t
}

func (p *HTTPPool) createTransport(proxyURL string) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	t := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          p.config.MaxIdleConns,
		MaxIdleConnsPerHost:   p.config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       p.config.MaxConnsPerHost,
		IdleConnTimeout:       p.config.IdleConnTimeout,
		TLSHandshakeTimeout:   p.config.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     p.config.ForceHTTP2,
		// The invoker negotiates gzip/brotli itself and decodes explicitly.
		DisableCompression: true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if proxyURL == "" {
		return t
	}

	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		log.Errorf("failed to parse proxy URL: %v", err)
		return nil
	}

	switch parsedURL.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(parsedURL)
		return t
	case "socks5":
		return p.socks5Transport(t, parsedURL)
	default:
		log.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
		return nil
	}
}

func (p *HTTPPool) socks5Transport(t *http.Transport, parsedURL *url.URL) *http.Transport {
	var auth *proxy.Auth
	if parsedURL.User != nil {
		password, _ := parsedURL.User.Password()
		auth = &proxy.Auth{User: parsedURL.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, auth, proxy.Direct)
	if err != nil {
		log.Errorf("failed to create SOCKS5 dialer: %v", err)
		return nil
	}

	t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	return t
}

// CloseIdleConnections closes all idle connections in the pool.
func (p *HTTPPool) CloseIdleConnections() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.transports {
		t.CloseIdleConnections()
	}
}
