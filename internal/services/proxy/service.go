// Package proxy provides the pre-flight egress proxy check.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fgeck/gorenew/internal/models"
	"github.com/rs/zerolog"
	xproxy "golang.org/x/net/proxy"
)

const maxProbeBody = 4096

// Service defines the interface for proxy health checks.
type Service interface {
	Verify(ctx context.Context, cfg models.ProxyConfig) (*models.ProxyResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientFactory builds an HTTP client that routes through the given proxy.
type ClientFactory interface {
	NewClient(proxyURL *url.URL, timeout time.Duration) (HTTPClient, error)
}

// DefaultClientFactory builds clients on net/http, dialing SOCKS5 via x/net/proxy.
type DefaultClientFactory struct{}

// NewClient creates an HTTP client whose every connection goes through proxyURL.
func (f *DefaultClientFactory) NewClient(proxyURL *url.URL, timeout time.Duration) (HTTPClient, error) {
	transport := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
	}

	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		dialer, err := xproxy.FromURL(proxyURL, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		ctxDialer, ok := dialer.(xproxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
		}
		transport.DialContext = ctxDialer.DialContext
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// Impl implements the proxy Service interface.
type Impl struct {
	factory ClientFactory
	logger  zerolog.Logger
}

// New creates a new proxy service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		factory: &DefaultClientFactory{},
		logger:  logger,
	}
}

// NewWithFactory creates a new proxy service with a custom client factory (for testing).
func NewWithFactory(logger zerolog.Logger, factory ClientFactory) *Impl {
	return &Impl{
		factory: factory,
		logger:  logger,
	}
}

// Verify probes the configured proxy with a single short request and reports
// the egress IP. Without a proxy it succeeds without touching the network.
func (s *Impl) Verify(ctx context.Context, cfg models.ProxyConfig) (*models.ProxyResult, error) {
	result := &models.ProxyResult{}
	start := time.Now()

	if !cfg.Configured() {
		s.logger.Info().Msg("no proxy configured, using direct connection")
		return result, nil
	}
	result.Configured = true

	proxyURL, err := ParseURL(cfg.URL)
	if err != nil {
		result.Error = err
		return result, nil
	}
	result.ProxyHost = proxyURL.Host

	s.logger.Info().
		Str("proxy", Redact(proxyURL)).
		Str("probe_url", cfg.ProbeURL).
		Dur("timeout", cfg.ProbeTimeout).
		Msg("probing proxy")

	client, err := s.factory.NewClient(proxyURL, cfg.ProbeTimeout)
	if err != nil {
		result.Error = fmt.Errorf("%w: %w", models.ErrProxy, err)
		return result, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	ip, err := s.probe(probeCtx, client, cfg.ProbeURL)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("%w: probe via %s failed: %w", models.ErrProxy, proxyURL.Host, err)
		return result, nil
	}
	result.EgressIP = ip

	s.logger.Info().
		Str("egress_ip", ip).
		Dur("duration", result.Duration).
		Msg("proxy is usable")

	return result, nil
}

func (s *Impl) probe(ctx context.Context, client HTTPClient, probeURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("probe returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return "", fmt.Errorf("failed to read probe response: %w", err)
	}

	return ExtractIP(body), nil
}

// ExtractIP returns the "ip" field of a JSON probe response, or the trimmed
// body when the response is plain text.
func ExtractIP(body []byte) string {
	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.IP != "" {
		return payload.IP
	}
	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "Unknown"
	}
	return ip
}

// ParseURL normalises a proxy URL. A bare host:port is treated as SOCKS5.
func ParseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty proxy URL", models.ErrProxy)
	}
	if !strings.Contains(raw, "://") {
		raw = "socks5://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid proxy URL: %w", models.ErrProxy, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: proxy URL %q has no host", models.ErrProxy, Redact(u))
	}

	switch u.Scheme {
	case "socks5", "socks5h", "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported proxy scheme %q", models.ErrProxy, u.Scheme)
	}

	return u, nil
}

// Redact returns the URL without credentials, for logging.
func Redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.User = nil
	return c.String()
}
