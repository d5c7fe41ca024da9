package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/robalyx/relay/internal/discord/rate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	xrate "golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Discord REST API root.
	DefaultBaseURL = "https://discord.com/api/v9"
	// DefaultUserAgent is the browser user agent presented to Discord.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxAttempts is the attempt budget of one Execute call.
	DefaultMaxAttempts = 5
	// DefaultBackoffBase and DefaultBackoffStep shape the transient fault backoff.
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffStep = 2 * time.Second
)

// Doer performs a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GlobalStore shares global rate limit windows with other processes.
type GlobalStore interface {
	Hold(ctx context.Context, d time.Duration) error
	Remaining(ctx context.Context) (time.Duration, error)
}

// Config holds everything needed to build a Client.
type Config struct {
	Token      string
	BaseURL    string
	UserAgent  string
	Properties SuperProperties
	// Proxy routes all requests through the given proxy. Credentials go in the URL userinfo.
	Proxy       *url.URL
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffStep time.Duration
	// UseClock and CompensateSkew control reset header interpretation.
	UseClock       bool
	CompensateSkew bool
	// PaceInterval and PaceJitter space consecutive attempts. Zero disables pacing.
	PaceInterval time.Duration
	PaceJitter   time.Duration
	// GlobalRate caps attempts per second across all buckets. Zero disables the cap.
	GlobalRate float64
	// Shared is an optional cross-process global rate limit store.
	Shared GlobalStore
	// HTTPClient overrides the transport built from Proxy and Timeout.
	HTTPClient Doer
}

// Client sends rate limited requests to the Discord REST API for one token.
type Client struct {
	http        Doer
	cfg         Config
	superProps  string
	registry    *rate.Registry
	gate        *rate.Gate
	interpreter *rate.Interpreter
	pacer       *rate.Pacer
	limiter     *xrate.Limiter
	tracer      trace.Tracer
	logger      *zap.Logger
}

// New creates a client, filling unset configuration with defaults.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = DefaultBackoffStep
	}

	superProps, err := cfg.Properties.Encode()
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClientWithProxy(cfg.Proxy, cfg.Timeout)
	}

	var limiter *xrate.Limiter
	if cfg.GlobalRate > 0 {
		limiter = xrate.NewLimiter(xrate.Limit(cfg.GlobalRate), max(1, int(cfg.GlobalRate)))
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http:       httpClient,
		cfg:        cfg,
		superProps: superProps,
		registry:   rate.NewRegistry(),
		gate:       rate.NewGate(),
		interpreter: rate.NewInterpreter(rate.Options{
			UseClock:       cfg.UseClock,
			CompensateSkew: cfg.CompensateSkew,
		}),
		pacer:   rate.NewPacer(cfg.PaceInterval, cfg.PaceJitter),
		limiter: limiter,
		tracer:  otel.Tracer("github.com/robalyx/relay/internal/discord/client"),
		logger:  logger.Named("discord_http"),
	}, nil
}

// Stats returns the bucket registry counters.
func (c *Client) Stats() rate.Stats {
	return c.registry.Stats()
}

// Close releases idle connections held by the transport.
func (c *Client) Close() {
	if closer, ok := c.http.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
}

// NewHTTPClientWithProxy creates an HTTP client configured to use the specified proxy.
// A nil proxy connects directly.
func NewHTTPClientWithProxy(proxy *url.URL, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   20 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
