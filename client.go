package parcel

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/internal/limiter"
	"github.com/SinghAman21/silentparcel-uploader/internal/monitor"
	"github.com/SinghAman21/silentparcel-uploader/internal/retry"
	"github.com/SinghAman21/silentparcel-uploader/internal/transport"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// Default client configuration values.
const (
	// DefaultChunkSize is the chunk size used when none is configured (5MiB)
	DefaultChunkSize = 5 * 1024 * 1024

	// DefaultDirectSizeThreshold is the size at or above which a file (or a
	// whole batch) forces the chunked strategy (5MiB)
	DefaultDirectSizeThreshold = 5 * 1024 * 1024

	// DefaultMaxDirectFiles is the largest batch the direct strategy accepts
	DefaultMaxDirectFiles = 3

	// DefaultTimeout bounds individual HTTP requests
	DefaultTimeout = 60 * time.Second
)

// Client is a reusable upload client bound to one endpoint. It is safe for
// concurrent use; each Upload call runs an independent session.
type Client struct {
	svc api.Service
	cfg parceltypes.ClientConfig
	fs  afero.Fs
	log *slog.Logger
}

// New creates a client for the given endpoint.
func New(endpoint string, opts ...parceltypes.Option) (*Client, error) {
	cfg := defaultConfig(endpoint)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	svc, err := transport.New(cfg.Endpoint, cfg.HTTPClient, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return newClient(svc, cfg), nil
}

// NewWithService creates a client over a caller-supplied service
// implementation. Used by tests and custom transports.
func NewWithService(svc api.Service, opts ...parceltypes.Option) *Client {
	cfg := defaultConfig("")
	for _, opt := range opts {
		opt(&cfg)
	}
	return newClient(svc, cfg)
}

func newClient(svc api.Service, cfg parceltypes.ClientConfig) *Client {
	return &Client{
		svc: svc,
		cfg: cfg,
		fs:  cfg.Filesystem,
		log: cfg.Logger,
	}
}

func defaultConfig(endpoint string) parceltypes.ClientConfig {
	return parceltypes.ClientConfig{
		Endpoint:            endpoint,
		ChunkSize:           DefaultChunkSize,
		Concurrency:         limiter.DefaultConcurrency,
		MaxRetries:          retry.DefaultMaxAttempts,
		RetryBaseDelay:      retry.DefaultBaseDelay,
		RetryMaxDelay:       retry.DefaultMaxDelay,
		DirectSizeThreshold: DefaultDirectSizeThreshold,
		MaxDirectFiles:      DefaultMaxDirectFiles,
		PollInterval:        monitor.DefaultPollInterval,
		Timeout:             DefaultTimeout,
		Logger:              slog.Default(),
		Filesystem:          afero.NewOsFs(),
	}
}

// retryPolicy builds the per-upload retry policy, letting upload options
// override the client's attempt count.
func (c *Client) retryPolicy(maxRetries int) retry.Policy {
	attempts := c.cfg.MaxRetries
	if maxRetries > 0 {
		attempts = maxRetries
	}
	return retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   c.cfg.RetryBaseDelay,
		MaxDelay:    c.cfg.RetryMaxDelay,
	}
}
