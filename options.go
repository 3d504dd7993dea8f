package parcel

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// Client options.

// WithChunkSize sets the chunk size in bytes for chunked transfers.
func WithChunkSize(size int64) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithConcurrency sets the maximum number of chunks in flight.
func WithConcurrency(n int) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithMaxRetries sets the total attempts per chunk, including the first.
func WithMaxRetries(n int) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if n > 0 {
			c.MaxRetries = n
		}
	}
}

// WithRetryBackoff sets the base delay and cap of the retry schedule.
func WithRetryBackoff(base, max time.Duration) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if base > 0 {
			c.RetryBaseDelay = base
		}
		if max > 0 {
			c.RetryMaxDelay = max
		}
	}
}

// WithDirectThreshold sets the file size at or above which the chunked
// strategy is forced.
func WithDirectThreshold(size int64) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if size > 0 {
			c.DirectSizeThreshold = size
		}
	}
}

// WithMaxDirectFiles sets the largest batch the direct strategy accepts.
func WithMaxDirectFiles(n int) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if n > 0 {
			c.MaxDirectFiles = n
		}
	}
}

// WithPollInterval sets the status poll cadence used when the push feed is
// unavailable.
func WithPollInterval(d time.Duration) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if d > 0 {
			c.PollInterval = d
		}
	}
}

// WithTimeout bounds individual HTTP requests.
func WithTimeout(d time.Duration) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(hc *http.Client) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithLogger supplies a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithFilesystem supplies the filesystem files are read from. Defaults to
// the OS filesystem; tests use an in-memory one.
func WithFilesystem(fs afero.Fs) parceltypes.Option {
	return func(c *parceltypes.ClientConfig) {
		if fs != nil {
			c.Filesystem = fs
		}
	}
}

// Upload options.

// WithPassword protects the uploaded batch with a password.
func WithPassword(password string) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		c.Password = password
	}
}

// WithMaxDownloads limits how many times the batch may be downloaded.
func WithMaxDownloads(n int) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		if n > 0 {
			c.MaxDownloads = n
		}
	}
}

// WithUploadChunkSize overrides the client chunk size for this upload.
func WithUploadChunkSize(size int64) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithUploadConcurrency overrides the client concurrency for this upload.
func WithUploadConcurrency(n int) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithUploadMaxRetries overrides the client attempt count for this upload.
func WithUploadMaxRetries(n int) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		if n > 0 {
			c.MaxRetries = n
		}
	}
}

// WithObserver registers a full lifecycle observer for this upload.
func WithObserver(o parceltypes.Observer) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		c.Observer = o
	}
}

// WithProgressFunc registers a progress snapshot callback.
func WithProgressFunc(fn func(parceltypes.ProgressSnapshot)) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		c.OnProgress = fn
	}
}

// WithChunkProgressFunc registers a per-chunk acknowledgment callback.
func WithChunkProgressFunc(fn func(parceltypes.ChunkEvent)) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		c.OnChunkProgress = fn
	}
}

// WithErrorFunc registers a terminal failure callback.
func WithErrorFunc(fn func(error)) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		c.OnError = fn
	}
}

// WithCompleteFunc registers a terminal success callback.
func WithCompleteFunc(fn func(parceltypes.Result)) parceltypes.UploadOption {
	return func(c *parceltypes.UploadOptionConfig) {
		c.OnComplete = fn
	}
}
