// Package parceltypes provides shared type definitions for the uploader module.
package parceltypes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"
)

// FileDescriptor describes one file in an upload batch. It is immutable and
// supplied by the caller; the client fills Size and ContentType from the
// local file when they are left zero.
type FileDescriptor struct {
	// Name is the file name presented to the remote store
	Name string

	// Size is the file size in bytes
	Size int64

	// ContentType is the MIME type; detected from content when empty
	ContentType string

	// RelativePath is the logical path of the file inside the batch
	RelativePath string

	// LocalPath is the source path on the local filesystem
	LocalPath string
}

// FileStatus is the lifecycle state of a single file within a session.
type FileStatus string

// Per-file upload states
const (
	StatusPending   FileStatus = "pending"
	StatusUploading FileStatus = "uploading"
	StatusCompleted FileStatus = "completed"
	StatusError     FileStatus = "error"
)

// FileProgress is the per-file view inside a progress snapshot.
// Percent is monotonically non-decreasing for the lifetime of a session.
type FileProgress struct {
	FileName       string
	FileSize       int64
	UploadedChunks int
	TotalChunks    int
	Percent        float64
	Status         FileStatus
	Err            error
}

// ProgressSnapshot is an immutable view of a session's progress. Each
// snapshot is recomputed from the current counters, never mutated in place.
type ProgressSnapshot struct {
	// OverallPercent is the unweighted arithmetic mean of per-file percents
	OverallPercent float64

	// Files holds the per-file progress, in batch order
	Files []FileProgress

	// UploadedBytes counts confirmed bytes only
	UploadedBytes int64

	// TotalBytes is the exact sum of the batch's file sizes
	TotalBytes int64

	// CurrentFile is the name of a file currently uploading, if any
	CurrentFile string

	// ThroughputBps is a running average since session start, in bytes/sec
	ThroughputBps float64

	// ETASeconds is remaining bytes over throughput; 0 when throughput is 0
	ETASeconds float64
}

// ChunkEvent reports one confirmed chunk acknowledgment.
type ChunkEvent struct {
	FileName       string
	ChunkIndex     int
	UploadedChunks int
	TotalChunks    int
	Percent        float64
}

// Result is the terminal outcome of an upload.
type Result struct {
	// Success is true when the whole batch was stored and assembled
	Success bool

	// DownloadLocation is the server location to fetch the batch from
	DownloadLocation string

	// EditLocation is the server location to manage the batch
	EditLocation string

	// FileIDs are the server-assigned identifiers of the assembled files
	FileIDs []string

	// Err is the terminal error when Success is false
	Err error
}

// Observer receives session lifecycle events. A session delivers at most one
// terminal event: OnComplete or OnError, never both.
type Observer interface {
	// OnProgress is called with a fresh snapshot at a bounded rate
	OnProgress(ProgressSnapshot)

	// OnError is called exactly once when the upload fails
	OnError(err error)

	// OnComplete is called exactly once when the upload succeeds
	OnComplete(Result)
}

// ClientConfig holds configuration for the upload client.
type ClientConfig struct {
	Endpoint            string
	ChunkSize           int64
	Concurrency         int
	MaxRetries          int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	DirectSizeThreshold int64
	MaxDirectFiles      int
	PollInterval        time.Duration
	Timeout             time.Duration
	HTTPClient          *http.Client
	Logger              *slog.Logger
	Filesystem          afero.Fs // Filesystem abstraction for reading sources
}

// UploadOptionConfig holds configuration for a single upload via functional options.
type UploadOptionConfig struct {
	Password        string
	MaxDownloads    int
	ChunkSize       int64
	Concurrency     int
	MaxRetries      int
	Observer        Observer
	OnProgress      func(ProgressSnapshot)
	OnChunkProgress func(ChunkEvent)
	OnError         func(error)
	OnComplete      func(Result)
}

// Option is a functional option for configuring the upload client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring a single upload.
	UploadOption func(*UploadOptionConfig)
)
