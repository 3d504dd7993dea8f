// Package api defines the boundary to the remote upload service.
//
// The service is reachable over HTTP-style request/response calls plus one
// push-style status channel. Implementations translate protocol failures
// into the module's error taxonomy.
package api

import (
	"context"
	"io"

	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// Policy carries caller-supplied access policy passed through to the server.
type Policy struct {
	Password     string
	MaxDownloads int
}

// InitResult is the server's acknowledgment of session creation.
type InitResult struct {
	UploadID string
}

// ChunkResult is the server's acknowledgment of one stored chunk.
type ChunkResult struct {
	UploadedChunks  int
	TotalChunks     int
	ProgressPercent float64
}

// FileStatus is one file's remote progress as reported by the status feed.
type FileStatus struct {
	FileName       string
	UploadedChunks int
	TotalChunks    int
	Percent        float64
}

// StatusReport is one status payload, delivered by push or returned by poll.
// Err carries a server-side error string when the feed reports a failure.
type StatusReport struct {
	Files []FileStatus
	Err   string
}

// CompleteResult carries the final server identifiers after assembly.
type CompleteResult struct {
	DownloadLocation string
	EditLocation     string
	FileIDs          []string
}

// StatusStream is a server-pushed sequence of status reports.
type StatusStream interface {
	// Next blocks until the next report arrives or the stream fails.
	Next(ctx context.Context) (*StatusReport, error)

	// Close releases the stream. Safe to call more than once.
	Close() error
}

// DirectFile pairs a descriptor with its content for the direct path.
type DirectFile struct {
	Descriptor parceltypes.FileDescriptor
	Body       io.Reader
}

// Service is the remote upload service at its interface boundary.
//
// Error contract: Init fails with ErrValidation on a malformed file list and
// ErrPolicy on quota violations; Chunk fails with ErrNotFound when the
// session is unknown or expired and ErrServer on storage failures; Complete
// fails with ErrIncomplete when chunks are missing. Transport-level failures
// surface as ErrNetwork from any call.
type Service interface {
	// Init registers a batch and returns the server-issued session id.
	Init(ctx context.Context, files []parceltypes.FileDescriptor, policy Policy) (*InitResult, error)

	// Chunk stores one chunk. The chunk index is carried explicitly so the
	// server can assemble out-of-order arrivals by offset.
	Chunk(ctx context.Context, uploadID, fileName string, chunkIndex int, data []byte) (*ChunkResult, error)

	// Status polls a single status snapshot for the session.
	Status(ctx context.Context, uploadID string) (*StatusReport, error)

	// Subscribe opens the push status channel for the session.
	Subscribe(ctx context.Context, uploadID string) (StatusStream, error)

	// Complete asks the server to assemble the batch and returns the final
	// identifiers.
	Complete(ctx context.Context, uploadID string) (*CompleteResult, error)

	// Abort asks the server to discard the partial session. Idempotent and
	// best-effort.
	Abort(ctx context.Context, uploadID string) error

	// Direct transfers the whole batch in one atomic request, bypassing the
	// chunk protocol. onProgress, when non-nil, receives transport-level
	// byte counters as the request body is consumed.
	Direct(ctx context.Context, files []DirectFile, policy Policy, onProgress func(sent, total int64)) (*CompleteResult, error)
}
