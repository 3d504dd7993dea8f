// Package session drives one upload attempt through its lifecycle: init,
// chunk transfer, completion, and cleanup on failure or abort.
package session

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/SinghAman21/silentparcel-uploader/errors"
	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/internal/chunker"
	"github.com/SinghAman21/silentparcel-uploader/internal/limiter"
	"github.com/SinghAman21/silentparcel-uploader/internal/pool"
	"github.com/SinghAman21/silentparcel-uploader/internal/progress"
	"github.com/SinghAman21/silentparcel-uploader/internal/retry"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// State is the lifecycle phase of a session.
type State int32

// Session lifecycle states. Terminal states are Succeeded, Failed and
// Aborted; a session never leaves a terminal state.
const (
	StateCreated State = iota
	StateInitializing
	StateActive
	StateCompleting
	StateAborting
	StateSucceeded
	StateFailed
	StateAborted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateCompleting:
		return "completing"
	case StateAborting:
		return "aborting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateAborted
}

// Config carries the knobs a session needs. Zero callbacks are allowed.
type Config struct {
	ChunkSize   int64
	Concurrency int
	Retry       retry.Policy
	Policy      api.Policy
	Filesystem  afero.Fs
	Logger      *slog.Logger

	// OnActive fires once, right after the server issues the session id.
	OnActive func(uploadID string)

	// OnChunk fires for every confirmed chunk.
	OnChunk func(parceltypes.ChunkEvent)
}

// Session is a single-use transfer. Create one per upload attempt; Run may
// be called exactly once.
type Session struct {
	svc     api.Service
	files   []parceltypes.FileDescriptor
	cfg     Config
	tracker *progress.Tracker
	log     *slog.Logger

	state atomic.Int32

	mu       sync.Mutex
	cancel   context.CancelFunc
	uploadID string

	abortRequested atomic.Bool
}

// New creates a session over the given service and batch.
func New(svc api.Service, files []parceltypes.FileDescriptor, cfg Config) *Session {
	if cfg.Filesystem == nil {
		cfg.Filesystem = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Session{
		svc:     svc,
		files:   files,
		cfg:     cfg,
		tracker: progress.NewTracker(files, cfg.ChunkSize, time.Now()),
		log:     cfg.Logger,
	}
	s.state.Store(int32(StateCreated))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// UploadID returns the server-issued session id, empty until active.
func (s *Session) UploadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadID
}

// Tracker exposes the session's progress counters.
func (s *Session) Tracker() *progress.Tracker {
	return s.tracker
}

// Abort requests cooperative cancellation. In-flight chunks finish or fail
// on their own; no new work starts. Calling Abort on a finished or
// already-aborting session is a no-op.
func (s *Session) Abort() {
	if !s.abortRequested.CompareAndSwap(false, true) {
		return
	}
	// Terminal states are absorbing: only swap to Aborting from a live
	// state, never over a concurrent terminal transition.
	for {
		cur := s.state.Load()
		if State(cur).Terminal() {
			return
		}
		if s.state.CompareAndSwap(cur, int32(StateAborting)) {
			break
		}
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the transfer and returns its terminal result. The returned
// error mirrors Result.Err for callers that prefer error flow.
func (s *Session) Run(ctx context.Context) (*parceltypes.Result, error) {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateInitializing)) {
		// Aborted before it ever started.
		if s.abortRequested.Load() && s.State() == StateAborting {
			return s.finishAborted(context.Background(), nil)
		}
		err := errors.NewError("run", errors.ErrValidation).
			WithMessage("session already started")
		return &parceltypes.Result{Err: err}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if s.abortRequested.Load() {
		return s.finishAborted(context.Background(), nil)
	}

	init, err := s.initialize(runCtx)
	if err != nil {
		// No chunk was attempted; nothing remote to clean up.
		if s.isAbort(ctx, err) {
			return s.finishAborted(context.Background(), nil)
		}
		return s.fail(err)
	}

	s.mu.Lock()
	s.uploadID = init.UploadID
	s.mu.Unlock()
	s.state.CompareAndSwap(int32(StateInitializing), int32(StateActive))
	s.log.Info("session active",
		"uploadId", init.UploadID,
		"files", len(s.files),
		"totalBytes", s.tracker.TotalBytes())
	if s.cfg.OnActive != nil {
		s.cfg.OnActive(init.UploadID)
	}

	if err := s.transfer(runCtx, cancel, init.UploadID); err != nil {
		if s.isAbort(ctx, err) {
			return s.finishAborted(context.Background(), &init.UploadID)
		}
		s.cleanupRemote(init.UploadID)
		return s.fail(err)
	}

	s.state.CompareAndSwap(int32(StateActive), int32(StateCompleting))
	completed, err := s.complete(runCtx, init.UploadID)
	if err != nil {
		if s.isAbort(ctx, err) {
			return s.finishAborted(context.Background(), &init.UploadID)
		}
		s.cleanupRemote(init.UploadID)
		return s.fail(err)
	}

	s.state.Store(int32(StateSucceeded))
	s.log.Info("session succeeded", "uploadId", init.UploadID)
	return &parceltypes.Result{
		Success:          true,
		DownloadLocation: completed.DownloadLocation,
		EditLocation:     completed.EditLocation,
		FileIDs:          completed.FileIDs,
	}, nil
}

// initialize registers the batch, retrying transient failures.
func (s *Session) initialize(ctx context.Context) (*api.InitResult, error) {
	var init *api.InitResult
	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		init, err = s.svc.Init(ctx, s.files, s.cfg.Policy)
		return err
	})
	return init, err
}

// transfer pushes every chunk task through the concurrency limiter. The
// first exhausted chunk cancels the run context so no further tasks start.
func (s *Session) transfer(ctx context.Context, cancel context.CancelFunc, uploadID string) error {
	tasks, err := chunker.Plan(s.files, s.cfg.ChunkSize)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	return limiter.Run(ctx, len(tasks), s.cfg.Concurrency, func(ctx context.Context, i int) error {
		task := tasks[i]
		if err := s.uploadChunk(ctx, uploadID, task); err != nil {
			s.tracker.ApplyError(task.FileIndex, err)
			cancel()
			return err
		}
		return nil
	})
}

// uploadChunk reads one byte range and stores it, retrying per the policy.
// Each attempt re-reads the range so a partially consumed buffer from a
// failed send never leaks into the next attempt.
func (s *Session) uploadChunk(ctx context.Context, uploadID string, task chunker.Task) error {
	file := s.files[task.FileIndex]
	s.tracker.MarkUploading(task.FileIndex)

	buf := pool.Get(int(task.Length))
	defer pool.Put(buf)
	buf = buf[:task.Length]

	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		if err := s.readRange(file.LocalPath, buf, task.Offset); err != nil {
			return err
		}
		_, err := s.svc.Chunk(ctx, uploadID, file.Name, task.ChunkIndex, buf)
		return err
	})
	if err != nil {
		s.log.Warn("chunk failed",
			"uploadId", uploadID,
			"file", file.Name,
			"chunk", task.ChunkIndex,
			"error", err)
		return err
	}

	event := s.tracker.ApplyChunk(task.FileIndex, task.ChunkIndex, task.Length)
	if s.cfg.OnChunk != nil {
		s.cfg.OnChunk(event)
	}
	return nil
}

// readRange fills buf from the file at offset. Local read failures are not
// retryable.
func (s *Session) readRange(path string, buf []byte, offset int64) error {
	f, err := s.cfg.Filesystem.Open(path)
	if err != nil {
		return errors.NewError("readRange", fmt.Errorf("%w: %v", errors.ErrValidation, err)).
			WithFile(path)
	}
	defer f.Close()

	if _, err := f.ReadAt(buf, offset); err != nil {
		return errors.NewError("readRange", fmt.Errorf("%w: %v", errors.ErrValidation, err)).
			WithFile(path)
	}
	return nil
}

// complete asks the server to assemble, retrying transient failures.
func (s *Session) complete(ctx context.Context, uploadID string) (*api.CompleteResult, error) {
	var res *api.CompleteResult
	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.svc.Complete(ctx, uploadID)
		return err
	})
	return res, err
}

// isAbort reports whether a run error stems from a caller-initiated stop
// rather than a transfer failure.
func (s *Session) isAbort(callerCtx context.Context, err error) bool {
	if s.abortRequested.Load() {
		return true
	}
	if callerCtx.Err() != nil {
		return true
	}
	return goerrors.Is(err, errors.ErrAborted)
}

// fail moves the session to Failed and packages the terminal error.
func (s *Session) fail(err error) (*parceltypes.Result, error) {
	s.state.Store(int32(StateFailed))
	s.log.Error("session failed", "uploadId", s.UploadID(), "error", err)
	return &parceltypes.Result{Err: err}, err
}

// finishAborted moves the session to Aborted, discarding the remote partial
// state when a session id exists.
func (s *Session) finishAborted(cleanupCtx context.Context, uploadID *string) (*parceltypes.Result, error) {
	s.state.Store(int32(StateAborted))
	if uploadID != nil {
		s.cleanupRemoteCtx(cleanupCtx, *uploadID)
	}
	err := errors.NewError("run", errors.ErrAborted)
	if uploadID != nil {
		err = err.WithUploadID(*uploadID)
	}
	s.log.Info("session aborted", "uploadId", s.UploadID())
	return &parceltypes.Result{Err: err}, err
}

// cleanupRemote discards the partial remote session, best effort. It uses a
// fresh context because the run context is typically cancelled by now.
func (s *Session) cleanupRemote(uploadID string) {
	s.cleanupRemoteCtx(context.Background(), uploadID)
}

func (s *Session) cleanupRemoteCtx(ctx context.Context, uploadID string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.svc.Abort(ctx, uploadID); err != nil {
		s.log.Warn("remote cleanup failed", "uploadId", uploadID, "error", err)
	}
}
