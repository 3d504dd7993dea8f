package parcel

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/SinghAman21/silentparcel-uploader/errors"
	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/internal/monitor"
	"github.com/SinghAman21/silentparcel-uploader/internal/session"
	"github.com/SinghAman21/silentparcel-uploader/internal/validation"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// Upload transfers a batch of files and blocks until it reaches a terminal
// state. The strategy (direct or chunked) is chosen from the batch shape.
// Cancelling ctx aborts the upload cooperatively.
//
// The returned result always carries the terminal outcome; err mirrors
// Result.Err for callers that prefer error flow.
func (c *Client) Upload(ctx context.Context, files []parceltypes.FileDescriptor, opts ...parceltypes.UploadOption) (*parceltypes.Result, error) {
	uploadCfg := parceltypes.UploadOptionConfig{}
	for _, opt := range opts {
		opt(&uploadCfg)
	}
	obs := newNotifier(&uploadCfg)

	files, err := c.describe(files)
	if err != nil {
		return obs.fail(err)
	}
	if err := validation.ValidateBatch(files); err != nil {
		return obs.fail(err)
	}

	if useChunked(files, c.cfg.DirectSizeThreshold, c.cfg.MaxDirectFiles) {
		return c.uploadChunked(ctx, files, &uploadCfg, obs)
	}
	return c.uploadDirect(ctx, files, &uploadCfg, obs)
}

// describe fills Size and ContentType on descriptors that left them zero,
// reading from the configured filesystem.
func (c *Client) describe(files []parceltypes.FileDescriptor) ([]parceltypes.FileDescriptor, error) {
	out := make([]parceltypes.FileDescriptor, len(files))
	copy(out, files)

	for i := range out {
		f := &out[i]
		if f.LocalPath == "" {
			continue
		}
		if f.Size == 0 {
			info, err := c.fs.Stat(f.LocalPath)
			if err != nil {
				return nil, errors.NewError("describe", errors.ErrValidation).
					WithFile(f.Name).
					WithMessage(err.Error())
			}
			f.Size = info.Size()
		}
		if f.ContentType == "" {
			f.ContentType = c.detectContentType(f.LocalPath)
		}
		if f.Name == "" {
			f.Name = lastPathElement(f.LocalPath)
		}
	}
	return out, nil
}

// detectContentType sniffs the MIME type from file content. Detection never
// fails an upload; unreadable content falls back to octet-stream.
func (c *Client) detectContentType(path string) string {
	f, err := c.fs.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

func lastPathElement(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// uploadDirect ships the whole batch in one multipart request.
func (c *Client) uploadDirect(ctx context.Context, files []parceltypes.FileDescriptor, cfg *parceltypes.UploadOptionConfig, obs *notifier) (*parceltypes.Result, error) {
	c.log.Info("direct upload", "files", len(files))

	direct := make([]api.DirectFile, len(files))
	handles := make([]afero.File, 0, len(files))
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()
	var batchBytes int64
	for i, f := range files {
		h, err := c.fs.Open(f.LocalPath)
		if err != nil {
			return obs.fail(errors.NewError("direct", errors.ErrValidation).
				WithFile(f.Name).
				WithMessage(err.Error()))
		}
		handles = append(handles, h)
		direct[i] = api.DirectFile{Descriptor: f, Body: io.Reader(h)}
		batchBytes += f.Size
	}

	policy := api.Policy{Password: cfg.Password, MaxDownloads: cfg.MaxDownloads}
	onBytes := func(sent, total int64) {
		obs.progress(directSnapshot(files, batchBytes, sent, total))
	}

	res, err := c.svc.Direct(ctx, direct, policy, onBytes)
	if err != nil {
		return obs.fail(err)
	}
	obs.progress(directSnapshot(files, batchBytes, batchBytes, batchBytes))
	return obs.complete(parceltypes.Result{
		Success:          true,
		DownloadLocation: res.DownloadLocation,
		EditLocation:     res.EditLocation,
		FileIDs:          res.FileIDs,
	})
}

// directSnapshot synthesizes a progress view for the direct path from
// transport byte counters. The request travels as one unit, so every file
// advances in lockstep.
func directSnapshot(files []parceltypes.FileDescriptor, batchBytes, sent, total int64) parceltypes.ProgressSnapshot {
	var pct float64
	if total > 0 {
		pct = float64(sent) / float64(total) * 100
	}
	if pct > 100 {
		pct = 100
	}

	uploaded := int64(float64(batchBytes) * pct / 100)
	snap := parceltypes.ProgressSnapshot{
		OverallPercent: pct,
		UploadedBytes:  uploaded,
		TotalBytes:     batchBytes,
		Files:          make([]parceltypes.FileProgress, len(files)),
	}
	for i, f := range files {
		status := parceltypes.StatusUploading
		if pct >= 100 {
			status = parceltypes.StatusCompleted
		}
		snap.Files[i] = parceltypes.FileProgress{
			FileName: f.Name,
			FileSize: f.Size,
			Percent:  pct,
			Status:   status,
		}
		if snap.CurrentFile == "" && status == parceltypes.StatusUploading {
			snap.CurrentFile = f.Name
		}
	}
	return snap
}

// uploadChunked runs a chunked session with a detached progress monitor.
func (c *Client) uploadChunked(ctx context.Context, files []parceltypes.FileDescriptor, cfg *parceltypes.UploadOptionConfig, obs *notifier) (*parceltypes.Result, error) {
	chunkSize := c.cfg.ChunkSize
	if cfg.ChunkSize > 0 {
		chunkSize = cfg.ChunkSize
	}
	concurrency := c.cfg.Concurrency
	if cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	c.log.Info("chunked upload", "files", len(files), "chunkSize", chunkSize, "concurrency", concurrency)

	var mon *monitor.Monitor
	sess := session.New(c.svc, files, session.Config{
		ChunkSize:   chunkSize,
		Concurrency: concurrency,
		Retry:       c.retryPolicy(cfg.MaxRetries),
		Policy:      api.Policy{Password: cfg.Password, MaxDownloads: cfg.MaxDownloads},
		Filesystem:  c.fs,
		Logger:      c.log,
		OnChunk:     obs.chunk,
		OnActive: func(uploadID string) {
			mon = monitor.New(c.svc, uploadID, files, chunkSize, monitor.Config{
				PollInterval: c.cfg.PollInterval,
				Logger:       c.log,
				OnSnapshot:   obs.progress,
			})
			mon.Start(ctx)
		},
	})

	res, err := sess.Run(ctx)
	if mon != nil {
		mon.Stop()
	}
	if err != nil {
		return obs.fail(err)
	}

	obs.progress(sess.Tracker().Snapshot(time.Now()))
	return obs.complete(*res)
}

// notifier fans lifecycle events out to the configured observer and
// callbacks, and guarantees at most one terminal delivery.
type notifier struct {
	cfg  *parceltypes.UploadOptionConfig
	once sync.Once
}

func newNotifier(cfg *parceltypes.UploadOptionConfig) *notifier {
	return &notifier{cfg: cfg}
}

func (n *notifier) progress(s parceltypes.ProgressSnapshot) {
	if n.cfg.Observer != nil {
		n.cfg.Observer.OnProgress(s)
	}
	if n.cfg.OnProgress != nil {
		n.cfg.OnProgress(s)
	}
}

func (n *notifier) chunk(e parceltypes.ChunkEvent) {
	if n.cfg.OnChunkProgress != nil {
		n.cfg.OnChunkProgress(e)
	}
}

// fail delivers the terminal error exactly once and packages the result.
func (n *notifier) fail(err error) (*parceltypes.Result, error) {
	n.once.Do(func() {
		if n.cfg.Observer != nil {
			n.cfg.Observer.OnError(err)
		}
		if n.cfg.OnError != nil {
			n.cfg.OnError(err)
		}
	})
	return &parceltypes.Result{Err: err}, err
}

// complete delivers the terminal success exactly once.
func (n *notifier) complete(res parceltypes.Result) (*parceltypes.Result, error) {
	n.once.Do(func() {
		if n.cfg.Observer != nil {
			n.cfg.Observer.OnComplete(res)
		}
		if n.cfg.OnComplete != nil {
			n.cfg.OnComplete(res)
		}
	})
	return &res, nil
}
