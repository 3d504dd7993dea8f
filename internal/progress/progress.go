// Package progress computes per-file and overall upload progress from raw
// counters. It performs no I/O.
//
// The overall percentage is the unweighted arithmetic mean of per-file
// percentages, not a byte-weighted average. This is deliberate: it matches
// the observable behavior callers depend on for mixed-size batches.
package progress

import (
	"sync"
	"time"

	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/internal/chunker"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// Tracker aggregates chunk acknowledgments into progress state for one
// session. All mutation goes through the tracker's mutex so session and
// monitor goroutines can share it safely.
type Tracker struct {
	mu sync.Mutex

	files      []parceltypes.FileProgress
	chunkSize  int64
	totalBytes int64
	uploaded   int64
	startTime  time.Time
}

// NewTracker builds a tracker for the batch. Files with zero chunks
// (zero-byte files) are complete from the start.
func NewTracker(files []parceltypes.FileDescriptor, chunkSize int64, now time.Time) *Tracker {
	t := &Tracker{
		files:     make([]parceltypes.FileProgress, len(files)),
		chunkSize: chunkSize,
		startTime: now,
	}
	for i, f := range files {
		total := chunker.TotalChunks(f.Size, chunkSize)
		fp := parceltypes.FileProgress{
			FileName:    f.Name,
			FileSize:    f.Size,
			TotalChunks: total,
			Status:      parceltypes.StatusPending,
		}
		if total == 0 {
			fp.Percent = 100
			fp.Status = parceltypes.StatusCompleted
		}
		t.files[i] = fp
		t.totalBytes += f.Size
	}
	return t
}

// TotalBytes returns the exact sum of the batch's file sizes.
func (t *Tracker) TotalBytes() int64 {
	return t.totalBytes
}

// MarkUploading flips a pending file to uploading.
func (t *Tracker) MarkUploading(fileIndex int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.files[fileIndex].Status == parceltypes.StatusPending {
		t.files[fileIndex].Status = parceltypes.StatusUploading
	}
}

// ApplyChunk records one confirmed chunk of n bytes for a file and returns
// the resulting chunk event. Byte counters advance only here, by exactly
// the chunk's byte-range length.
func (t *Tracker) ApplyChunk(fileIndex, chunkIndex int, n int64) parceltypes.ChunkEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	fp := &t.files[fileIndex]
	fp.UploadedChunks++
	t.uploaded += n
	if t.uploaded > t.totalBytes {
		t.uploaded = t.totalBytes
	}
	t.recomputeLocked(fp)

	return parceltypes.ChunkEvent{
		FileName:       fp.FileName,
		ChunkIndex:     chunkIndex,
		UploadedChunks: fp.UploadedChunks,
		TotalChunks:    fp.TotalChunks,
		Percent:        fp.Percent,
	}
}

// ApplyError marks a file as failed. Its percent is left where it was.
func (t *Tracker) ApplyError(fileIndex int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[fileIndex].Status = parceltypes.StatusError
	t.files[fileIndex].Err = err
}

// ApplyReport merges a remote status report. It returns false and changes
// nothing when the report is older than what the tracker already holds
// (fewer total uploaded chunks) or carries nothing new, so out-of-order and
// duplicate feed payloads are both discarded.
func (t *Tracker) ApplyReport(rep *api.StatusReport) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	byName := make(map[string]int, len(t.files))
	current := 0
	for i := range t.files {
		byName[t.files[i].FileName] = i
		current += t.files[i].UploadedChunks
	}

	incoming := 0
	for _, fs := range rep.Files {
		incoming += fs.UploadedChunks
	}
	if incoming < current {
		return false
	}

	changed := false
	var bytes int64
	for _, fs := range rep.Files {
		i, ok := byName[fs.FileName]
		if !ok {
			continue
		}
		fp := &t.files[i]
		if fs.UploadedChunks > fp.UploadedChunks {
			fp.UploadedChunks = fs.UploadedChunks
			if fp.UploadedChunks > fp.TotalChunks {
				fp.UploadedChunks = fp.TotalChunks
			}
			changed = true
		}
		if fp.UploadedChunks > 0 && fp.Status == parceltypes.StatusPending {
			fp.Status = parceltypes.StatusUploading
			changed = true
		}
		t.recomputeLocked(fp)
		bytes += t.bytesForChunksLocked(fp)
	}
	if bytes > t.uploaded {
		t.uploaded = bytes
		changed = true
	}
	return changed
}

// Snapshot returns a fresh immutable view of the current counters.
func (t *Tracker) Snapshot(now time.Time) parceltypes.ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := parceltypes.ProgressSnapshot{
		Files:         make([]parceltypes.FileProgress, len(t.files)),
		UploadedBytes: t.uploaded,
		TotalBytes:    t.totalBytes,
	}
	copy(snap.Files, t.files)

	var sum float64
	for i := range t.files {
		sum += t.files[i].Percent
		if snap.CurrentFile == "" && t.files[i].Status == parceltypes.StatusUploading {
			snap.CurrentFile = t.files[i].FileName
		}
	}
	if len(t.files) > 0 {
		snap.OverallPercent = sum / float64(len(t.files))
	}
	if snap.OverallPercent > 100 {
		snap.OverallPercent = 100
	}

	elapsed := now.Sub(t.startTime).Seconds()
	if elapsed > 0 {
		snap.ThroughputBps = float64(t.uploaded) / elapsed
	}
	if snap.ThroughputBps > 0 {
		snap.ETASeconds = float64(t.totalBytes-t.uploaded) / snap.ThroughputBps
	}
	return snap
}

// recomputeLocked refreshes a file's percent and completion status.
// Percent never decreases.
func (t *Tracker) recomputeLocked(fp *parceltypes.FileProgress) {
	if fp.TotalChunks > 0 {
		pct := float64(fp.UploadedChunks) / float64(fp.TotalChunks) * 100
		if pct > fp.Percent {
			fp.Percent = pct
		}
	}
	if fp.UploadedChunks >= fp.TotalChunks && fp.Status != parceltypes.StatusError {
		fp.Status = parceltypes.StatusCompleted
	}
}

// bytesForChunksLocked converts a chunk count into confirmed bytes, with the
// trailing chunk clamped to the file size.
func (t *Tracker) bytesForChunksLocked(fp *parceltypes.FileProgress) int64 {
	b := int64(fp.UploadedChunks) * t.chunkSize
	if b > fp.FileSize {
		b = fp.FileSize
	}
	return b
}
