// Package monitor observes a remote session's progress independently of the
// transfer path.
//
// It prefers the server's push feed and falls back to polling when the feed
// cannot be opened or drops. The switch is one-directional: once polling, a
// monitor never tries to reopen the feed.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/internal/progress"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// DefaultPollInterval is the poll cadence used when none is configured.
const DefaultPollInterval = 2 * time.Second

// Config carries the monitor's knobs.
type Config struct {
	PollInterval time.Duration
	Logger       *slog.Logger

	// OnSnapshot receives a fresh snapshot after every accepted update.
	OnSnapshot func(parceltypes.ProgressSnapshot)
}

// Monitor follows one session's remote progress. It keeps its own counters
// so it can run detached from the goroutines doing the transfer.
type Monitor struct {
	svc      api.Service
	uploadID string
	tracker  *progress.Tracker
	cfg      Config
	log      *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a monitor for the given active session.
func New(svc api.Service, uploadID string, files []parceltypes.FileDescriptor, chunkSize int64, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		svc:      svc,
		uploadID: uploadID,
		tracker:  progress.NewTracker(files, chunkSize, time.Now()),
		cfg:      cfg,
		log:      cfg.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the monitor loop. It returns immediately; updates arrive on
// the OnSnapshot callback until Stop is called or the context ends.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// Stop ends the monitor and waits for its loop to exit. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Snapshot returns the monitor's current view.
func (m *Monitor) Snapshot() parceltypes.ProgressSnapshot {
	return m.tracker.Snapshot(time.Now())
}

func (m *Monitor) run(parent context.Context) {
	defer close(m.done)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-m.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if m.consumeFeed(ctx) {
		return
	}
	if ctx.Err() != nil {
		return
	}
	m.log.Debug("status feed unavailable, polling", "uploadId", m.uploadID, "interval", m.cfg.PollInterval)
	m.poll(ctx)
}

// consumeFeed drains the push feed. It returns true when the monitor is
// done (stopped or cancelled) and false when the caller should fall back
// to polling.
func (m *Monitor) consumeFeed(ctx context.Context) bool {
	stream, err := m.svc.Subscribe(ctx, m.uploadID)
	if err != nil {
		m.log.Debug("subscribe failed", "uploadId", m.uploadID, "error", err)
		return false
	}
	defer stream.Close()

	for {
		rep, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			m.log.Debug("status feed dropped", "uploadId", m.uploadID, "error", err)
			return false
		}
		m.apply(rep)
	}
}

// poll fetches status snapshots on a fixed cadence. A poll failure ends the
// monitor quietly; progress reporting is advisory and must never fail an
// upload.
func (m *Monitor) poll(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rep, err := m.svc.Status(ctx, m.uploadID)
		if err != nil {
			if ctx.Err() == nil {
				m.log.Debug("status poll failed, monitor stopping", "uploadId", m.uploadID, "error", err)
			}
			return
		}
		m.apply(rep)
	}
}

// apply merges one report, discarding stale payloads, and publishes the
// resulting snapshot.
func (m *Monitor) apply(rep *api.StatusReport) {
	if rep == nil {
		return
	}
	if !m.tracker.ApplyReport(rep) {
		m.log.Debug("stale or duplicate status report discarded", "uploadId", m.uploadID)
		return
	}
	if m.cfg.OnSnapshot != nil {
		m.cfg.OnSnapshot(m.tracker.Snapshot(time.Now()))
	}
}
