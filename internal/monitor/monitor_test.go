package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SinghAman21/silentparcel-uploader/errors"
	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/internal/testutil"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

var monitorFiles = []parceltypes.FileDescriptor{{Name: "a.bin", Size: 3000}}

func report(chunks int) *api.StatusReport {
	return &api.StatusReport{Files: []api.FileStatus{
		{FileName: "a.bin", UploadedChunks: chunks, TotalChunks: 3},
	}}
}

// snapshotSink collects snapshots across goroutines.
type snapshotSink struct {
	mu    sync.Mutex
	snaps []parceltypes.ProgressSnapshot
}

func (s *snapshotSink) add(snap parceltypes.ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *snapshotSink) all() []parceltypes.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]parceltypes.ProgressSnapshot, len(s.snaps))
	copy(out, s.snaps)
	return out
}

func TestMonitorConsumesPushFeed(t *testing.T) {
	reports := make(chan *api.StatusReport, 2)
	reports <- report(1)
	reports <- report(3)

	svc := &testutil.MockService{
		SubscribeFunc: func(ctx context.Context, uploadID string) (api.StatusStream, error) {
			return &testutil.MockStream{
				NextFunc: func(ctx context.Context) (*api.StatusReport, error) {
					select {
					case r := <-reports:
						return r, nil
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				},
			}, nil
		},
	}

	sink := &snapshotSink{}
	m := New(svc, "u-1", monitorFiles, 1000, Config{OnSnapshot: sink.add})
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(sink.all()) == 2
	}, time.Second, 5*time.Millisecond)
	m.Stop()

	snaps := sink.all()
	assert.InDelta(t, 33.33, snaps[0].OverallPercent, 0.01)
	assert.Equal(t, float64(100), snaps[1].OverallPercent)
	assert.Zero(t, svc.Calls("Status"), "a healthy feed never polls")
}

func TestMonitorFallsBackToPolling(t *testing.T) {
	var polls atomic.Int32
	svc := &testutil.MockService{
		SubscribeFunc: func(ctx context.Context, uploadID string) (api.StatusStream, error) {
			return nil, fmt.Errorf("%w: no websocket", errors.ErrNetwork)
		},
		StatusFunc: func(ctx context.Context, uploadID string) (*api.StatusReport, error) {
			return report(int(polls.Add(1))), nil
		},
	}

	sink := &snapshotSink{}
	m := New(svc, "u-1", monitorFiles, 1000, Config{
		PollInterval: 5 * time.Millisecond,
		OnSnapshot:   sink.add,
	})
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(sink.all()) >= 2
	}, time.Second, 5*time.Millisecond)
	m.Stop()

	assert.Equal(t, 1, svc.Calls("Subscribe"), "the switch to polling is one-directional")
	snaps := sink.all()
	assert.Greater(t, snaps[len(snaps)-1].OverallPercent, snaps[0].OverallPercent)
}

func TestMonitorFallsBackWhenFeedDrops(t *testing.T) {
	delivered := atomic.Bool{}
	svc := &testutil.MockService{
		SubscribeFunc: func(ctx context.Context, uploadID string) (api.StatusStream, error) {
			return &testutil.MockStream{
				NextFunc: func(ctx context.Context) (*api.StatusReport, error) {
					if delivered.CompareAndSwap(false, true) {
						return report(1), nil
					}
					return nil, fmt.Errorf("%w: connection reset", errors.ErrNetwork)
				},
			}, nil
		},
		StatusFunc: func(ctx context.Context, uploadID string) (*api.StatusReport, error) {
			return report(2), nil
		},
	}

	sink := &snapshotSink{}
	m := New(svc, "u-1", monitorFiles, 1000, Config{
		PollInterval: 5 * time.Millisecond,
		OnSnapshot:   sink.add,
	})
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return svc.Calls("Status") >= 1
	}, time.Second, 5*time.Millisecond)
	m.Stop()

	assert.Equal(t, 1, svc.Calls("Subscribe"))
}

func TestMonitorDiscardsStaleReports(t *testing.T) {
	reports := make(chan *api.StatusReport, 2)
	reports <- report(2)
	reports <- report(1) // out of order

	svc := &testutil.MockService{
		SubscribeFunc: func(ctx context.Context, uploadID string) (api.StatusStream, error) {
			return &testutil.MockStream{
				NextFunc: func(ctx context.Context) (*api.StatusReport, error) {
					select {
					case r := <-reports:
						return r, nil
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				},
			}, nil
		},
	}

	sink := &snapshotSink{}
	m := New(svc, "u-1", monitorFiles, 1000, Config{OnSnapshot: sink.add})
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(reports) == 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	snaps := sink.all()
	require.Len(t, snaps, 1, "the stale report must not produce a snapshot")
	assert.InDelta(t, 66.67, snaps[0].OverallPercent, 0.01)
}

func TestMonitorIgnoresDuplicateReports(t *testing.T) {
	reports := make(chan *api.StatusReport, 2)
	reports <- report(2)
	reports <- report(2) // feed re-delivers the same payload

	svc := &testutil.MockService{
		SubscribeFunc: func(ctx context.Context, uploadID string) (api.StatusStream, error) {
			return &testutil.MockStream{
				NextFunc: func(ctx context.Context) (*api.StatusReport, error) {
					select {
					case r := <-reports:
						return r, nil
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				},
			}, nil
		},
	}

	sink := &snapshotSink{}
	m := New(svc, "u-1", monitorFiles, 1000, Config{OnSnapshot: sink.add})
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(reports) == 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	snaps := sink.all()
	require.Len(t, snaps, 1, "duplicate report must not produce a second snapshot")
	assert.InDelta(t, 66.67, snaps[0].OverallPercent, 0.01)
}

func TestMonitorStopsQuietlyOnPollError(t *testing.T) {
	svc := &testutil.MockService{
		SubscribeFunc: func(ctx context.Context, uploadID string) (api.StatusStream, error) {
			return nil, fmt.Errorf("%w: no websocket", errors.ErrNetwork)
		},
		StatusFunc: func(ctx context.Context, uploadID string) (*api.StatusReport, error) {
			return nil, fmt.Errorf("%w: boom", errors.ErrServer)
		},
	}

	m := New(svc, "u-1", monitorFiles, 1000, Config{PollInterval: 5 * time.Millisecond})
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return svc.Calls("Status") == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, svc.Calls("Status"), "a failed poll ends the monitor")
	m.Stop()
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	svc := &testutil.MockService{}
	m := New(svc, "u-1", monitorFiles, 1000, Config{})
	m.Start(context.Background())
	m.Stop()
	m.Stop()
}
