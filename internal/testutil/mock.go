// Package testutil provides shared test doubles for the upload service
// boundary.
package testutil

import (
	"context"
	"sync"

	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// MockService implements api.Service for testing. Configure behavior by
// setting the function fields; unset fields return benign defaults.
type MockService struct {
	InitFunc      func(ctx context.Context, files []parceltypes.FileDescriptor, policy api.Policy) (*api.InitResult, error)
	ChunkFunc     func(ctx context.Context, uploadID, fileName string, chunkIndex int, data []byte) (*api.ChunkResult, error)
	StatusFunc    func(ctx context.Context, uploadID string) (*api.StatusReport, error)
	SubscribeFunc func(ctx context.Context, uploadID string) (api.StatusStream, error)
	CompleteFunc  func(ctx context.Context, uploadID string) (*api.CompleteResult, error)
	AbortFunc     func(ctx context.Context, uploadID string) error
	DirectFunc    func(ctx context.Context, files []api.DirectFile, policy api.Policy, onProgress func(sent, total int64)) (*api.CompleteResult, error)

	mu     sync.Mutex
	counts map[string]int
}

// Calls returns how many times the named method has been invoked.
func (m *MockService) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

func (m *MockService) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
}

func (m *MockService) Init(ctx context.Context, files []parceltypes.FileDescriptor, policy api.Policy) (*api.InitResult, error) {
	m.record("Init")
	if m.InitFunc != nil {
		return m.InitFunc(ctx, files, policy)
	}
	return &api.InitResult{UploadID: "mock-upload"}, nil
}

func (m *MockService) Chunk(ctx context.Context, uploadID, fileName string, chunkIndex int, data []byte) (*api.ChunkResult, error) {
	m.record("Chunk")
	if m.ChunkFunc != nil {
		return m.ChunkFunc(ctx, uploadID, fileName, chunkIndex, data)
	}
	return &api.ChunkResult{}, nil
}

func (m *MockService) Status(ctx context.Context, uploadID string) (*api.StatusReport, error) {
	m.record("Status")
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, uploadID)
	}
	return &api.StatusReport{}, nil
}

func (m *MockService) Subscribe(ctx context.Context, uploadID string) (api.StatusStream, error) {
	m.record("Subscribe")
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, uploadID)
	}
	return &MockStream{}, nil
}

func (m *MockService) Complete(ctx context.Context, uploadID string) (*api.CompleteResult, error) {
	m.record("Complete")
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, uploadID)
	}
	return &api.CompleteResult{}, nil
}

func (m *MockService) Abort(ctx context.Context, uploadID string) error {
	m.record("Abort")
	if m.AbortFunc != nil {
		return m.AbortFunc(ctx, uploadID)
	}
	return nil
}

func (m *MockService) Direct(ctx context.Context, files []api.DirectFile, policy api.Policy, onProgress func(sent, total int64)) (*api.CompleteResult, error) {
	m.record("Direct")
	if m.DirectFunc != nil {
		return m.DirectFunc(ctx, files, policy, onProgress)
	}
	return &api.CompleteResult{}, nil
}

// MockStream implements api.StatusStream for testing. With no NextFunc set,
// Next blocks until the context ends, which mimics a quiet feed.
type MockStream struct {
	NextFunc  func(ctx context.Context) (*api.StatusReport, error)
	CloseFunc func() error
}

func (s *MockStream) Next(ctx context.Context) (*api.StatusReport, error) {
	if s.NextFunc != nil {
		return s.NextFunc(ctx)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *MockStream) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}
