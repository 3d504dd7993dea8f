package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SinghAman21/silentparcel-uploader/errors"
	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	return c, srv
}

func TestNewRejectsRelativeEndpoint(t *testing.T) {
	_, err := New("not-a-url", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestInit(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/uploads", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var req struct {
			Files []struct {
				Name     string `json:"name"`
				Size     int64  `json:"size"`
				MimeType string `json:"mimeType"`
			} `json:"files"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Files, 1)
		assert.Equal(t, "a.txt", req.Files[0].Name)
		assert.Equal(t, "s3cret", req.Password)

		json.NewEncoder(w).Encode(map[string]string{"uploadId": "u-42"})
	}))

	res, err := c.Init(context.Background(),
		[]parceltypes.FileDescriptor{{Name: "a.txt", Size: 10, ContentType: "text/plain"}},
		api.Policy{Password: "s3cret"})

	require.NoError(t, err)
	assert.Equal(t, "u-42", res.UploadID)
}

func TestInitRejectsEmptyUploadID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))

	_, err := c.Init(context.Background(), nil, api.Policy{})
	require.ErrorIs(t, err, errors.ErrServer)
}

func TestChunk(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/uploads/u-1/chunks", r.URL.Path)
		assert.Equal(t, "a.bin", r.URL.Query().Get("fileName"))
		assert.Equal(t, "2", r.URL.Query().Get("chunkIndex"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte("chunk-data"), body)

		json.NewEncoder(w).Encode(map[string]any{
			"uploadedChunks": 3, "totalChunks": 5, "progressPercent": 60.0,
		})
	}))

	res, err := c.Chunk(context.Background(), "u-1", "a.bin", 2, []byte("chunk-data"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.UploadedChunks)
	assert.Equal(t, 5, res.TotalChunks)
	assert.Equal(t, 60.0, res.ProgressPercent)
}

func TestStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/uploads/u-1/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"progress": []map[string]any{
				{"fileName": "a.bin", "uploadedChunks": 1, "totalChunks": 4, "progress": 25.0},
			},
		})
	}))

	rep, err := c.Status(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, rep.Files, 1)
	assert.Equal(t, "a.bin", rep.Files[0].FileName)
	assert.Equal(t, 25.0, rep.Files[0].Percent)
}

func TestComplete(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/uploads/u-1/complete", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"downloadLocation": "/files/abc",
			"editLocation":     "/files/abc/edit",
			"assembledFileIds": []string{"f1"},
		})
	}))

	res, err := c.Complete(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "/files/abc", res.DownloadLocation)
	assert.Equal(t, "/files/abc/edit", res.EditLocation)
	assert.Equal(t, []string{"f1"}, res.FileIDs)
}

func TestAbortTreatsGoneSessionAsSuccess(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))

	assert.NoError(t, c.Abort(context.Background(), "u-1"))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "bad request", status: http.StatusBadRequest, want: errors.ErrValidation},
		{name: "forbidden", status: http.StatusForbidden, want: errors.ErrPolicy},
		{name: "too many requests", status: http.StatusTooManyRequests, want: errors.ErrPolicy},
		{name: "not found", status: http.StatusNotFound, want: errors.ErrNotFound},
		{name: "gone", status: http.StatusGone, want: errors.ErrNotFound},
		{name: "conflict", status: http.StatusConflict, want: errors.ErrIncomplete},
		{name: "internal error", status: http.StatusInternalServerError, want: errors.ErrServer},
		{name: "bad gateway", status: http.StatusBadGateway, want: errors.ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			}))

			_, err := c.Status(context.Background(), "u-1")
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope", "server message is kept")
		})
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := c.Status(context.Background(), "u-1")
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestDirect(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/uploads/direct", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "pw", r.FormValue("password"))
		assert.Equal(t, "2", r.FormValue("maxDownloads"))

		parts := r.MultipartForm.File["files"]
		require.Len(t, parts, 2)
		assert.Equal(t, "a.txt", parts[0].Filename)

		f, err := parts[0].Open()
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "hello", string(content))

		json.NewEncoder(w).Encode(map[string]any{
			"downloadLocation": "/files/xyz",
			"assembledFileIds": []string{"f1", "f2"},
		})
	}))

	var lastSent, lastTotal int64
	files := []api.DirectFile{
		{Descriptor: parceltypes.FileDescriptor{Name: "a.txt", Size: 5}, Body: readerOf("hello")},
		{Descriptor: parceltypes.FileDescriptor{Name: "b.txt", Size: 5}, Body: readerOf("world")},
	}

	res, err := c.Direct(context.Background(), files,
		api.Policy{Password: "pw", MaxDownloads: 2},
		func(sent, total int64) { lastSent, lastTotal = sent, total })

	require.NoError(t, err)
	assert.Equal(t, "/files/xyz", res.DownloadLocation)
	assert.Equal(t, lastTotal, lastSent, "progress must reach the full body size")
	assert.Greater(t, lastTotal, int64(0))
}

func readerOf(s string) io.Reader {
	return &sliceReader{data: []byte(s)}
}

type sliceReader struct {
	data []byte
	off  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

func TestSubscribeReceivesReports(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/uploads/u-1/status/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for i := 1; i <= 2; i++ {
			err := conn.WriteJSON(map[string]any{
				"progress": []map[string]any{
					{"fileName": "a.bin", "uploadedChunks": i, "totalChunks": 2, "progress": float64(i) * 50},
				},
			})
			require.NoError(t, err)
		}
		// hold the connection open until the client closes
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	stream, err := c.Subscribe(context.Background(), "u-1")
	require.NoError(t, err)
	defer stream.Close()

	for i := 1; i <= 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		rep, err := stream.Next(ctx)
		cancel()
		require.NoError(t, err)
		require.Len(t, rep.Files, 1)
		assert.Equal(t, i, rep.Files[0].UploadedChunks)
	}

	assert.NoError(t, stream.Close(), "double close is safe")
}

func TestSubscribeNextForgetsEarlierDeadline(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		write := func(chunks int) error {
			return conn.WriteJSON(map[string]any{
				"progress": []map[string]any{
					{"fileName": "a.bin", "uploadedChunks": chunks, "totalChunks": 2},
				},
			})
		}
		require.NoError(t, write(1))
		// deliver the second report well past the first call's deadline
		time.Sleep(300 * time.Millisecond)
		require.NoError(t, write(2))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	stream, err := c.Subscribe(context.Background(), "u-1")
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	rep, err := stream.Next(ctx)
	cancel()
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Files[0].UploadedChunks)

	rep, err = stream.Next(context.Background())
	require.NoError(t, err, "a deadline-free call must not inherit the earlier deadline")
	assert.Equal(t, 2, rep.Files[0].UploadedChunks)
}

func TestSubscribeFailsWithoutServer(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	_ = srv

	_, err := c.Subscribe(context.Background(), "u-1")
	require.Error(t, err)
}

func TestChunkIndexRoundTrip(t *testing.T) {
	var got []int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx, err := strconv.Atoi(r.URL.Query().Get("chunkIndex"))
		require.NoError(t, err)
		got = append(got, idx)
		json.NewEncoder(w).Encode(map[string]any{"uploadedChunks": len(got)})
	}))

	for i := 0; i < 3; i++ {
		_, err := c.Chunk(context.Background(), "u-1", "a.bin", i, []byte{0})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}
