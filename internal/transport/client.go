// Package transport implements the remote upload service boundary over
// HTTP, with a WebSocket push channel for status updates.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/SinghAman21/silentparcel-uploader/errors"
	"github.com/SinghAman21/silentparcel-uploader/internal/api"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

// Client talks the upload protocol to a remote endpoint.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// New creates a transport client for the given endpoint.
func New(endpoint string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.NewError("transport", errors.ErrValidation).
			WithMessage("endpoint must be an absolute URL")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: base, http: httpClient, logger: logger}, nil
}

// wire payloads

type initRequest struct {
	Files        []wireFile `json:"files"`
	Password     string     `json:"password,omitempty"`
	MaxDownloads int        `json:"maxDownloads,omitempty"`
}

type wireFile struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	RelativePath string `json:"relativePath,omitempty"`
}

type initResponse struct {
	UploadID string `json:"uploadId"`
}

type chunkResponse struct {
	UploadedChunks  int     `json:"uploadedChunks"`
	TotalChunks     int     `json:"totalChunks"`
	ProgressPercent float64 `json:"progressPercent"`
}

type statusPayload struct {
	Progress []struct {
		FileName       string  `json:"fileName"`
		UploadedChunks int     `json:"uploadedChunks"`
		TotalChunks    int     `json:"totalChunks"`
		Progress       float64 `json:"progress"`
	} `json:"progress"`
	Error string `json:"error,omitempty"`
}

type completeResponse struct {
	DownloadLocation string   `json:"downloadLocation"`
	EditLocation     string   `json:"editLocation"`
	AssembledFileIDs []string `json:"assembledFileIds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Init registers a batch and returns the server-issued session id.
func (c *Client) Init(ctx context.Context, files []parceltypes.FileDescriptor, policy api.Policy) (*api.InitResult, error) {
	req := initRequest{
		Files:        make([]wireFile, len(files)),
		Password:     policy.Password,
		MaxDownloads: policy.MaxDownloads,
	}
	for i, f := range files {
		req.Files[i] = wireFile{
			Name:         f.Name,
			Size:         f.Size,
			MimeType:     f.ContentType,
			RelativePath: f.RelativePath,
		}
	}

	var resp initResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("api", "uploads"), req, &resp); err != nil {
		return nil, errors.NewError("init", err)
	}
	if resp.UploadID == "" {
		return nil, errors.NewError("init", errors.ErrServer).
			WithMessage("server returned no upload id")
	}
	return &api.InitResult{UploadID: resp.UploadID}, nil
}

// Chunk stores one chunk. The chunk index rides in the query string so the
// server can assemble out-of-order arrivals by offset.
func (c *Client) Chunk(ctx context.Context, uploadID, fileName string, chunkIndex int, data []byte) (*api.ChunkResult, error) {
	u := c.endpoint("api", "uploads", uploadID, "chunks")
	q := u.Query()
	q.Set("fileName", fileName)
	q.Set("chunkIndex", strconv.Itoa(chunkIndex))
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewError("chunk", err).WithUploadID(uploadID).WithFile(fileName)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	var resp chunkResponse
	if err := c.send(httpReq, &resp); err != nil {
		return nil, errors.NewError("chunk", err).WithUploadID(uploadID).WithFile(fileName)
	}
	return &api.ChunkResult{
		UploadedChunks:  resp.UploadedChunks,
		TotalChunks:     resp.TotalChunks,
		ProgressPercent: resp.ProgressPercent,
	}, nil
}

// Status polls a single status snapshot for the session.
func (c *Client) Status(ctx context.Context, uploadID string) (*api.StatusReport, error) {
	var resp statusPayload
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("api", "uploads", uploadID, "status"), nil, &resp); err != nil {
		return nil, errors.NewError("status", err).WithUploadID(uploadID)
	}
	return resp.toReport(), nil
}

// Complete asks the server to assemble the batch.
func (c *Client) Complete(ctx context.Context, uploadID string) (*api.CompleteResult, error) {
	var resp completeResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("api", "uploads", uploadID, "complete"), nil, &resp); err != nil {
		return nil, errors.NewError("complete", err).WithUploadID(uploadID)
	}
	return &api.CompleteResult{
		DownloadLocation: resp.DownloadLocation,
		EditLocation:     resp.EditLocation,
		FileIDs:          resp.AssembledFileIDs,
	}, nil
}

// Abort asks the server to discard the partial session. Idempotent: an
// already-gone session is treated as success.
func (c *Client) Abort(ctx context.Context, uploadID string) error {
	err := c.doJSON(ctx, http.MethodDelete, c.endpoint("api", "uploads", uploadID), nil, nil)
	if err != nil && !errors.IsNotFound(err) {
		return errors.NewError("abort", err).WithUploadID(uploadID)
	}
	return nil
}

// Direct transfers the whole batch as one multipart request. Progress comes
// from transport-level byte counters as the body is consumed, one event per
// read tick.
func (c *Client) Direct(ctx context.Context, files []api.DirectFile, policy api.Policy, onProgress func(sent, total int64)) (*api.CompleteResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if policy.Password != "" {
		if err := mw.WriteField("password", policy.Password); err != nil {
			return nil, errors.NewError("direct", err)
		}
	}
	if policy.MaxDownloads > 0 {
		if err := mw.WriteField("maxDownloads", strconv.Itoa(policy.MaxDownloads)); err != nil {
			return nil, errors.NewError("direct", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Descriptor.Name)
		if err != nil {
			return nil, errors.NewError("direct", err).WithFile(f.Descriptor.Name)
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return nil, errors.NewError("direct", err).WithFile(f.Descriptor.Name)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, errors.NewError("direct", err)
	}

	total := int64(body.Len())
	var reader io.Reader = &body
	if onProgress != nil {
		reader = &countingReader{r: &body, total: total, tick: onProgress}
	}

	u := c.endpoint("api", "uploads", "direct")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), reader)
	if err != nil {
		return nil, errors.NewError("direct", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	httpReq.ContentLength = total

	var resp completeResponse
	if err := c.send(httpReq, &resp); err != nil {
		return nil, errors.NewError("direct", err)
	}
	return &api.CompleteResult{
		DownloadLocation: resp.DownloadLocation,
		EditLocation:     resp.EditLocation,
		FileIDs:          resp.AssembledFileIDs,
	}, nil
}

// countingReader reports cumulative bytes consumed from the request body.
type countingReader struct {
	r     io.Reader
	sent  int64
	total int64
	tick  func(sent, total int64)
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)
		cr.tick(cr.sent, cr.total)
	}
	return n, err
}

// endpoint joins path segments onto the base URL.
func (c *Client) endpoint(segments ...string) *url.URL {
	u := *c.base
	u = *u.JoinPath(segments...)
	return &u
}

// doJSON performs a request with an optional JSON body and decodes the
// JSON response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method string, u *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	return c.send(httpReq, out)
}

// send executes the request, maps protocol failures onto the error
// taxonomy, and decodes a successful JSON response.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", errors.ErrServer, err)
	}
	return nil
}

// decodeError maps an HTTP failure status onto the error taxonomy, keeping
// the server's message when one is present.
func decodeError(resp *http.Response) error {
	var sentinel error
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		sentinel = errors.ErrValidation
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		sentinel = errors.ErrPolicy
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		sentinel = errors.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		sentinel = errors.ErrIncomplete
	case resp.StatusCode >= 500:
		sentinel = errors.ErrServer
	default:
		sentinel = errors.ErrNetwork
	}

	var payload errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%w: %s", sentinel, payload.Error)
	}
	return fmt.Errorf("%w: http %d", sentinel, resp.StatusCode)
}

// toReport converts a wire status payload into the boundary type.
func (p *statusPayload) toReport() *api.StatusReport {
	rep := &api.StatusReport{Err: p.Error}
	for _, f := range p.Progress {
		rep.Files = append(rep.Files, api.FileStatus{
			FileName:       f.FileName,
			UploadedChunks: f.UploadedChunks,
			TotalChunks:    f.TotalChunks,
			Percent:        f.Progress,
		})
	}
	return rep
}
