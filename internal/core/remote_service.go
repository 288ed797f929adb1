package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vfaronov/httpheader"
	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

const (
	// DefaultTimeout bounds every request made to the WebUI.
	DefaultTimeout = 10 * time.Second

	// maxErrorBody limits how much of a failed response is kept for diagnostics.
	maxErrorBody = 1024
)

// RemoteService implements QueueService against a yt-dlp WebUI over HTTP.
type RemoteService struct {
	endpoint EndpointConfig
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

var _ QueueService = (*RemoteService)(nil)

// Option configures a RemoteService.
type Option func(*RemoteService)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *RemoteService) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *RemoteService) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(s *RemoteService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRemoteService creates a client for the WebUI at endpoint.
func NewRemoteService(endpoint EndpointConfig, opts ...Option) *RemoteService {
	s := &RemoteService{
		endpoint: endpoint,
		baseURL:  endpoint.BaseURL(),
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint returns the endpoint this service talks to.
func (s *RemoteService) Endpoint() EndpointConfig {
	return s.endpoint
}

// DownloadOptions mirrors the WebUI's download option schema.
type DownloadOptions struct {
	LocationName *string `json:"locationName"`
	AudioOnly    bool    `json:"audioOnly"`
	Force        bool    `json:"force"`
	Advanced     bool    `json:"advanced"`
}

// DownloadBody is the JSON payload for POST /api/download.
type DownloadBody struct {
	URLs    []string        `json:"urls"`
	Options DownloadOptions `json:"options"`
}

// NewDownloadBody builds the payload for req. Advanced is always set so the
// WebUI honors the explicit options instead of its presets.
func NewDownloadBody(req types.DownloadRequest) DownloadBody {
	return DownloadBody{
		URLs: []string{req.URL},
		Options: DownloadOptions{
			LocationName: req.Location,
			AudioOnly:    req.AudioOnly,
			Force:        req.Force,
			Advanced:     true,
		},
	}
}

// doRequest performs a single exchange. The response body is always closed
// before returning; on success the body is handed to decode.
func (s *RemoteService) doRequest(ctx context.Context, method, path string, body any, decode func(*http.Response) error) error {
	op := method + " " + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("request failed",
			zap.String("op", op), zap.String("request_id", requestID), zap.Error(err))
		return &TransportError{Kind: Unreachable, Op: op, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	s.logger.Debug("request completed",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return rejected(op, resp)
	}
	if decode == nil {
		return nil
	}
	return decode(resp)
}

func rejected(op string, resp *http.Response) *TransportError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	te := &TransportError{
		Kind:   Rejected,
		Op:     op,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(raw)),
	}
	// SvelteKit's json() errors look like {"error": "..."}; prefer the message.
	if mtype, _ := httpheader.ContentType(resp.Header); mtype == "application/json" {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			te.Body = payload.Error
		}
	}
	return te
}

// decodeJSON decodes a 200 body into out. An HTML body (the WebUI's page
// fallback for unknown routes) is reported as a DecodeError up front.
func decodeJSON(op string, resp *http.Response, out any) error {
	if mtype, _ := httpheader.ContentType(resp.Header); strings.HasPrefix(mtype, "text/html") {
		return &DecodeError{Op: op, Cause: fmt.Errorf("unexpected content type %s", mtype)}
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return &TransportError{Kind: Unreachable, Op: op, Cause: err}
		}
		return &DecodeError{Op: op, Cause: err}
	}
	return nil
}

// SubmitDownload issues POST /api/download for a single URL. Any 200 counts as
// success; the acknowledgment body is parsed on a best-effort basis.
func (s *RemoteService) SubmitDownload(ctx context.Context, req types.DownloadRequest) (types.Ack, error) {
	if strings.TrimSpace(req.URL) == "" {
		return types.Ack{}, NewValidationError("url", "is required")
	}

	var ack types.Ack
	err := s.doRequest(ctx, http.MethodPost, "/api/download", NewDownloadBody(req), func(resp *http.Response) error {
		var payload struct {
			Message string `json:"message"`
			Tasks   []struct {
				ID string `json:"id"`
			} `json:"tasks"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) != nil {
			return nil
		}
		ack.Message = payload.Message
		for _, t := range payload.Tasks {
			if t.ID != "" {
				ack.TaskIDs = append(ack.TaskIDs, t.ID)
			}
		}
		return nil
	})
	if err != nil {
		return types.Ack{}, err
	}
	return ack, nil
}

// FetchQueue issues GET /api/queue and returns the normalized snapshot.
func (s *RemoteService) FetchQueue(ctx context.Context) (types.QueueSnapshot, error) {
	var snap types.QueueSnapshot
	err := s.doRequest(ctx, http.MethodGet, "/api/queue", nil, func(resp *http.Response) error {
		return decodeJSON("GET /api/queue", resp, &snap)
	})
	if err != nil {
		return types.QueueSnapshot{}, err
	}
	return snap.Normalize(), nil
}

// CancelTask issues POST /api/queue/cancel.
func (s *RemoteService) CancelTask(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, NewValidationError("id", "is required")
	}

	var result struct {
		Success bool `json:"success"`
	}
	err := s.doRequest(ctx, http.MethodPost, "/api/queue/cancel", map[string]string{"id": id}, func(resp *http.Response) error {
		return decodeJSON("POST /api/queue/cancel", resp, &result)
	})
	if err != nil {
		return false, err
	}
	return result.Success, nil
}

// ClearCompleted issues POST /api/queue/clear.
func (s *RemoteService) ClearCompleted(ctx context.Context) error {
	return s.doRequest(ctx, http.MethodPost, "/api/queue/clear", nil, nil)
}

// Locations issues GET /api/config and returns the location names.
func (s *RemoteService) Locations(ctx context.Context) ([]string, error) {
	var cfg struct {
		Locations []string `json:"locations"`
	}
	err := s.doRequest(ctx, http.MethodGet, "/api/config", nil, func(resp *http.Response) error {
		return decodeJSON("GET /api/config", resp, &cfg)
	})
	if err != nil {
		return nil, err
	}
	if cfg.Locations == nil {
		return []string{}, nil
	}
	return cfg.Locations, nil
}
