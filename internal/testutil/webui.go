// Package testutil provides a fake yt-dlp WebUI for tests.
package testutil

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// RecordedRequest is one request received by the fake WebUI.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// DownloadPayload is the decoded body of a POST /api/download.
type DownloadPayload struct {
	URLs    []string `json:"urls"`
	Options struct {
		LocationName *string `json:"locationName"`
		AudioOnly    bool    `json:"audioOnly"`
		Force        bool    `json:"force"`
		Advanced     bool    `json:"advanced"`
	} `json:"options"`
}

type reply struct {
	status      int
	body        string
	contentType string
}

// FakeWebUI serves the /api routes of the WebUI from canned replies.
type FakeWebUI struct {
	Server *httptest.Server

	mu        sync.Mutex
	replies   map[string]reply
	requests  []RecordedRequest
	cancelled []string
}

const (
	routeDownload = "POST /api/download"
	routeQueue    = "GET /api/queue"
	routeCancel   = "POST /api/queue/cancel"
	routeClear    = "POST /api/queue/clear"
	routeConfig   = "GET /api/config"
)

// NewFakeWebUI starts a fake WebUI bound to IPv4 loopback. The test is skipped
// if no listener can be opened, and the server is closed on cleanup.
func NewFakeWebUI(t *testing.T) *FakeWebUI {
	t.Helper()
	f := &FakeWebUI{
		replies: map[string]reply{
			routeDownload: {status: http.StatusOK, body: `{"message":"Added 1 tasks to queue","tasks":[{"id":"abc123"}]}`},
			routeQueue:    {status: http.StatusOK, body: `{"active":null,"pending":[],"completed":[]}`},
			routeCancel:   {status: http.StatusOK, body: `{"success":true}`},
			routeClear:    {status: http.StatusOK, body: `{"success":true}`},
			routeConfig:   {status: http.StatusOK, body: `{"locations":["Default"]}`},
		},
	}
	f.Server = NewHTTPServerT(t, http.HandlerFunc(f.serve))
	return f
}

func (f *FakeWebUI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	route := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	if route == routeCancel {
		var payload struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(body, &payload) == nil {
			f.cancelled = append(f.cancelled, payload.ID)
		}
	}
	rep, ok := f.replies[route]
	f.mu.Unlock()

	if !ok {
		// The real WebUI falls back to its HTML shell for unknown routes.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<!doctype html><title>Not found</title>")
		return
	}
	ct := rep.contentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (f *FakeWebUI) set(route string, status int, body, contentType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[route] = reply{status: status, body: body, contentType: contentType}
}

// SetQueue makes GET /api/queue answer 200 with body.
func (f *FakeWebUI) SetQueue(body string) {
	f.set(routeQueue, http.StatusOK, body, "")
}

// SetQueueReply makes GET /api/queue answer with status, body and content type.
func (f *FakeWebUI) SetQueueReply(status int, body, contentType string) {
	f.set(routeQueue, status, body, contentType)
}

// SetDownloadReply makes POST /api/download answer with status and body.
func (f *FakeWebUI) SetDownloadReply(status int, body string) {
	f.set(routeDownload, status, body, "")
}

// SetConfig makes GET /api/config answer 200 with body.
func (f *FakeWebUI) SetConfig(body string) {
	f.set(routeConfig, http.StatusOK, body, "")
}

// SetCancelReply makes POST /api/queue/cancel answer with status and body.
func (f *FakeWebUI) SetCancelReply(status int, body string) {
	f.set(routeCancel, status, body, "")
}

// Requests returns a copy of every request received so far.
func (f *FakeWebUI) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Count returns how many requests hit method and path.
func (f *FakeWebUI) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Downloads decodes every POST /api/download body received.
func (f *FakeWebUI) Downloads(t *testing.T) []DownloadPayload {
	t.Helper()
	var out []DownloadPayload
	for _, r := range f.Requests() {
		if r.Method != http.MethodPost || r.Path != "/api/download" {
			continue
		}
		var p DownloadPayload
		if err := json.Unmarshal(r.Body, &p); err != nil {
			t.Fatalf("decode download body %q: %v", r.Body, err)
		}
		out = append(out, p)
	}
	return out
}

// Cancelled returns the ids received by POST /api/queue/cancel.
func (f *FakeWebUI) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

// HostPort returns the loopback host and port the server listens on.
func (f *FakeWebUI) HostPort() (string, int) {
	addr := f.Server.Listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// Port returns the listening port as a string.
func (f *FakeWebUI) Port() string {
	_, port := f.HostPort()
	return strconv.Itoa(port)
}

// Close stops the server so further requests fail to connect.
func (f *FakeWebUI) Close() {
	f.Server.Close()
}

// UnusedPort returns a loopback port with nothing listening on it.
func UnusedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
		return 0
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}
