package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
	"github.com/surge-downloader/ytdlp-remote/internal/core"
	"github.com/surge-downloader/ytdlp-remote/internal/events"
	"github.com/surge-downloader/ytdlp-remote/internal/poller"
	"github.com/surge-downloader/ytdlp-remote/internal/testutil"
	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

func TestAdd_NoWebUIConfigured(t *testing.T) {
	isolateHome(t)
	_, _, err := runCLI(t, "add", "--direct", "https://example.com/v")
	if err == nil || !strings.Contains(err.Error(), "no WebUI configured") {
		t.Fatalf("err = %v, want missing WebUI error", err)
	}
}

func TestAdd_NoURL(t *testing.T) {
	isolateHome(t)
	_, _, err := runCLI(t, "add", "--host", "127.0.0.1")
	if err == nil || !strings.Contains(err.Error(), "no URL given") {
		t.Fatalf("err = %v", err)
	}
}

func TestAdd_DirectRecordsHistory(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)

	args := append([]string{"add", "--direct", "--audio-only"}, webuiFlags(fake)...)
	args = append(args, "https://example.com/v")
	stdout, stderr, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("add: %v (stderr %q)", err, stderr)
	}
	if !strings.Contains(stdout, "Queued: example.com/v (Added 1 tasks to queue)") {
		t.Errorf("stdout = %q", stdout)
	}

	downloads := fake.Downloads(t)
	if len(downloads) != 1 || !downloads[0].Options.AudioOnly {
		t.Fatalf("downloads = %+v", downloads)
	}

	stdout, _, err = runCLI(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout, "queued") || !strings.Contains(stdout, "example.com/v") {
		t.Errorf("history output = %q", stdout)
	}
}

func TestAdd_DirectRejected(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)
	fake.SetDownloadReply(http.StatusBadRequest, `{"error":"bad url"}`)

	args := append([]string{"add", "--direct"}, webuiFlags(fake)...)
	args = append(args, "https://example.com/v")
	_, stderr, err := runCLI(t, args...)
	if err == nil {
		t.Fatal("expected an error when the WebUI rejects the download")
	}
	if !strings.Contains(stderr, "WebUI rejected the request") {
		t.Errorf("stderr = %q", stderr)
	}

	stdout, _, err := runCLI(t, "history", "--failed")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "failed") {
		t.Errorf("failed history = %q", stdout)
	}
}

func TestAdd_Batch(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)

	batch := filepath.Join(t.TempDir(), "urls.txt")
	content := "# playlist\nhttps://example.com/1\n\nhttps://example.com/2\n"
	if err := os.WriteFile(batch, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	args := append([]string{"add", "--direct", "--batch", batch}, webuiFlags(fake)...)
	if _, _, err := runCLI(t, args...); err != nil {
		t.Fatalf("add: %v", err)
	}
	if n := fake.Count(http.MethodPost, "/api/download"); n != 2 {
		t.Errorf("downloads = %d, want 2", n)
	}
}

func TestAdd_Clipboard(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)

	orig := readClipboard
	readClipboard = func() (string, error) { return "  https://example.com/clip \n", nil }
	defer func() { readClipboard = orig }()

	args := append([]string{"add", "--direct", "--clipboard"}, webuiFlags(fake)...)
	if _, _, err := runCLI(t, args...); err != nil {
		t.Fatalf("add: %v", err)
	}
	downloads := fake.Downloads(t)
	if len(downloads) != 1 || downloads[0].URLs[0] != "https://example.com/clip" {
		t.Errorf("downloads = %+v", downloads)
	}
}

func TestAdd_ViaDaemon(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)
	d := newTestDaemon(t, fake)
	srv := testutil.NewHTTPServerT(t, d.Handler())

	if err := config.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	saveActiveAddr(strings.TrimPrefix(srv.URL, "http://"))
	defer removeActiveAddr()

	args := append([]string{"add"}, webuiFlags(fake)...)
	args = append(args, "https://example.com/v")
	stdout, _, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(stdout, "Sent to daemon: example.com/v") {
		t.Errorf("stdout = %q", stdout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.dispatcher.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if n := fake.Count(http.MethodPost, "/api/download"); n != 1 {
		t.Errorf("downloads = %d, want 1", n)
	}
}

func TestStatus(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)
	fake.SetQueue(`{"active":null,"pending":[{"id":"p1","url":"https://example.com/one"}],"completed":[]}`)

	stdout, _, err := runCLI(t, append([]string{"status"}, webuiFlags(fake)...)...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"pending", "fresh", "example.com/one [p1]"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("status output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = runCLI(t, append([]string{"status", "--json"}, webuiFlags(fake)...)...)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var readings []map[string]any
	if err := json.Unmarshal([]byte(stdout), &readings); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(readings) != 3 || readings[1]["name"] != "pending" || readings[1]["value"] != float64(1) {
		t.Errorf("readings = %v", readings)
	}
}

func TestStatus_Unreachable(t *testing.T) {
	isolateHome(t)
	port := testutil.UnusedPort(t)

	stdout, _, err := runCLI(t, "status", "--host", "127.0.0.1", "--port", strconv.Itoa(port))
	if err == nil || !strings.Contains(err.Error(), "WebUI unreachable") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stdout, "uninitialized") {
		t.Errorf("readings should stay uninitialized:\n%s", stdout)
	}
}

func TestCancel(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)

	stdout, _, err := runCLI(t, append([]string{"cancel", "abc"}, webuiFlags(fake)...)...)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(stdout, "Cancelled: abc") {
		t.Errorf("stdout = %q", stdout)
	}
	if got := fake.Cancelled(); len(got) != 1 || got[0] != "abc" {
		t.Errorf("cancelled = %v", got)
	}
}

func TestConfigSetGet(t *testing.T) {
	home := isolateHome(t)

	stdout, _, err := runCLI(t, "config", "set", "port", "8080")
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	if strings.TrimSpace(stdout) != "port = 8080" {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = runCLI(t, "config", "get", "port")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "8080" {
		t.Errorf("config get port = %q", stdout)
	}

	// Flags override the saved value for the effective setting
	stdout, _, err = runCLI(t, "config", "get", "port", "--port", "9000")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "9000" {
		t.Errorf("effective port = %q, want 9000", stdout)
	}

	if _, _, err := runCLI(t, "config", "set", "bogus", "1"); err == nil {
		t.Error("unknown key should fail")
	}

	stdout, _, err = runCLI(t, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(stdout), home) {
		t.Errorf("settings path %q not under %q", stdout, home)
	}
}

func TestEnvOverridesSettings(t *testing.T) {
	isolateHome(t)
	t.Setenv(config.EnvHost, "webui.lan")

	stdout, _, err := runCLI(t, "config", "get", "host")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "webui.lan" {
		t.Errorf("host = %q", stdout)
	}
}

func TestLock_SingleInstance(t *testing.T) {
	isolateHome(t)

	ok, err := AcquireLock()
	if err != nil || !ok {
		t.Fatalf("first AcquireLock = %v, %v", ok, err)
	}
	defer func() { _ = ReleaseLock() }()

	other, err := AcquireLock()
	if err != nil {
		t.Fatal(err)
	}
	if other {
		t.Error("second AcquireLock succeeded while the lock was held")
	}

	if err := ReleaseLock(); err != nil {
		t.Fatal(err)
	}
	ok, err = AcquireLock()
	if err != nil || !ok {
		t.Errorf("AcquireLock after release = %v, %v", ok, err)
	}
}

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "https://a.example\n  # comment\n\n  https://b.example  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	urls, err := readURLsFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 || urls[0] != "https://a.example" || urls[1] != "https://b.example" {
		t.Errorf("urls = %q", urls)
	}

	if _, err := readURLsFromFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&core.TransportError{Kind: core.Unreachable, Op: "GET /api/queue", Cause: errors.New("refused")}, "WebUI unreachable"},
		{&core.TransportError{Kind: core.Rejected, Op: "POST /api/download", Status: 500}, "WebUI rejected the request"},
		{&core.DecodeError{Op: "GET /api/queue", Cause: errors.New("eof")}, "unexpected reply from WebUI"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := describeError(tt.err); !strings.HasPrefix(got, tt.want) {
			t.Errorf("describeError(%v) = %q, want prefix %q", tt.err, got, tt.want)
		}
	}
}

func TestDescribeEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	snap := types.QueueSnapshot{
		Active:  types.Item{"id": "a"},
		Pending: []types.Item{{"id": "p1"}, {"id": "p2"}},
	}

	tests := []struct {
		msg  any
		want string
	}{
		{events.ReadingsUpdatedMsg{Readings: poller.DeriveReadings(snap, at), At: at}, "[09:30:00] active=1 pending=2 completed=0"},
		{events.DownloadQueuedMsg{TaskID: "0123456789", URL: "https://example.com/v"}, "Queued: example.com/v [01234567]"},
		{events.TaskCancelledMsg{ID: "x", Success: false}, "Cancel refused: x"},
		{42, ""},
	}
	for _, tt := range tests {
		if got := describeEvent(tt.msg); got != tt.want {
			t.Errorf("describeEvent(%T) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}
