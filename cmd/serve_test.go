package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
	"github.com/surge-downloader/ytdlp-remote/internal/testutil"
)

// useSettingsFor points the package settings at the fake WebUI for the test.
func useSettingsFor(t *testing.T, fake *testutil.FakeWebUI) {
	t.Helper()
	prev := settings
	s := config.DefaultSettings()
	s.Endpoint.Host, s.Endpoint.Port = fake.HostPort()
	settings = s
	t.Cleanup(func() { settings = prev })
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func allReadingsFresh(addr string) bool {
	resp, err := http.Get("http://" + addr + "/readings")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	var readings []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&readings); err != nil || len(readings) == 0 {
		return false
	}
	for _, r := range readings {
		if r["state"] != "fresh" {
			return false
		}
	}
	return true
}

func TestRunDaemon_Lifecycle(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)
	fake.SetQueue(`{"active":null,"pending":[{"id":"p1"}],"completed":[]}`)
	useSettingsFor(t, fake)
	if err := config.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- runDaemon(ctx, "127.0.0.1:0", time.Hour, io.Discard)
	}()

	var addr string
	waitFor(t, "address file", func() bool {
		addr = readActiveAddr()
		return addr != ""
	})
	if readPID() == 0 {
		t.Error("pid file not written")
	}

	// The first poll runs at startup, not after the interval.
	waitFor(t, "fresh readings", func() bool { return allReadingsFresh(addr) })

	// Keep an event stream open across shutdown.
	streamCtx, streamCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer streamCancel()
	req, _ := http.NewRequestWithContext(streamCtx, http.MethodGet, "http://"+addr+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	cancel()
	start := time.Now()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("runDaemon: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runDaemon did not return after cancel")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown took %v with an event subscriber", elapsed)
	}

	if got := readActiveAddr(); got != "" {
		t.Errorf("address file still present: %q", got)
	}
	if readPID() != 0 {
		t.Error("pid file still present")
	}
}

func TestServe_RefusesSecondInstance(t *testing.T) {
	isolateHome(t)
	fake := testutil.NewFakeWebUI(t)

	ok, err := AcquireLock()
	if err != nil || !ok {
		t.Fatalf("AcquireLock = %v, %v", ok, err)
	}
	held := instanceLock
	instanceLock = nil
	defer func() { _ = held.Unlock() }()

	args := append([]string{"serve", "--quiet", "--listen", "127.0.0.1:0"}, webuiFlags(fake)...)
	_, _, err = runCLI(t, args...)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("err = %v, want refusal", err)
	}
	if n := fake.Count(http.MethodGet, "/api/queue"); n != 0 {
		t.Errorf("refused daemon polled the WebUI %d times", n)
	}
}
