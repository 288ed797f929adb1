package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/config"
)

func runtimeFile(name string) string {
	return filepath.Join(config.GetRuntimeDir(), name)
}

// saveActiveAddr records the daemon's listen address for CLI discovery.
func saveActiveAddr(addr string) {
	if err := os.WriteFile(runtimeFile("addr"), []byte(addr), 0o644); err != nil {
		logger.Warn("failed to write address file", zap.Error(err))
	}
}

func removeActiveAddr() {
	if err := os.Remove(runtimeFile("addr")); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove address file", zap.Error(err))
	}
}

// readActiveAddr returns the running daemon's address or "".
func readActiveAddr() string {
	data, err := os.ReadFile(runtimeFile("addr"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func savePID() {
	pid := os.Getpid()
	if err := os.WriteFile(runtimeFile("pid"), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		logger.Warn("failed to write PID file", zap.Error(err))
	}
}

func removePID() {
	if err := os.Remove(runtimeFile("pid")); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove PID file", zap.Error(err))
	}
}

func readPID() int {
	data, err := os.ReadFile(runtimeFile("pid"))
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}

// readURLsFromFile reads URLs from a file, one per line. Blank lines and
// lines starting with # are skipped.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024 // long playlist URLs
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return urls, nil
}

// daemonResponse is the serve daemon's reply to POST /download.
type daemonResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
	Field  string `json:"field,omitempty"`
}

// sendToDaemon hands a raw download command to a running serve daemon.
func sendToDaemon(addr string, params map[string]any) (daemonResponse, error) {
	var out daemonResponse
	body, err := json.Marshal(params)
	if err != nil {
		return out, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/download", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return out, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(data, &out)
	if resp.StatusCode != http.StatusAccepted {
		if out.Error == "" {
			out.Error = strings.TrimSpace(string(data))
		}
		return out, fmt.Errorf("daemon error: %s - %s", resp.Status, out.Error)
	}
	return out, nil
}

// shortID trims a task id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
