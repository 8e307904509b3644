package testutils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
)

const (
	tickerInterval = 10 * time.Millisecond
	testFileMode   = 0o600
	byteRange      = 256
)

// TestConfig returns a valid configuration rooted at tempDir with short timeouts.
func TestConfig(tempDir string) *config.Config {
	return &config.Config{
		BotToken:     "test-bot-token",
		DownloadsDir: tempDir,
		Lang:         "en",
		LogLevel:     "error",

		Download: config.DownloadConfig{
			MaxFileSize:            config.DefaultMaxFileSize,
			DownloadTimeout:        5 * time.Second,
			ConversionTimeout:      5 * time.Second,
			ProgressUpdateInterval: 0,
			QualityLadder:          []int{720, 480, 360},
			MinFreeSpace:           0,
		},

		Tools: config.ToolsConfig{
			YtDlpPath:   "yt-dlp",
			FfmpegPath:  "ffmpeg",
			FfprobePath: "ffprobe",
		},

		Services: config.ServicesConfig{
			UserAgent: "test-agent",
		},
	}
}

// CreateTestDataFile writes a file of size bytes with a repeating pattern.
func CreateTestDataFile(t *testing.T, dir, name string, size int64) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % byteRange)
	}
	if err := os.WriteFile(filePath, data, testFileMode); err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}
	return filePath
}

// CreateSparseFile creates a file that reports size bytes without using the disk space.
func CreateSparseFile(t *testing.T, dir, name string, size int64) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	f, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("Failed to create sparse file: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("Failed to size sparse file: %v", err)
	}
	return filePath
}

// MockResponse is one canned reply served by MockHTTPServer.
type MockResponse struct {
	Status      int
	ContentType string
	Body        string
}

// MockHTTPServer serves responses keyed by URL path and 404 for everything else.
func MockHTTPServer(t *testing.T, responses map[string]MockResponse) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, exists := responses[r.URL.Path]
		if !exists {
			http.NotFound(w, r)
			return
		}
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		if resp.Status != 0 {
			w.WriteHeader(resp.Status)
		}
		if _, err := io.WriteString(w, resp.Body); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))

	t.Cleanup(server.Close)
	return server
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Expected file %s to exist, but it doesn't", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err == nil {
		t.Errorf("Expected file %s to not exist, but it does", path)
	}
}

// AssertDirEmpty fails when dir has any entries. A missing dir counts as empty.
func AssertDirEmpty(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("Failed to read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected %s to be empty, found %v", dir, names)
	}
}

// WaitForCondition polls condition until it holds or timeout passes.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
