package direct

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/testutils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

func TestFetchToFile(t *testing.T) {
	payload := strings.Repeat("v", 4096)
	server := testutils.MockHTTPServer(t, map[string]testutils.MockResponse{
		"/ok.mp4":    {ContentType: "video/mp4", Body: payload},
		"/tiny.mp4":  {ContentType: "video/mp4", Body: "<html>"},
		"/gone.mp4":  {Status: http.StatusNotFound},
		"/large.mp4": {ContentType: "video/mp4", Body: strings.Repeat("x", 9000)},
	})

	cfg := testutils.TestConfig(t.TempDir())
	cfg.Download.MaxFileSize = 8192
	client := NewClient(cfg, "cdn.example.com")

	tests := []struct {
		name string
		path string
		want *tvgerrors.DomainError
	}{
		{"ok", "/ok.mp4", nil},
		{"too small", "/tiny.mp4", tvgerrors.ErrContentUnavailable},
		{"not found", "/gone.mp4", tvgerrors.ErrContentUnavailable},
		{"over limit", "/large.mp4", tvgerrors.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "media.mp4")
			n, err := client.FetchToFile(context.Background(), server.URL+tt.path, nil, out, nil)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Errorf("FetchToFile() error = %v, want %v", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchToFile() error = %v", err)
			}
			if n != int64(len(payload)) {
				t.Errorf("written = %d, want %d", n, len(payload))
			}
		})
	}
}

func TestFetchToFileRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(make([]byte, 2048))
	}))
	t.Cleanup(server.Close)

	client := NewClient(testutils.TestConfig(t.TempDir()), "cdn.example.com")
	if _, err := client.FetchToFile(context.Background(), server.URL, nil, filepath.Join(t.TempDir(), "m.mp4"), nil); err != nil {
		t.Fatalf("FetchToFile() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3", calls.Load())
	}
}

func TestGetText(t *testing.T) {
	server := testutils.MockHTTPServer(t, map[string]testutils.MockResponse{
		"/page": {ContentType: "text/html", Body: "<html>hello</html>"},
	})
	client := NewClient(testutils.TestConfig(t.TempDir()), "example.com")

	body, err := client.GetText(context.Background(), server.URL+"/page", map[string]string{"Referer": "https://example.com/"})
	if err != nil || body != "<html>hello</html>" {
		t.Fatalf("GetText() = %q, %v", body, err)
	}
	if _, err := client.GetText(context.Background(), server.URL+"/missing", nil); err == nil {
		t.Error("expected an error for 404")
	}
}
