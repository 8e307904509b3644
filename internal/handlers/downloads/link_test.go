package downloads

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/app"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/services"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/lang"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/mediacompat"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/platform"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/testutils"
)

const chatID = int64(42)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

type fileDownloader struct {
	t    *testing.T
	size int64
	name string
}

func (*fileDownloader) Name() string { return "file" }
func (*fileDownloader) Tiered() bool { return true }

func (d *fileDownloader) Download(
	_ context.Context, job *models.Job, _ quality.Tier, progress downloader.ProgressFunc,
) (string, error) {
	progress(50)
	progress(100)
	return testutils.CreateSparseFile(d.t, job.Dir, d.name, d.size), nil
}

type staticChain []downloader.Downloader

func (c staticChain) ChainFor(platform.Platform) []downloader.Downloader { return c }

type kindConverter struct {
	media models.MediaKind
}

func (c kindConverter) Convert(_ context.Context, path string, _ func()) (mediacompat.Result, error) {
	return mediacompat.Result{Path: path, Media: c.media}, nil
}

type panickingFetcher struct{}

func (panickingFetcher) Handle(
	context.Context, services.Request, services.Reporter, services.DeliverFunc,
) (*models.Job, error) {
	panic("boom")
}

type harness struct {
	app  *app.App
	bot  *testutils.MockBot
	root string
}

func newHarness(t *testing.T, media models.MediaKind) *harness {
	t.Helper()
	cfg := testutils.TestConfig(t.TempDir())
	files, err := filemanager.New(cfg.DownloadsDir)
	if err != nil {
		t.Fatal(err)
	}
	chain := staticChain{&fileDownloader{t: t, size: 2048, name: "clip.mp4"}}
	fetcher := services.NewFetchService(chain, kindConverter{media: media}, files, cfg)
	b := &testutils.MockBot{}
	return &harness{
		app:  app.New(context.Background(), cfg, b, fetcher),
		bot:  b,
		root: files.Root(),
	}
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	if !h.app.Wait(5 * time.Second) {
		t.Fatal("download job did not finish")
	}
}

func TestHandleDownloadLinkSuccess(t *testing.T) {
	h := newHarness(t, models.MediaVideo)

	HandleDownloadLink(h.app, chatID, 7, "look https://www.tiktok.com/@u/video/123 now")
	h.wait(t)

	uploads := h.bot.GetUploads()
	if len(uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(uploads))
	}
	if uploads[0].Audio || !uploads[0].Existed || filepath.Base(uploads[0].FilePath) != "clip.mp4" {
		t.Errorf("upload = %+v", uploads[0])
	}
	first := h.bot.SentMessages[0].Text
	if want := lang.Translate("general.status.downloading", map[string]any{"Platform": "TikTok"}); first != want {
		t.Errorf("status message = %q, want %q", first, want)
	}
	if edit := h.bot.GetLastEdit(); edit == nil || edit.Text != lang.Translate("general.status.done", nil) {
		t.Errorf("last edit = %+v", edit)
	}
	if len(h.bot.ChatActions) == 0 {
		t.Error("no chat action sent before upload")
	}
	testutils.AssertDirEmpty(t, h.root)
}

func TestHandleDownloadLinkAudio(t *testing.T) {
	h := newHarness(t, models.MediaAudio)

	HandleDownloadLink(h.app, chatID, 7, "https://www.smule.com/recording/x/123_456")
	h.wait(t)

	uploads := h.bot.GetUploads()
	if len(uploads) != 1 || !uploads[0].Audio {
		t.Fatalf("uploads = %+v, want one audio upload", uploads)
	}
	if edit := h.bot.GetLastEdit(); edit == nil || edit.Text != lang.Translate("general.status.done_audio", nil) {
		t.Errorf("last edit = %+v", edit)
	}
}

func TestHandleDownloadLinkUploadFailure(t *testing.T) {
	h := newHarness(t, models.MediaVideo)
	h.bot.SendVideoError = errors.New("telegram is down")

	HandleDownloadLink(h.app, chatID, 7, "https://youtu.be/abc")
	h.wait(t)

	want := UserErrorMessage(tvgerrors.ErrUploadFailed, h.app.Config)
	if edit := h.bot.GetLastEdit(); edit == nil || edit.Text != want {
		t.Errorf("last edit = %+v, want %q", edit, want)
	}
	testutils.AssertDirEmpty(t, h.root)
}

func TestHandleDownloadLinkRejected(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *tvgerrors.DomainError
	}{
		{"no link", "hello there", tvgerrors.ErrNoLink},
		{"unsupported", "https://vimeo.com/12345", tvgerrors.ErrUnsupportedURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, models.MediaVideo)
			HandleDownloadLink(h.app, chatID, 7, tt.text)
			h.wait(t)

			msg := h.bot.GetLastMessage()
			if msg == nil || msg.Text != UserErrorMessage(tt.want, h.app.Config) {
				t.Errorf("reply = %+v", msg)
			}
			if len(h.bot.SentMessages) != 1 || len(h.bot.GetUploads()) != 0 {
				t.Errorf("messages = %d, uploads = %d", len(h.bot.SentMessages), len(h.bot.GetUploads()))
			}
		})
	}
}

func TestHandleDownloadLinkRecoversPanic(t *testing.T) {
	cfg := testutils.TestConfig(t.TempDir())
	b := &testutils.MockBot{}
	a := app.New(context.Background(), cfg, b, panickingFetcher{})

	HandleDownloadLink(a, chatID, 7, "https://x.com/u/status/1")
	if !a.Wait(5 * time.Second) {
		t.Fatal("job did not finish")
	}

	want := lang.Translate("error.general.unexpected", nil)
	if edit := b.GetLastEdit(); edit == nil || edit.Text != want {
		t.Errorf("last edit = %+v, want %q", edit, want)
	}
}

func TestUserErrorMessage(t *testing.T) {
	cfg := testutils.TestConfig(t.TempDir())

	tooLarge := UserErrorMessage(tvgerrors.NewFileTooLargeError(80<<20, cfg.Download.MaxFileSize), cfg)
	if tooLarge != lang.Translate("error.size.too_large", map[string]any{"Limit": "50 MiB"}) {
		t.Errorf("too large message = %q", tooLarge)
	}
	if got := UserErrorMessage(errors.New("plain"), cfg); got != lang.Translate("error.general.unexpected", nil) {
		t.Errorf("plain error message = %q", got)
	}
}

func TestHandleDownloadLinkRateLimited(t *testing.T) {
	cfg := testutils.TestConfig(t.TempDir())
	cfg.Download.RateLimit = 1
	cfg.Download.RateLimitInterval = time.Hour
	files, err := filemanager.New(cfg.DownloadsDir)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := staticChain{&fileDownloader{t: t, size: 2048, name: "clip.mp4"}}
	b := &testutils.MockBot{}
	a := app.New(ctx, cfg, b, services.NewFetchService(chain, kindConverter{media: models.MediaVideo}, files, cfg))

	HandleDownloadLink(a, chatID, 7, "https://youtu.be/one")
	HandleDownloadLink(a, chatID, 7, "https://youtu.be/two")
	if !a.Wait(5 * time.Second) {
		t.Fatal("download job did not finish")
	}

	if n := len(b.GetUploads()); n != 1 {
		t.Errorf("uploads = %d, want 1", n)
	}
	want := UserErrorMessage(tvgerrors.ErrRateLimited, cfg)
	found := false
	for _, m := range b.SentMessages {
		if m.Text == want {
			found = true
		}
	}
	if !found {
		t.Errorf("no rate limit reply in %+v", b.SentMessages)
	}
}
