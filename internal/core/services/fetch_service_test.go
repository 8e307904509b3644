package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/mediacompat"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/platform"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/testutils"
)

const (
	smallFile = 1024
	hugeFile  = 80 * 1024 * 1024
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

// scriptedDownloader writes a sparse file of sizes[call] bytes, repeating the last size.
type scriptedDownloader struct {
	t      *testing.T
	tiered bool
	sizes  []int64
	err    error
	block  bool

	mu    sync.Mutex
	tiers []quality.Tier
}

func (*scriptedDownloader) Name() string { return "scripted" }
func (d *scriptedDownloader) Tiered() bool { return d.tiered }

func (d *scriptedDownloader) Download(
	ctx context.Context, job *models.Job, tier quality.Tier, progress downloader.ProgressFunc,
) (string, error) {
	d.mu.Lock()
	d.tiers = append(d.tiers, tier)
	call := len(d.tiers) - 1
	d.mu.Unlock()

	if d.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if d.err != nil {
		return "", d.err
	}
	if progress != nil {
		progress(100)
	}
	size := d.sizes[min(call, len(d.sizes)-1)]
	return testutils.CreateSparseFile(d.t, job.Dir, fmt.Sprintf("video_%d.mp4", call), size), nil
}

func (d *scriptedDownloader) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tiers)
}

type staticChain []downloader.Downloader

func (c staticChain) ChainFor(platform.Platform) []downloader.Downloader { return c }

// passthroughConverter returns the file unchanged. With rewrite set it reports a conversion start.
type passthroughConverter struct {
	err     error
	rewrite bool
	calls   int
}

func (c *passthroughConverter) Convert(_ context.Context, path string, onStart func()) (mediacompat.Result, error) {
	c.calls++
	if c.err != nil {
		return mediacompat.Result{}, c.err
	}
	if c.rewrite && onStart != nil {
		onStart()
	}
	return mediacompat.Result{Path: path, Media: models.MediaVideo, Converted: c.rewrite}, nil
}

type recordingReporter struct {
	mu     sync.Mutex
	stages []Stage
}

func (r *recordingReporter) OnStage(stage Stage, _ *models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (*recordingReporter) OnProgress(float64) {}

func (r *recordingReporter) count(stage Stage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.stages {
		if s == stage {
			n++
		}
	}
	return n
}

type fixture struct {
	cfg       *tvgconfig.Config
	files     *filemanager.Manager
	converter *passthroughConverter
	reporter  *recordingReporter
}

func newFixture(t *testing.T, ladder ...int) *fixture {
	t.Helper()
	cfg := testutils.TestConfig(t.TempDir())
	cfg.Download.QualityLadder = ladder
	files, err := filemanager.New(cfg.DownloadsDir)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{cfg: cfg, files: files, converter: &passthroughConverter{}, reporter: &recordingReporter{}}
}

func (f *fixture) service(chain ...downloader.Downloader) *FetchService {
	return NewFetchService(staticChain(chain), f.converter, f.files, f.cfg)
}

func request() Request {
	return Request{ChatID: 42, UserID: 7, URL: "https://www.tiktok.com/@u/video/1", Platform: platform.TikTok}
}

func noDeliver(t *testing.T) DeliverFunc {
	return func(context.Context, *models.Job) error {
		t.Error("deliver must not be called")
		return nil
	}
}

func TestHandleSuccess(t *testing.T) {
	f := newFixture(t, 720, 480)
	d := &scriptedDownloader{t: t, tiered: true, sizes: []int64{smallFile}}

	var delivered string
	job, err := f.service(d).Handle(context.Background(), request(), f.reporter, func(_ context.Context, job *models.Job) error {
		testutils.AssertFileExists(t, job.FilePath)
		delivered = job.FilePath
		return nil
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if delivered == "" || job.FileSize != smallFile || job.Tier.MaxHeight != 720 || job.Downloader != "scripted" {
		t.Errorf("job = %+v", job)
	}
	if f.reporter.count(StageUploading) != 1 || f.reporter.count(StageLowerQuality) != 0 ||
		f.reporter.count(StageConverting) != 0 {
		t.Errorf("stages = %v", f.reporter.stages)
	}
	testutils.AssertDirEmpty(t, f.files.Root())
}

func TestHandleReportsConvertingOnlyWhenRewritten(t *testing.T) {
	f := newFixture(t, 720)
	f.converter.rewrite = true
	d := &scriptedDownloader{t: t, tiered: true, sizes: []int64{smallFile}}

	job, err := f.service(d).Handle(context.Background(), request(), f.reporter,
		func(context.Context, *models.Job) error { return nil })
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !job.Converted || f.reporter.count(StageConverting) != 1 {
		t.Errorf("converted = %v, stages = %v", job.Converted, f.reporter.stages)
	}
}

func TestHandleTooLargeSingleTier(t *testing.T) {
	f := newFixture(t, 720)
	d := &scriptedDownloader{t: t, tiered: true, sizes: []int64{hugeFile}}

	_, err := f.service(d).Handle(context.Background(), request(), f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrFileTooLarge) {
		t.Fatalf("Handle() error = %v, want ErrFileTooLarge", err)
	}
	if d.calls() != 1 {
		t.Errorf("download calls = %d, want 1", d.calls())
	}
	testutils.AssertDirEmpty(t, f.files.Root())
}

func TestHandleTooLargeRetriesOncePerTier(t *testing.T) {
	f := newFixture(t, 720, 480)
	d := &scriptedDownloader{t: t, tiered: true, sizes: []int64{hugeFile}}

	_, err := f.service(d).Handle(context.Background(), request(), f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrFileTooLarge) {
		t.Fatalf("Handle() error = %v, want ErrFileTooLarge", err)
	}
	if d.calls() != 2 {
		t.Errorf("download calls = %d, want 2", d.calls())
	}
	if d.tiers[0].MaxHeight != 720 || d.tiers[1].MaxHeight != 480 {
		t.Errorf("tiers = %v", d.tiers)
	}
	testutils.AssertDirEmpty(t, f.files.Root())
}

func TestHandleLowerTierFits(t *testing.T) {
	f := newFixture(t, 720, 480, 360)
	d := &scriptedDownloader{t: t, tiered: true, sizes: []int64{hugeFile, smallFile}}

	job, err := f.service(d).Handle(context.Background(), request(), f.reporter, func(context.Context, *models.Job) error { return nil })
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if d.calls() != 2 || job.Tier.MaxHeight != 480 {
		t.Errorf("calls = %d, tier = %s", d.calls(), job.Tier.Label())
	}
	if f.reporter.count(StageLowerQuality) != 1 {
		t.Errorf("stages = %v", f.reporter.stages)
	}
}

func TestHandleUntieredNotRetried(t *testing.T) {
	f := newFixture(t, 720, 480, 360)
	d := &scriptedDownloader{t: t, tiered: false, sizes: []int64{hugeFile}}

	_, err := f.service(d).Handle(context.Background(), request(), f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrFileTooLarge) {
		t.Fatalf("Handle() error = %v, want ErrFileTooLarge", err)
	}
	if d.calls() != 1 {
		t.Errorf("download calls = %d, want 1", d.calls())
	}
}

func TestHandleDeliverFailureCleansUp(t *testing.T) {
	f := newFixture(t, 720)
	d := &scriptedDownloader{t: t, tiered: true, sizes: []int64{smallFile}}

	_, err := f.service(d).Handle(context.Background(), request(), f.reporter, func(context.Context, *models.Job) error {
		return errors.New("Bad Request: file is too big")
	})
	if !errors.Is(err, tvgerrors.ErrUploadFailed) {
		t.Fatalf("Handle() error = %v, want ErrUploadFailed", err)
	}
	testutils.AssertDirEmpty(t, f.files.Root())
}

func TestHandleDownloadTimeout(t *testing.T) {
	f := newFixture(t, 720)
	f.cfg.Download.DownloadTimeout = 20 * time.Millisecond
	d := &scriptedDownloader{t: t, tiered: true, block: true}

	_, err := f.service(d).Handle(context.Background(), request(), f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrTimeout) {
		t.Fatalf("Handle() error = %v, want ErrTimeout", err)
	}
	testutils.AssertDirEmpty(t, f.files.Root())
}

func TestHandleCanceled(t *testing.T) {
	f := newFixture(t, 720)
	d := &scriptedDownloader{t: t, tiered: true, block: true}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := f.service(d).Handle(ctx, request(), f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrCanceled) {
		t.Fatalf("Handle() error = %v, want ErrCanceled", err)
	}
	testutils.AssertDirEmpty(t, f.files.Root())
}

func TestHandleConversionFailure(t *testing.T) {
	f := newFixture(t, 720)
	f.converter.err = tvgerrors.WrapDomainError(errors.New("exit status 1"), tvgerrors.ErrConversionFailed)
	d := &scriptedDownloader{t: t, tiered: true, sizes: []int64{smallFile}}

	_, err := f.service(d).Handle(context.Background(), request(), f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrConversionFailed) {
		t.Fatalf("Handle() error = %v, want ErrConversionFailed", err)
	}
	testutils.AssertDirEmpty(t, f.files.Root())
}

func TestHandleExtractorError(t *testing.T) {
	f := newFixture(t, 720, 480)
	d := &scriptedDownloader{t: t, tiered: true, err: tvgerrors.ErrPrivateContent}

	_, err := f.service(d).Handle(context.Background(), request(), f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrPrivateContent) {
		t.Fatalf("Handle() error = %v, want ErrPrivateContent", err)
	}
	if d.calls() != 1 || f.converter.calls != 0 {
		t.Errorf("calls = %d, converter calls = %d", d.calls(), f.converter.calls)
	}
}

func TestHandleUnsupported(t *testing.T) {
	f := newFixture(t, 720)
	req := request()
	req.Platform = platform.Unsupported

	_, err := f.service().Handle(context.Background(), req, f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrUnsupportedURL) {
		t.Errorf("Handle() error = %v, want ErrUnsupportedURL", err)
	}
}

func TestHandleInsufficientSpace(t *testing.T) {
	f := newFixture(t, 720)
	f.cfg.Download.MinFreeSpace = 1 << 62
	d := &scriptedDownloader{t: t, tiered: true, sizes: []int64{smallFile}}

	_, err := f.service(d).Handle(context.Background(), request(), f.reporter, noDeliver(t))
	if !errors.Is(err, tvgerrors.ErrInsufficientSpace) || d.calls() != 0 {
		t.Errorf("Handle() error = %v, calls = %d", err, d.calls())
	}
}
