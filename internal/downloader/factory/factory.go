package factory

import (
	"context"
	"errors"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader/instagram"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader/smule"
	ytdlp "github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader/video"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader/youtube"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/platform"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/process"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
)

// ErrEmptyChain is returned by Run when no downloader is eligible.
var ErrEmptyChain = errors.New("no downloader available for this attempt")

// Factory builds the ordered downloader chain for each platform.
type Factory struct {
	exec   process.Executor
	config *tvgconfig.Config
}

func New(exec process.Executor, cfg *tvgconfig.Config) *Factory {
	return &Factory{exec: exec, config: cfg}
}

// ChainFor returns the downloaders to try for p, primary first.
func (f *Factory) ChainFor(p platform.Platform) []downloader.Downloader {
	ytdl := ytdlp.NewYTDLPDownloader(f.exec, f.config)
	switch p {
	case platform.Smule:
		return []downloader.Downloader{smule.NewDownloader(f.config), ytdl}
	case platform.Instagram:
		return []downloader.Downloader{instagram.NewFastdlDownloader(f.config), ytdl}
	case platform.YouTube:
		return []downloader.Downloader{ytdl, youtube.NewNativeDownloader(f.config)}
	default:
		return []downloader.Downloader{ytdl}
	}
}

// Run tries each downloader in chain until one produces a file. When tieredOnly is set,
// downloaders that ignore the quality tier are skipped since they would return the same file.
// Errors that make further attempts pointless stop the chain immediately.
func Run(
	ctx context.Context,
	chain []downloader.Downloader,
	job *models.Job,
	tier quality.Tier,
	tieredOnly bool,
	progress downloader.ProgressFunc,
) (string, downloader.Downloader, error) {
	var lastErr error
	for _, d := range chain {
		if tieredOnly && !d.Tiered() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", nil, tvgerrors.AsDomainError(err)
		}
		log := logutils.Log.WithFields(job.LogFields()).WithField("downloader", d.Name())

		path, err := d.Download(ctx, job, tier, progress)
		if err == nil {
			return path, d, nil
		}
		lastErr = err

		var de *tvgerrors.DomainError
		if errors.As(err, &de) && de.StopsFallback() {
			return "", d, err
		}
		log.WithError(err).Warn("Downloader failed, trying next one")
		if cerr := downloader.ClearDir(job.Dir); cerr != nil {
			log.WithError(cerr).Warn("Failed to clear job directory between attempts")
		}
	}
	if lastErr == nil {
		return "", nil, ErrEmptyChain
	}
	return "", nil, lastErr
}

// RunUpdatersOnStart refreshes yt-dlp in the background when enabled.
func RunUpdatersOnStart(ctx context.Context, exec process.Executor, cfg *tvgconfig.Config) {
	if cfg.Tools.UpdateOnStart {
		go newYtdlpUpdater(exec, cfg).RunUpdate(ctx)
	}
}

func StartPeriodicUpdaters(ctx context.Context, exec process.Executor, cfg *tvgconfig.Config) {
	if cfg.Tools.UpdateInterval > 0 {
		go downloader.StartPeriodicUpdater(ctx, cfg.Tools.UpdateInterval, newYtdlpUpdater(exec, cfg))
	}
}

func newYtdlpUpdater(exec process.Executor, cfg *tvgconfig.Config) downloader.Updater {
	return ytdlp.NewUpdater(exec, cfg.Tools.YtDlpPath)
}
