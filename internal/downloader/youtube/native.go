package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

type videoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// NativeDownloader fetches progressive (muxed) YouTube streams without external tools.
type NativeDownloader struct {
	client videoClient
	config *tvgconfig.Config
}

func NewNativeDownloader(config *tvgconfig.Config) *NativeDownloader {
	httpClient := &http.Client{}
	if config.Proxy != "" && config.UseProxyFor("youtube.com") {
		if proxyURL, err := url.Parse(config.Proxy); err == nil {
			httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		} else {
			logutils.Log.WithError(err).Warn("Ignoring invalid proxy URL for YouTube client")
		}
	}
	return &NativeDownloader{
		client: &youtube.Client{HTTPClient: httpClient},
		config: config,
	}
}

func (*NativeDownloader) Name() string { return "youtube-native" }

func (*NativeDownloader) Tiered() bool { return true }

func (d *NativeDownloader) Download(
	ctx context.Context,
	job *models.Job,
	tier quality.Tier,
	progress downloader.ProgressFunc,
) (string, error) {
	log := logutils.Log.WithFields(job.LogFields()).WithField("tier", tier.Label())

	video, err := d.client.GetVideoContext(ctx, job.URL)
	if err != nil {
		log.WithError(err).Warn("Failed to get YouTube video metadata")
		return "", tvgerrors.ClassifyExtractorError(err, err.Error())
	}

	limit := d.config.Download.MaxFileSize
	format, ok := pickFormat(video.Formats, tier, limit)
	if !ok {
		return "", tvgerrors.WrapDomainError(fmt.Errorf("no progressive mp4 format for %s", tier.Label()),
			tvgerrors.ErrContentUnavailable)
	}
	log.WithFields(map[string]any{
		"itag":    format.ItagNo,
		"quality": format.QualityLabel,
		"size":    utils.HumanSize(format.ContentLength),
	}).Info("Downloading YouTube stream")

	stream, total, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", downloader.StreamError(err, 0, limit)
	}
	defer stream.Close()

	if total > limit {
		return "", tvgerrors.NewFileTooLargeError(total, limit)
	}

	path := filepath.Join(job.Dir, utils.SanitizeFileName(video.ID)+".mp4")
	f, err := os.Create(path)
	if err != nil {
		return "", tvgerrors.WrapDomainError(err, tvgerrors.ErrInternal)
	}
	defer f.Close()

	written, err := downloader.LimitedCopy(f, stream, limit, func(written int64) {
		if progress != nil && total > 0 {
			progress(float64(written) * 100 / float64(total))
		}
	})
	if err != nil {
		return "", downloader.StreamError(err, written, limit)
	}
	if written == 0 {
		return "", tvgerrors.WrapDomainError(downloader.ErrNoOutput, tvgerrors.ErrContentUnavailable)
	}
	return path, nil
}

// pickFormat chooses the tallest muxed mp4 within the tier, preferring formats known to fit the limit.
func pickFormat(formats youtube.FormatList, tier quality.Tier, limit int64) (*youtube.Format, bool) {
	var best, bestOversize *youtube.Format
	muxed := formats.WithAudioChannels()
	for i := range muxed {
		f := &muxed[i]
		if !strings.HasPrefix(f.MimeType, "video/mp4") || f.Height == 0 {
			continue
		}
		if tier.MaxHeight > 0 && f.Height > tier.MaxHeight {
			continue
		}
		if f.ContentLength > limit {
			if bestOversize == nil || f.Height < bestOversize.Height {
				bestOversize = f
			}
			continue
		}
		if best == nil || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
		}
	}
	if best != nil {
		return best, true
	}
	return bestOversize, bestOversize != nil
}
