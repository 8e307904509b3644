package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/process"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

const (
	defaultYtdlpBinary = "yt-dlp"
	// pathFileName receives the final path via --print-to-file. --print itself would switch yt-dlp to quiet mode.
	pathFileName   = ".filepath"
	outputTemplate = "%(id).64s.%(ext)s"
	formatSort     = "vcodec:h264,ext:mp4:m4a"
	tooLargeMarker = "larger than max-filesize"
)

type YTDLPDownloader struct {
	exec   process.Executor
	config *tvgconfig.Config
}

func NewYTDLPDownloader(exec process.Executor, config *tvgconfig.Config) *YTDLPDownloader {
	return &YTDLPDownloader{exec: exec, config: config}
}

func (*YTDLPDownloader) Name() string { return "yt-dlp" }

func (*YTDLPDownloader) Tiered() bool { return true }

func (d *YTDLPDownloader) binary() string {
	if d.config.Tools.YtDlpPath == "" {
		return defaultYtdlpBinary
	}
	return d.config.Tools.YtDlpPath
}

func (d *YTDLPDownloader) Download(
	ctx context.Context,
	job *models.Job,
	tier quality.Tier,
	progress downloader.ProgressFunc,
) (string, error) {
	args := d.buildYTDLPArgs(job, tier)
	log := logutils.Log.WithFields(job.LogFields()).WithField("tier", tier.Label())
	log.Info("Starting yt-dlp download")

	tooLarge := false
	res, err := d.exec.Run(ctx, d.binary(), args, func(line string) {
		if strings.Contains(line, tooLargeMarker) {
			tooLarge = true
			return
		}
		if percent, ok := parseProgress(line); ok && progress != nil {
			progress(percent)
		}
	})
	if err != nil {
		log.WithError(err).WithField("stderr", utils.LastLines(res.Stderr, 5)).Warn("yt-dlp exited with error")
		return "", tvgerrors.ClassifyExtractorError(err, res.Stderr)
	}
	if tooLarge || strings.Contains(res.Stderr, tooLargeMarker) {
		return "", tvgerrors.NewFileTooLargeError(0, d.config.Download.MaxFileSize).
			WithDetails(map[string]any{"tier": tier.Label()})
	}

	path, err := resolveOutputPath(job.Dir)
	if err != nil {
		log.WithError(err).Warn("yt-dlp finished without a media file")
		return "", tvgerrors.ClassifyExtractorError(err, res.Stderr)
	}
	log.WithField("path", path).Info("yt-dlp download completed")
	return path, nil
}

func (d *YTDLPDownloader) buildYTDLPArgs(job *models.Job, tier quality.Tier) []string {
	limit := d.config.Download.MaxFileSize
	args := []string{
		"--newline",
		"--progress",
		"--no-playlist",
		"--no-mtime",
		"--restrict-filenames",
		"-f", tier.Selector(limit),
		"-S", formatSort,
		"--merge-output-format", "mp4",
		"--max-filesize", strconv.FormatInt(limit, 10),
		"-o", filepath.Join(job.Dir, outputTemplate),
		"--print-to-file", "after_move:filepath", filepath.Join(job.Dir, pathFileName),
	}

	if ffmpeg := d.config.Tools.FfmpegPath; ffmpeg != "" && ffmpeg != "ffmpeg" {
		args = append(args, "--ffmpeg-location", ffmpeg)
	}

	if useProxy, err := shouldUseProxy(job.URL, d.config); err != nil {
		logutils.Log.WithError(err).Warn("Failed to check proxy requirement")
	} else if useProxy {
		logutils.Log.WithField("proxy", d.config.Proxy).Debugf("Using proxy for URL: %s", job.URL)
		args = append(args, "--proxy", d.config.Proxy)
	}

	return append(args, "--", job.URL)
}

// parseProgress reads lines like "[download]  42.3% of ~ 10.00MiB at 1.2MiB/s ETA 00:07".
func parseProgress(line string) (float64, bool) {
	if !strings.HasPrefix(line, "[download]") {
		return 0, false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasSuffix(fields[1], "%") {
		return 0, false
	}
	percent, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "%"), 64)
	if err != nil {
		return 0, false
	}
	return percent, true
}

// resolveOutputPath prefers the path yt-dlp printed and falls back to scanning the job directory.
func resolveOutputPath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, pathFileName))
	if err == nil {
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if p := strings.TrimSpace(lines[len(lines)-1]); p != "" {
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return downloader.FindOutputFile(dir)
}

func shouldUseProxy(rawURL string, cfg *tvgconfig.Config) (bool, error) {
	if cfg.Proxy == "" {
		return false, nil
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("failed to parse URL: %w", err)
	}
	return cfg.UseProxyFor(parsedURL.Hostname()), nil
}
