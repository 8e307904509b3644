package ytdlp

import (
	"context"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/process"
)

const updateTimeout = 3 * time.Minute

// RunUpdate runs "yt-dlp -U". Failures are logged and never fatal; pip or distro installs refuse self-update.
func RunUpdate(ctx context.Context, exec process.Executor, binaryPath string) {
	if binaryPath == "" {
		binaryPath = defaultYtdlpBinary
	}
	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	res, err := exec.Run(updateCtx, binaryPath, []string{"-U"}, nil)
	out := strings.TrimSpace(strings.Join(res.Stdout, "\n") + "\n" + res.Stderr)

	if err != nil {
		if updateCtx.Err() != nil {
			logutils.Log.WithError(err).Warn("yt-dlp update timed out or was canceled")
			return
		}
		logutils.Log.WithError(err).WithFields(map[string]any{
			"output": out,
			"binary": binaryPath,
		}).Warn("yt-dlp update failed")
		return
	}

	logutils.Log.WithFields(map[string]any{
		"binary": binaryPath,
		"output": out,
	}).Info("yt-dlp update check completed successfully")
}

type ytdlpUpdater struct {
	exec       process.Executor
	binaryPath string
}

func (u *ytdlpUpdater) RunUpdate(ctx context.Context) { RunUpdate(ctx, u.exec, u.binaryPath) }

func NewUpdater(exec process.Executor, binaryPath string) downloader.Updater {
	if binaryPath == "" {
		binaryPath = defaultYtdlpBinary
	}
	return &ytdlpUpdater{exec: exec, binaryPath: binaryPath}
}
