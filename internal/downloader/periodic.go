package downloader

import (
	"context"
	"time"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
)

// StartPeriodicUpdater calls u.RunUpdate every interval until ctx ends. A non-positive interval disables it.
func StartPeriodicUpdater(ctx context.Context, interval time.Duration, u Updater) {
	if interval <= 0 || u == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logutils.Log.WithField("interval", interval.String()).Info("Starting periodic extractor updater")

	for {
		select {
		case <-ctx.Done():
			logutils.Log.Info("Stopping periodic extractor updater")
			return
		case <-ticker.C:
			u.RunUpdate(ctx)
		}
	}
}
