package downloader

import (
	"context"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
)

// ProgressFunc receives download progress in percent.
type ProgressFunc func(percent float64)

// Downloader fetches the media behind job.URL into job.Dir and returns the file path.
type Downloader interface {
	Name() string
	// Tiered reports whether Download honours the quality tier. Untiered downloaders are tried once.
	Tiered() bool
	Download(ctx context.Context, job *models.Job, tier quality.Tier, progress ProgressFunc) (string, error)
}

type Updater interface {
	RunUpdate(ctx context.Context)
}
