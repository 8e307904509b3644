package downloads

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/app"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/services"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/lang"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/platform"
)

// HandleDownloadLink classifies text and, for a supported link, starts a job on its own goroutine.
func HandleDownloadLink(a *app.App, chatID, userID int64, text string) {
	p, link := platform.Classify(text)
	switch p {
	case platform.NoLink:
		a.Bot.SendMessage(chatID, UserErrorMessage(tvgerrors.ErrNoLink, a.Config), nil)
		return
	case platform.Unsupported:
		logutils.Log.WithField("link", link).Info("Rejected link from an unsupported platform")
		a.Bot.SendMessage(chatID, UserErrorMessage(tvgerrors.ErrUnsupportedURL, a.Config), nil)
		return
	}
	if !a.Limiter.Allow(userID) {
		a.Bot.SendMessage(chatID, UserErrorMessage(tvgerrors.ErrRateLimited, a.Config), nil)
		return
	}

	logutils.Log.WithFields(map[string]any{
		"link":     link,
		"platform": p.String(),
	}).Info("Starting download for a valid link")

	a.Go(func(ctx context.Context) {
		handleDownloadAsync(ctx, a, services.Request{
			ChatID:   chatID,
			UserID:   userID,
			URL:      link,
			Platform: p,
		})
	})
}

func handleDownloadAsync(ctx context.Context, a *app.App, req services.Request) {
	status := newStatusMessage(a.Bot, req.ChatID, req.Platform, a.Config.Download.ProgressUpdateInterval)

	defer func() {
		if r := recover(); r != nil {
			logutils.Log.WithFields(map[string]any{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
				"url":   req.URL,
			}).Error("Recovered from panic in download handler")
			status.finish(UserErrorMessage(tvgerrors.ErrInternal, a.Config))
		}
	}()

	status.start()
	job, err := a.Fetcher.Handle(ctx, req, status, func(_ context.Context, job *models.Job) error {
		if job.Media == models.MediaAudio {
			return a.Bot.SendAudio(job.ChatID, job.FilePath, "")
		}
		return a.Bot.SendVideo(job.ChatID, job.FilePath, "")
	})
	if err != nil {
		log := logutils.Log.WithError(err)
		if job != nil {
			log = log.WithFields(job.LogFields())
		}
		log.Warn("Download job failed")
		status.finish(UserErrorMessage(err, a.Config))
		return
	}

	if job.Media == models.MediaAudio {
		status.finish(lang.Translate("general.status.done_audio", nil))
		return
	}
	status.finish(lang.Translate("general.status.done", nil))
}
