package main

import (
	"context"
	"errors"
	"io/fs"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/app"
	tvgbot "github.com/NikitaDmitryuk/telegram-video-grabber/internal/bot"
	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/services"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader/factory"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/filemanager"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/handlers/common"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/lang"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/mediacompat"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/process"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logutils.Log.WithError(err).Warn("Failed to read .env file")
	}

	config, err := tvgconfig.NewConfig()
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize configuration")
	}

	logutils.InitLogger(config.LogLevel)
	logutils.Log.WithFields(map[string]any{
		"version":    Version,
		"build_time": BuildTime,
	}).Info("Starting Telegram Video Grabber")

	if langErr := lang.SetupLang(config.Lang); langErr != nil {
		logutils.Log.WithError(langErr).Fatal("Failed to initialize localizer")
	}

	exec := process.NewOSProcessExecutor()
	checkTools(exec, config)

	files, err := filemanager.New(config.DownloadsDir)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to prepare downloads directory")
	}
	if purged, purgeErr := files.PurgeStale(0); purgeErr != nil {
		logutils.Log.WithError(purgeErr).Warn("Failed to purge leftover job directories")
	} else if purged > 0 {
		logutils.Log.WithFields(map[string]any{
			"count": purged,
			"root":  files.Root(),
		}).Info("Removed leftover job directories")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory.RunUpdatersOnStart(ctx, exec, config)
	factory.StartPeriodicUpdaters(ctx, exec, config)

	botInstance, err := tvgbot.InitBot(config)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Bot initialization failed")
	}
	if cmdErr := botInstance.SetCommands(common.BotCommands()...); cmdErr != nil {
		logutils.Log.WithError(cmdErr).Warn("Failed to register bot commands")
	}

	fetcher := services.NewFetchService(
		factory.New(exec, config),
		mediacompat.NewConverter(exec, config),
		files,
		config,
	)
	a := app.New(ctx, config, botInstance, fetcher)

	logutils.Log.Info("Telegram Video Grabber started successfully")
	processUpdates(ctx, botInstance, a)

	logutils.Log.Info("Received shutdown signal, starting graceful shutdown...")
	botInstance.StopReceivingUpdates()
	if a.Wait(shutdownTimeout) {
		logutils.Log.Info("All jobs finished")
	}
	logutils.Log.Info("Telegram Video Grabber shutdown complete")
}

// checkTools stops startup without yt-dlp and warns when the ffmpeg tools are missing.
func checkTools(exec process.Executor, config *tvgconfig.Config) {
	if _, err := exec.LookPath(config.Tools.YtDlpPath); err != nil {
		logutils.Log.WithError(utils.WrapError(utils.ErrToolNotFound, err.Error(), nil)).
			Fatal("yt-dlp is required but was not found")
	}
	for _, tool := range []string{config.Tools.FfmpegPath, config.Tools.FfprobePath} {
		if _, err := exec.LookPath(tool); err != nil {
			logutils.Log.WithError(utils.WrapError(utils.ErrToolNotFound, err.Error(), nil)).
				WithField("tool", tool).Warn("Tool not found, media conversion will fail")
		}
	}
}

func processUpdates(ctx context.Context, bot *tvgbot.Bot, a *app.App) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			common.Router(a, &update)
		case <-ctx.Done():
			logutils.Log.Info("Stopping update processing")
			return
		}
	}
}
