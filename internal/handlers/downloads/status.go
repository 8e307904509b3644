package downloads

import (
	"math"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/bot"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/services"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/lang"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/platform"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

// statusMessage keeps one chat message up to date with the job's stage and progress.
// Stage changes are always shown; progress edits are limited to one per interval.
type statusMessage struct {
	bot      bot.Service
	chatID   int64
	platform platform.Platform
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	messageID int
	stage     services.Stage
	lastText  string
	lastEdit  time.Time
	percent   int
}

var _ services.Reporter = (*statusMessage)(nil)

func newStatusMessage(b bot.Service, chatID int64, p platform.Platform, interval time.Duration) *statusMessage {
	return &statusMessage{
		bot:      b,
		chatID:   chatID,
		platform: p,
		interval: interval,
		now:      time.Now,
		stage:    services.StageDownloading,
		percent:  -1,
	}
}

// start posts the initial "downloading" message.
func (s *statusMessage) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setText(s.downloadingText())
}

func (s *statusMessage) OnStage(stage services.Stage, job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
	s.percent = -1

	switch stage {
	case services.StageDownloading:
		s.setText(s.downloadingText())
	case services.StageConverting:
		s.setText(lang.Translate("general.status.converting", nil))
	case services.StageLowerQuality:
		s.setText(lang.Translate("general.status.lower_quality", map[string]any{"Quality": job.Tier.Label()}))
	case services.StageUploading:
		s.setText(lang.Translate("general.status.uploading", map[string]any{"Size": utils.HumanSize(job.FileSize)}))
		action := tgbotapi.ChatUploadVideo
		if job.Media == models.MediaAudio {
			action = tgbotapi.ChatUploadDocument
		}
		s.bot.SendChatAction(s.chatID, action)
	}
}

func (s *statusMessage) OnProgress(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != services.StageDownloading && s.stage != services.StageLowerQuality {
		return
	}
	p := int(math.Floor(math.Max(0, math.Min(100, percent))))
	if p == s.percent || s.now().Sub(s.lastEdit) < s.interval {
		return
	}
	s.percent = p
	s.setText(lang.Translate("general.status.progress", map[string]any{
		"Platform": s.platform.DisplayName(),
		"Percent":  p,
	}))
}

// finish replaces the status with the final outcome.
func (s *statusMessage) finish(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setText(text)
}

func (s *statusMessage) downloadingText() string {
	return lang.Translate("general.status.downloading", map[string]any{"Platform": s.platform.DisplayName()})
}

// setText edits the status message, or sends a new one if there is none yet. Callers hold mu.
func (s *statusMessage) setText(text string) {
	if text == s.lastText {
		return
	}
	s.lastText = text
	s.lastEdit = s.now()

	if s.messageID == 0 {
		id, err := s.bot.SendMessageReturningID(s.chatID, text, nil)
		if err != nil {
			logutils.Log.WithError(err).WithField("chat_id", s.chatID).Warn("Failed to send status message")
			return
		}
		s.messageID = id
		return
	}
	if err := s.bot.EditMessageText(s.chatID, s.messageID, text); err != nil {
		logutils.Log.WithError(err).WithField("chat_id", s.chatID).Debug("Failed to update status message")
	}
}
