package bot

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
)

const apiHost = "api.telegram.org"

// Service is the part of the Bot API the handlers use.
type Service interface {
	SendMessage(chatID int64, text string, keyboard any)
	SendMessageReturningID(chatID int64, text string, keyboard any) (int, error)
	EditMessageText(chatID int64, messageID int, text string) error
	SendVideo(chatID int64, filePath, caption string) error
	SendAudio(chatID int64, filePath, caption string) error
	SendChatAction(chatID int64, action string)
}

type Bot struct {
	Api *tgbotapi.BotAPI
}

var _ Service = (*Bot)(nil)

// InitBot authorizes with the Bot API. This is the first network call the process makes.
func InitBot(config *tvgconfig.Config) (*Bot, error) {
	client := &http.Client{}
	if config.UseProxyFor(apiHost) {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	api, err := tgbotapi.NewBotAPIWithClient(config.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		logutils.Log.WithError(err).Error("Error creating bot")
		return nil, fmt.Errorf("error creating bot: %w", err)
	}
	logutils.Log.Infof("Authorized on account %s", api.Self.UserName)
	return &Bot{Api: api}, nil
}

func (b *Bot) SendMessage(chatID int64, text string, keyboard any) {
	if _, err := b.SendMessageReturningID(chatID, text, keyboard); err != nil {
		logutils.Log.WithError(err).Errorf("Message not sent: %s", text)
	}
}

func (b *Bot) SendMessageReturningID(chatID int64, text string, keyboard any) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		switch k := keyboard.(type) {
		case tgbotapi.ReplyKeyboardMarkup:
			msg.ReplyMarkup = k
		case tgbotapi.ReplyKeyboardRemove:
			msg.ReplyMarkup = k
		case tgbotapi.InlineKeyboardMarkup:
			msg.ReplyMarkup = k
		}
	}
	sent, err := b.Api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessageText replaces a message's text. Re-sending identical text is not an error.
func (b *Bot) EditMessageText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.DisableWebPagePreview = true
	if _, err := b.Api.Request(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		logutils.Log.WithError(err).Debugf("Failed to edit message %d in chat %d", messageID, chatID)
		return err
	}
	return nil
}

// SendVideo uploads a local file as a streamable video.
func (b *Bot) SendVideo(chatID int64, filePath, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(filePath))
	video.Caption = caption
	video.SupportsStreaming = true
	if _, err := b.Api.Send(video); err != nil {
		logutils.Log.WithError(err).WithField("path", filePath).Error("Failed to send video")
		return err
	}
	return nil
}

func (b *Bot) SendAudio(chatID int64, filePath, caption string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(filePath))
	audio.Caption = caption
	if _, err := b.Api.Send(audio); err != nil {
		logutils.Log.WithError(err).WithField("path", filePath).Error("Failed to send audio")
		return err
	}
	return nil
}

// SendChatAction shows "sending video..." and similar indicators. Failures are only logged.
func (b *Bot) SendChatAction(chatID int64, action string) {
	if _, err := b.Api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		logutils.Log.WithError(err).Debug("Failed to send chat action")
	}
}

// SetCommands registers the command menu shown by Telegram clients.
func (b *Bot) SetCommands(commands ...tgbotapi.BotCommand) error {
	if _, err := b.Api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

func (b *Bot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.Api.GetUpdatesChan(config)
}

func (b *Bot) StopReceivingUpdates() {
	b.Api.StopReceivingUpdates()
}
