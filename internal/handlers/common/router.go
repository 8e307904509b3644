package common

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/app"
	tvgdownloads "github.com/NikitaDmitryuk/telegram-video-grabber/internal/handlers/downloads"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/lang"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

func Router(a *app.App, update *tgbotapi.Update) {
	in := ClassifyUpdate(update)
	if in.Kind == InputIgnored {
		return
	}
	LoggingMiddleware(in)

	switch in.Kind {
	case InputCommand:
		handleCommand(a, in)
	case InputText:
		tvgdownloads.HandleDownloadLink(a, in.ChatID, in.UserID, in.Text)
	}
}

func LoggingMiddleware(in Input) {
	logutils.Log.WithFields(map[string]any{
		"kind":     in.Kind.String(),
		"chat_id":  in.ChatID,
		"username": in.Username,
		"text":     in.Text,
		"command":  in.Command,
	}).Info("Received a new message")
}

func handleCommand(a *app.App, in Input) {
	switch in.Command {
	case "start":
		a.Bot.SendMessage(in.ChatID, lang.Translate("general.commands.start", nil), nil)
	case "help":
		a.Bot.SendMessage(in.ChatID, lang.Translate("general.commands.help", map[string]any{
			"Limit": utils.HumanSize(a.Config.Download.MaxFileSize),
		}), nil)
	default:
		logutils.Log.Warnf("Unknown command: %s", in.Command)
		a.Bot.SendMessage(in.ChatID, lang.Translate("error.commands.unknown_command", nil), nil)
	}
}

// BotCommands is the command menu registered at startup.
func BotCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: lang.Translate("general.commands.start_description", nil)},
		{Command: "help", Description: lang.Translate("general.commands.help_description", nil)},
	}
}
