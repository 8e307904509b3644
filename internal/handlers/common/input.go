package common

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// InputKind tags what an incoming update carries.
type InputKind int

const (
	InputIgnored InputKind = iota
	InputCommand
	InputText
)

func (k InputKind) String() string {
	switch k {
	case InputCommand:
		return "command"
	case InputText:
		return "text"
	default:
		return "ignored"
	}
}

// Input is an update reduced to what the handlers need. Command and Args are set for InputCommand,
// Text for InputText.
type Input struct {
	Kind     InputKind
	ChatID   int64
	UserID   int64
	Username string
	Command  string
	Args     string
	Text     string
}

// ClassifyUpdate turns an update into an Input. Anything but a message with text or a caption is ignored.
func ClassifyUpdate(update *tgbotapi.Update) Input {
	if update == nil || update.Message == nil || update.Message.Chat == nil {
		return Input{Kind: InputIgnored}
	}
	msg := update.Message
	in := Input{ChatID: msg.Chat.ID}
	if msg.From != nil {
		in.UserID = msg.From.ID
		in.Username = msg.From.UserName
	}

	if msg.IsCommand() {
		in.Kind = InputCommand
		in.Command = strings.ToLower(msg.Command())
		in.Args = msg.CommandArguments()
		return in
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if text == "" {
		in.Kind = InputIgnored
		return in
	}
	in.Kind = InputText
	in.Text = text
	return in
}
