package downloads

import (
	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/lang"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

// UserErrorMessage renders err as the chat reply. Errors without a domain type get the generic text.
func UserErrorMessage(err error, config *tvgconfig.Config) string {
	de := tvgerrors.AsDomainError(err)
	if de == nil {
		de = tvgerrors.ErrInternal
	}
	return lang.Translate(de.GetUserMessage(), map[string]any{
		"Limit": utils.HumanSize(config.Download.MaxFileSize),
	})
}
