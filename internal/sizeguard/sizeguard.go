package sizeguard

import (
	"fmt"

	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

// Guard rejects files larger than the upload ceiling.
type Guard struct {
	Limit int64
}

func New(limit int64) Guard {
	return Guard{Limit: limit}
}

// Check returns the file size, or a file-too-large domain error when size exceeds Limit.
// A file exactly at the limit passes.
func (g Guard) Check(path string) (int64, error) {
	size, err := utils.FileSize(path)
	if err != nil {
		return 0, tvgerrors.WrapDomainError(fmt.Errorf("size of downloaded file: %w", err), tvgerrors.ErrInternal)
	}
	if size > g.Limit {
		return size, tvgerrors.NewFileTooLargeError(size, g.Limit)
	}
	return size, nil
}
