package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/platform"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
)

// MediaKind tells the uploader which Bot API method to use.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// Job is one request from a chat. It lives only as long as the reply takes.
type Job struct {
	ID        uuid.UUID
	ChatID    int64
	UserID    int64
	URL       string
	Platform  platform.Platform
	Dir       string
	CreatedAt time.Time

	Tier      quality.Tier
	FilePath  string
	FileSize  int64
	Media     MediaKind
	Converted bool
	// Downloader names the downloader that produced FilePath.
	Downloader string
}

func NewJob(chatID, userID int64, rawURL string, p platform.Platform) *Job {
	return &Job{
		ID:        uuid.New(),
		ChatID:    chatID,
		UserID:    userID,
		URL:       rawURL,
		Platform:  p,
		CreatedAt: time.Now(),
		Media:     MediaVideo,
	}
}

// LogFields returns the fields attached to every log line about the job.
func (j *Job) LogFields() map[string]any {
	return map[string]any{
		"job_id":   j.ID.String(),
		"chat_id":  j.ChatID,
		"platform": j.Platform.String(),
		"url":      j.URL,
	}
}
