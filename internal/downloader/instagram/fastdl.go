package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader/direct"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

var ErrNoVideoURL = errors.New("fastdl response has no video URL")

var postIDPattern = regexp.MustCompile(`(?:reels?|p|tv)/([A-Za-z0-9_-]+)`)

type convertRequest struct {
	URL string `json:"url"`
}

// FastdlDownloader asks the fastdl convert API for a direct media URL and streams it.
type FastdlDownloader struct {
	client *direct.Client
	config *tvgconfig.Config
}

func NewFastdlDownloader(config *tvgconfig.Config) *FastdlDownloader {
	return &FastdlDownloader{
		client: direct.NewClient(config, "instagram.com"),
		config: config,
	}
}

func (*FastdlDownloader) Name() string { return "fastdl" }

func (*FastdlDownloader) Tiered() bool { return false }

func (d *FastdlDownloader) Download(
	ctx context.Context,
	job *models.Job,
	_ quality.Tier,
	progress downloader.ProgressFunc,
) (string, error) {
	log := logutils.Log.WithFields(job.LogFields())

	videoURL, err := d.resolve(ctx, job.URL)
	if err != nil {
		log.WithError(err).Warn("fastdl did not return a video URL")
		return "", tvgerrors.AsNetworkError(err)
	}
	log.Debugf("fastdl video URL: %.100s", videoURL)

	out := filepath.Join(job.Dir, "instagram_"+utils.SanitizeFileName(PostID(job.URL))+".mp4")
	if _, err := d.client.FetchToFile(ctx, videoURL, map[string]string{"Accept": "*/*"}, out, progress); err != nil {
		return "", err
	}
	return out, nil
}

// PostID returns the shortcode of a post or reel, or "instagram" when the URL has none.
func PostID(rawURL string) string {
	if m := postIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return "instagram"
}

func (d *FastdlDownloader) resolve(ctx context.Context, rawURL string) (string, error) {
	apiURL := strings.TrimRight(d.config.Services.FastdlURL, "/") + "/api/convert"
	resp, err := d.client.R(ctx).
		SetHeader("Accept", "application/json").
		SetBody(convertRequest{URL: rawURL}).
		Post(apiURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("fastdl convert: unexpected status %s", resp.Status())
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", tvgerrors.WrapDomainError(fmt.Errorf("decode fastdl response: %w", err), tvgerrors.ErrContentUnavailable)
	}
	if u := ExtractVideoURL(payload); u != "" {
		return u, nil
	}
	return "", tvgerrors.WrapDomainError(ErrNoVideoURL, tvgerrors.ErrContentUnavailable)
}

// ExtractVideoURL looks for the media URL in the response shapes fastdl is known to return.
func ExtractVideoURL(payload map[string]any) string {
	for _, key := range []string{"url", "download_url", "video_url"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	for _, key := range []string{"data", "result"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			for _, inner := range []string{"url", "download_url"} {
				if s, ok := v[inner].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}
