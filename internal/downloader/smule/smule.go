package smule

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
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

var (
	ErrNoRecordingID = errors.New("smule URL has no recording id")
	ErrNoMediaURL    = errors.New("no media URL found for smule recording")
)

var recordingIDPattern = regexp.MustCompile(`(\d+_\d+)`)

// Helper page patterns, most specific first.
var sownloaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`href=["']([^"']*c-cdnet\.cdn\.smule\.com[^"']*\.mp4[^"']*)["']`),
	regexp.MustCompile(`href=["']([^"']*c-cdnet\.cdn\.smule\.com[^"']*\.m4a[^"']*)["']`),
	regexp.MustCompile(`(https://c-cdnet\.cdn\.smule\.com/[^\s"'<>]+\.(?:mp4|m4a))`),
	regexp.MustCompile(`(https://c-cl\.cdn\.smule\.com/[^\s"'<>]+\.(?:mp4|m4a))`),
}

// Recording page patterns. URLs inside embedded JSON may have escaped slashes.
var pagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"(?:video_media_mp4_url|videoMediaMp4Url)"\s*:\s*"(https?:(?:\\?/){2}[^"]+)"`),
	regexp.MustCompile(`"(?:video_media_url|videoMediaUrl)"\s*:\s*"(https?:(?:\\?/){2}[^"]+)"`),
	regexp.MustCompile(`"(?:media_url|mediaUrl)"\s*:\s*"(https?:(?:\\?/){2}[^"]+)"`),
	regexp.MustCompile(`(https:(?:\\?/){2}[a-z0-9\-]+\.smule\.com(?:\\?/)[^\s"'<>]+\.(?:m4a|mp4|mp3))`),
}

var pageHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Referer":         "https://www.smule.com/",
}

var cdnHeaders = map[string]string{
	"Accept":         "*/*",
	"Referer":        "https://www.smule.com/",
	"Origin":         "https://www.smule.com",
	"Sec-Fetch-Dest": "video",
	"Sec-Fetch-Mode": "cors",
	"Sec-Fetch-Site": "cross-site",
}

// Downloader resolves a Smule recording to its CDN media URL and streams it.
type Downloader struct {
	client *direct.Client
	config *tvgconfig.Config
}

func NewDownloader(config *tvgconfig.Config) *Downloader {
	return &Downloader{
		client: direct.NewClient(config, "smule.com"),
		config: config,
	}
}

func (*Downloader) Name() string { return "smule" }

// Tiered is false: Smule serves a single rendition per recording.
func (*Downloader) Tiered() bool { return false }

func (d *Downloader) Download(
	ctx context.Context,
	job *models.Job,
	_ quality.Tier,
	progress downloader.ProgressFunc,
) (string, error) {
	recordingID, err := RecordingID(job.URL)
	if err != nil {
		return "", tvgerrors.WrapDomainError(err, tvgerrors.ErrContentUnavailable)
	}
	log := logutils.Log.WithFields(job.LogFields()).WithField("recording_id", recordingID)

	mediaURL, err := d.resolveMediaURL(ctx, job.URL, recordingID)
	if err != nil {
		log.WithError(err).Warn("Failed to resolve Smule media URL")
		return "", tvgerrors.AsNetworkError(err)
	}
	log.WithField("media_url", mediaURL).Info("Resolved Smule media URL")

	out := filepath.Join(job.Dir, "smule_"+utils.SanitizeFileName(recordingID)+mediaExt(mediaURL))
	if _, err := d.client.FetchToFile(ctx, mediaURL, cdnHeaders, out, progress); err != nil {
		return "", err
	}
	return out, nil
}

// RecordingID extracts the "<digits>_<digits>" performance key from a Smule URL.
func RecordingID(rawURL string) (string, error) {
	m := recordingIDPattern.FindString(rawURL)
	if m == "" {
		return "", ErrNoRecordingID
	}
	return m, nil
}

func (d *Downloader) resolveMediaURL(ctx context.Context, rawURL, recordingID string) (string, error) {
	helperURL := strings.TrimRight(d.config.Services.SownloaderURL, "/") + "/index.php?url=" + url.QueryEscape(rawURL)
	if html, err := d.client.GetText(ctx, helperURL, pageHeaders); err == nil {
		if media := firstMatch(html, sownloaderPatterns); media != "" {
			return media, nil
		}
		logutils.Log.WithField("recording_id", recordingID).Debug("Smule helper page had no media link")
	} else if ctx.Err() != nil {
		return "", ctx.Err()
	} else {
		logutils.Log.WithError(err).Debug("Smule helper page request failed")
	}

	pageURL := strings.TrimRight(d.config.Services.SmuleBaseURL, "/") + "/sing-recording/" + recordingID
	html, err := d.client.GetText(ctx, pageURL, pageHeaders)
	if err != nil {
		return "", fmt.Errorf("fetch recording page: %w", err)
	}
	if media := firstMatch(html, pagePatterns); media != "" {
		return media, nil
	}
	return "", tvgerrors.WrapDomainError(ErrNoMediaURL, tvgerrors.ErrContentUnavailable)
}

func firstMatch(html string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(html); m != nil {
			return unescapeURL(m[1])
		}
	}
	return ""
}

func unescapeURL(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	s = strings.ReplaceAll(s, `\u0026`, "&")
	return strings.ReplaceAll(s, "&amp;", "&")
}

func mediaExt(mediaURL string) string {
	p := mediaURL
	if u, err := url.Parse(mediaURL); err == nil {
		p = u.Path
	}
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".m4a", ".mp3", ".mp4":
		return ext
	default:
		return ".mp4"
	}
}
