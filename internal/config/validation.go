package config

import (
	"fmt"
	"strings"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

const minQualityHeight = 0

func (c *Config) validate() error {
	if err := c.validateRequiredFields(); err != nil {
		return err
	}
	if err := c.validateDownloadSettings(); err != nil {
		return err
	}
	return c.validateTools()
}

func (c *Config) validateRequiredFields() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return utils.WrapError(utils.ErrMissingToken,
			"BOT_TOKEN environment variable is required; create a bot with @BotFather and export its token", nil)
	}
	if strings.TrimSpace(c.DownloadsDir) == "" {
		return utils.WrapError(utils.ErrConfigurationError, "DOWNLOADS_DIR must not be empty", nil)
	}
	return nil
}

func (c *Config) validateDownloadSettings() error {
	d := c.Download
	if d.MaxFileSize <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "MAX_FILE_SIZE must be positive", map[string]any{
			"value": d.MaxFileSize,
		})
	}
	if d.DownloadTimeout <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "DOWNLOAD_TIMEOUT must be positive", map[string]any{
			"value": d.DownloadTimeout.String(),
		})
	}
	if d.ConversionTimeout <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "CONVERSION_TIMEOUT must be positive", map[string]any{
			"value": d.ConversionTimeout.String(),
		})
	}
	if d.ProgressUpdateInterval < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "PROGRESS_UPDATE_INTERVAL cannot be negative", nil)
	}
	if len(d.QualityLadder) == 0 {
		return utils.WrapError(utils.ErrConfigurationError, "QUALITY_LADDER needs at least one height", nil)
	}
	for _, h := range d.QualityLadder {
		if h < minQualityHeight {
			return utils.WrapError(utils.ErrConfigurationError,
				fmt.Sprintf("QUALITY_LADDER contains a negative height: %d", h), nil)
		}
	}
	if d.MinFreeSpace < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "MIN_FREE_SPACE cannot be negative", nil)
	}
	if d.RateLimit < 0 || d.RateLimitInterval < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "RATE_LIMIT and RATE_LIMIT_INTERVAL cannot be negative", map[string]any{
			"rate_limit":          d.RateLimit,
			"rate_limit_interval": d.RateLimitInterval.String(),
		})
	}
	if d.MaxConcurrentJobs < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "MAX_CONCURRENT_JOBS cannot be negative", map[string]any{
			"value": d.MaxConcurrentJobs,
		})
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.YtDlpPath == "" || c.Tools.FfmpegPath == "" || c.Tools.FfprobePath == "" {
		return utils.WrapError(utils.ErrConfigurationError, "YTDLP_PATH, FFMPEG_PATH and FFPROBE_PATH must not be empty", nil)
	}
	if c.Tools.UpdateInterval < 0 {
		return utils.WrapError(utils.ErrConfigurationError, "YTDLP_UPDATE_INTERVAL cannot be negative", nil)
	}
	return nil
}

// UseProxyFor reports whether requests to host go through Proxy.
func (c *Config) UseProxyFor(host string) bool {
	if c.Proxy == "" {
		return false
	}
	if strings.TrimSpace(c.ProxyDomains) == "" {
		return true
	}
	host = strings.ToLower(host)
	for _, domain := range strings.Split(c.ProxyDomains, ",") {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" && strings.Contains(host, domain) {
			return true
		}
	}
	return false
}
