package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

const (
	// DefaultMaxFileSize is the Bot API upload ceiling for bots on the public server.
	DefaultMaxFileSize            = 50 * 1024 * 1024
	DefaultDownloadTimeout        = 2 * time.Minute
	DefaultConversionTimeout      = 5 * time.Minute
	DefaultProgressUpdateInterval = 5 * time.Second
	DefaultMinFreeSpace           = 200 * 1024 * 1024
	DefaultRateLimit              = 5
	DefaultRateLimitInterval      = time.Minute
	DefaultMaxConcurrentJobs      = 4
	DefaultUserAgent              = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Config struct {
	BotToken     string `yaml:"-" envconfig:"BOT_TOKEN"`
	DownloadsDir string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR"`
	Lang         string `yaml:"lang" envconfig:"BOT_LANG"`
	LogLevel     string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	Proxy        string `yaml:"proxy" envconfig:"PROXY"`
	// ProxyDomains limits Proxy to hosts containing one of these comma separated fragments. Empty means all hosts.
	ProxyDomains string `yaml:"proxy_domains" envconfig:"PROXY_DOMAINS"`

	Download DownloadConfig `yaml:"download"`
	Tools    ToolsConfig    `yaml:"tools"`
	Services ServicesConfig `yaml:"services"`
}

type DownloadConfig struct {
	MaxFileSize            int64         `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE"`
	DownloadTimeout        time.Duration `yaml:"download_timeout" envconfig:"DOWNLOAD_TIMEOUT"`
	ConversionTimeout      time.Duration `yaml:"conversion_timeout" envconfig:"CONVERSION_TIMEOUT"`
	ProgressUpdateInterval time.Duration `yaml:"progress_update_interval" envconfig:"PROGRESS_UPDATE_INTERVAL"`
	// QualityLadder lists maximum video heights tried in order; 0 means unbounded.
	QualityLadder []int `yaml:"quality_ladder" envconfig:"QUALITY_LADDER"`
	MinFreeSpace  int64 `yaml:"min_free_space" envconfig:"MIN_FREE_SPACE"`
	// RateLimit is how many links a user may send per RateLimitInterval. 0 disables the limit.
	RateLimit         int           `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	RateLimitInterval time.Duration `yaml:"rate_limit_interval" envconfig:"RATE_LIMIT_INTERVAL"`
	// MaxConcurrentJobs caps jobs running at once; later links wait for a slot. 0 means no cap.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" envconfig:"MAX_CONCURRENT_JOBS"`
}

type ToolsConfig struct {
	YtDlpPath      string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	FfmpegPath     string        `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
	FfprobePath    string        `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH"`
	UpdateOnStart  bool          `yaml:"ytdlp_update_on_start" envconfig:"YTDLP_UPDATE_ON_START"`
	UpdateInterval time.Duration `yaml:"ytdlp_update_interval" envconfig:"YTDLP_UPDATE_INTERVAL"`
}

// ServicesConfig points at the third-party pages used when yt-dlp cannot fetch Smule or Instagram media.
type ServicesConfig struct {
	SownloaderURL string `yaml:"sownloader_url" envconfig:"SOWNLOADER_URL"`
	SmuleBaseURL  string `yaml:"smule_base_url" envconfig:"SMULE_BASE_URL"`
	FastdlURL     string `yaml:"fastdl_url" envconfig:"FASTDL_URL"`
	UserAgent     string `yaml:"user_agent" envconfig:"HTTP_USER_AGENT"`
}

func defaultConfig() *Config {
	return &Config{
		DownloadsDir: "./downloads",
		Lang:         "en",
		LogLevel:     "info",
		Download: DownloadConfig{
			MaxFileSize:            DefaultMaxFileSize,
			DownloadTimeout:        DefaultDownloadTimeout,
			ConversionTimeout:      DefaultConversionTimeout,
			ProgressUpdateInterval: DefaultProgressUpdateInterval,
			QualityLadder:          []int{720, 480, 360},
			MinFreeSpace:           DefaultMinFreeSpace,
			RateLimit:              DefaultRateLimit,
			RateLimitInterval:      DefaultRateLimitInterval,
			MaxConcurrentJobs:      DefaultMaxConcurrentJobs,
		},
		Tools: ToolsConfig{
			YtDlpPath:   "yt-dlp",
			FfmpegPath:  "ffmpeg",
			FfprobePath: "ffprobe",
		},
		Services: ServicesConfig{
			SownloaderURL: "https://sownloader.com",
			SmuleBaseURL:  "https://www.smule.com",
			FastdlURL:     "https://fastdl.app",
			UserAgent:     DefaultUserAgent,
		},
	}
}

// NewConfig builds the configuration from defaults, the optional YAML file named by CONFIG_FILE
// and the environment, in that order of precedence. It never touches the network.
func NewConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, utils.WrapError(utils.ErrConfigurationError, "failed to load config file", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, utils.WrapError(utils.ErrConfigurationError, fmt.Sprintf("invalid environment: %v", err), nil)
	}

	if err := cfg.validate(); err != nil {
		return nil, utils.WrapError(err, "configuration validation failed", map[string]any{
			"downloads_dir": cfg.DownloadsDir,
		})
	}

	logutils.Log.WithFields(map[string]any{
		"downloads_dir":  cfg.DownloadsDir,
		"max_file_size":  cfg.Download.MaxFileSize,
		"quality_ladder": cfg.Download.QualityLadder,
	}).Debug("Configuration loaded successfully")
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
