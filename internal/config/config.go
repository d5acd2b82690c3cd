// Package config provides configuration management for clipper.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort            = 8080
	DefaultLogLevel        = "info"
	DefaultWorkDirName     = "clipper"
	DefaultYtDlpPath       = "yt-dlp"
	DefaultFFmpegPath      = "ffmpeg"
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 10 * time.Second
	DefaultClipStart       = "00:00:00"
	DefaultClipDuration    = "00:01:00"
	DefaultClipTitle       = "Short automático"
	DefaultClipDescription = "Gerado automaticamente"
	DefaultTokenURI        = "https://oauth2.googleapis.com/token"
	DefaultRunRetention    = time.Hour
	DefaultUploadChunkSize = 1024 * 1024

	// MinUploadChunkSize is the smallest chunk the upload API accepts.
	MinUploadChunkSize = 256 * 1024

	// Webhook response modes
	ModeAsync = "async"
	ModeSync  = "sync"

	// Download backends
	DownloaderYtDlp  = "ytdlp"
	DownloaderNative = "native"

	// Environment variable names
	EnvPort               = "CLIPPER_PORT"
	EnvPlatformPort       = "PORT"
	EnvLogLevel           = "CLIPPER_LOG_LEVEL"
	EnvWorkDir            = "CLIPPER_WORK_DIR"
	EnvWebhookMode        = "CLIPPER_WEBHOOK_MODE"
	EnvDownloader         = "CLIPPER_DOWNLOADER"
	EnvYtDlpPath          = "CLIPPER_YTDLP_PATH"
	EnvFFmpegPath         = "CLIPPER_FFMPEG_PATH"
	EnvMaxRetries         = "CLIPPER_MAX_RETRIES"
	EnvRetryDelay         = "CLIPPER_RETRY_DELAY"
	EnvDownloadsPerMinute = "CLIPPER_DOWNLOADS_PER_MINUTE"
	EnvClipStart          = "CLIPPER_CLIP_START"
	EnvClipDuration       = "CLIPPER_CLIP_DURATION"
	EnvClipTitle          = "CLIPPER_CLIP_TITLE"
	EnvClipDescription    = "CLIPPER_CLIP_DESCRIPTION"
	EnvAllowedOrigins     = "CLIPPER_ALLOWED_ORIGINS"
	EnvTokenFile          = "CLIPPER_TOKEN_FILE"
	EnvRunRetention       = "CLIPPER_RUN_RETENTION"
	EnvUploadChunkSize    = "CLIPPER_UPLOAD_CHUNK_SIZE"

	// Upload credential variable names
	EnvAccessToken  = "YOUTUBE_ACCESS_TOKEN"
	EnvRefreshToken = "YOUTUBE_REFRESH_TOKEN"
	EnvClientID     = "YOUTUBE_CLIENT_ID"
	EnvClientSecret = "YOUTUBE_CLIENT_SECRET"
	EnvTokenURI     = "YOUTUBE_TOKEN_URI"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	WorkDir() string
	WebhookMode() string
	Downloader() string
	YtDlpPath() string
	FFmpegPath() string
	MaxRetries() int
	RetryDelay() time.Duration
	DownloadsPerMinute() int
	ClipStart() string
	ClipDuration() string
	ClipTitle() string
	ClipDescription() string
	AllowedOrigins() []string
	TokenFile() string
	RunRetention() time.Duration
	UploadChunkSize() int
	Credential() CredentialEnv
}

// CredentialEnv is the raw upload credential as found in the environment.
type CredentialEnv struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	TokenURI     string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port               int
	logLevel           string
	workDir            string
	webhookMode        string
	downloader         string
	ytDlpPath          string
	ffmpegPath         string
	maxRetries         int
	retryDelay         time.Duration
	downloadsPerMinute int
	clipStart          string
	clipDuration       string
	clipTitle          string
	clipDescription    string
	allowedOrigins     []string
	tokenFile          string
	runRetention       time.Duration
	uploadChunkSize    int
	credential         CredentialEnv
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		workDir:         filepath.Join(os.TempDir(), DefaultWorkDirName),
		webhookMode:     ModeAsync,
		downloader:      DownloaderYtDlp,
		ytDlpPath:       DefaultYtDlpPath,
		ffmpegPath:      DefaultFFmpegPath,
		maxRetries:      DefaultMaxRetries,
		retryDelay:      DefaultRetryDelay,
		clipStart:       DefaultClipStart,
		clipDuration:    DefaultClipDuration,
		clipTitle:       DefaultClipTitle,
		clipDescription: DefaultClipDescription,
		runRetention:    DefaultRunRetention,
		uploadChunkSize: DefaultUploadChunkSize,
	}

	// CLIPPER_PORT wins over the platform-provided PORT
	for _, key := range []string{EnvPlatformPort, EnvPort} {
		p := os.Getenv(key)
		if p == "" {
			continue
		}
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", key)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if wd := os.Getenv(EnvWorkDir); wd != "" {
		cfg.workDir = wd
	}

	if m := os.Getenv(EnvWebhookMode); m != "" {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != ModeAsync && m != ModeSync {
			return nil, fmt.Errorf("invalid %s: must be %q or %q", EnvWebhookMode, ModeAsync, ModeSync)
		}
		cfg.webhookMode = m
	}

	if d := os.Getenv(EnvDownloader); d != "" {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != DownloaderYtDlp && d != DownloaderNative {
			return nil, fmt.Errorf("invalid %s: must be %q or %q", EnvDownloader, DownloaderYtDlp, DownloaderNative)
		}
		cfg.downloader = d
	}

	if p := os.Getenv(EnvYtDlpPath); p != "" {
		cfg.ytDlpPath = p
	}
	if p := os.Getenv(EnvFFmpegPath); p != "" {
		cfg.ffmpegPath = p
	}

	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxRetries, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1", EnvMaxRetries)
		}
		cfg.maxRetries = n
	}

	if v := os.Getenv(EnvRetryDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRetryDelay, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvRetryDelay)
		}
		cfg.retryDelay = d
	}

	if v := os.Getenv(EnvDownloadsPerMinute); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvDownloadsPerMinute, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvDownloadsPerMinute)
		}
		cfg.downloadsPerMinute = n
	}

	if v := os.Getenv(EnvUploadChunkSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvUploadChunkSize, err)
		}
		if n < MinUploadChunkSize {
			return nil, fmt.Errorf("invalid %s: must be at least %d", EnvUploadChunkSize, MinUploadChunkSize)
		}
		cfg.uploadChunkSize = n
	}

	if v := os.Getenv(EnvRunRetention); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRunRetention, err)
		}
		cfg.runRetention = d
	}

	if v := os.Getenv(EnvClipStart); v != "" {
		cfg.clipStart = v
	}
	if v := os.Getenv(EnvClipDuration); v != "" {
		cfg.clipDuration = v
	}
	if v := os.Getenv(EnvClipTitle); v != "" {
		cfg.clipTitle = v
	}
	if v := os.Getenv(EnvClipDescription); v != "" {
		cfg.clipDescription = v
	}

	cfg.allowedOrigins = splitList(os.Getenv(EnvAllowedOrigins))
	if len(cfg.allowedOrigins) == 0 {
		cfg.allowedOrigins = []string{"*"}
	}
	cfg.tokenFile = os.Getenv(EnvTokenFile)

	cfg.credential = CredentialEnv{
		AccessToken:  os.Getenv(EnvAccessToken),
		RefreshToken: os.Getenv(EnvRefreshToken),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		TokenURI:     DefaultTokenURI,
	}
	if v := os.Getenv(EnvTokenURI); v != "" {
		cfg.credential.TokenURI = v
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// WorkDir returns the base directory under which per-run directories are created
func (c *EnvConfig) WorkDir() string {
	return c.workDir
}

// WebhookMode returns ModeAsync or ModeSync
func (c *EnvConfig) WebhookMode() string {
	return c.webhookMode
}

func (c *EnvConfig) Downloader() string {
	return c.downloader
}

func (c *EnvConfig) YtDlpPath() string {
	return c.ytDlpPath
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) MaxRetries() int {
	return c.maxRetries
}

func (c *EnvConfig) RetryDelay() time.Duration {
	return c.retryDelay
}

// DownloadsPerMinute returns the process-wide download pacing; 0 means unlimited
func (c *EnvConfig) DownloadsPerMinute() int {
	return c.downloadsPerMinute
}

func (c *EnvConfig) ClipStart() string {
	return c.clipStart
}

func (c *EnvConfig) ClipDuration() string {
	return c.clipDuration
}

func (c *EnvConfig) ClipTitle() string {
	return c.clipTitle
}

func (c *EnvConfig) ClipDescription() string {
	return c.clipDescription
}

func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *EnvConfig) TokenFile() string {
	return c.tokenFile
}

func (c *EnvConfig) RunRetention() time.Duration {
	return c.runRetention
}

// UploadChunkSize is the resumable upload chunk in bytes. Clips smaller than
// one chunk are sent in a single request.
func (c *EnvConfig) UploadChunkSize() int {
	return c.uploadChunkSize
}

func (c *EnvConfig) Credential() CredentialEnv {
	return c.credential
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
