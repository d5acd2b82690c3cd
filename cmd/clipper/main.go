package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/heimdex/clipper/internal/api"
	"github.com/heimdex/clipper/internal/clip"
	"github.com/heimdex/clipper/internal/config"
	"github.com/heimdex/clipper/internal/db"
	"github.com/heimdex/clipper/internal/download"
	"github.com/heimdex/clipper/internal/logging"
	"github.com/heimdex/clipper/internal/notify"
	"github.com/heimdex/clipper/internal/runs"
	"github.com/heimdex/clipper/internal/transcode"
	"github.com/heimdex/clipper/internal/youtube"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.WorkDir(), 0755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipper",
		"version", Version,
		"port", cfg.Port(),
		"mode", cfg.WebhookMode(),
		"downloader", cfg.Downloader(),
		"work_dir", cfg.WorkDir(),
	)

	uploader := newUploader(cfg, logger)

	ffmpeg := transcode.NewFFmpeg(cfg.FFmpegPath(), logging.WithComponent(logger, "ffmpeg"))

	probe := transcode.NewCachedProbe(transcode.NewPathProber(map[string]string{
		"ffmpeg": cfg.FFmpegPath(),
		"yt-dlp": cfg.YtDlpPath(),
	}), logger)
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := probe.Refresh(probeCtx); err != nil {
		logger.Warn("initial tool probe failed", "error", err)
	}
	probeCancel()

	downloader := newDownloader(cfg, ffmpeg, logger)

	database, err := db.New(db.Memory, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize run registry: %w", err)
	}
	defer database.Close()

	repo := runs.NewRepository(database.Conn())
	registry := runs.NewRegistry(repo, logging.WithComponent(logger, "runs"))

	pipeline := clip.NewPipeline(downloader, ffmpeg, uploader, cfg.WorkDir(), clip.Defaults{
		Start:       cfg.ClipStart(),
		Duration:    cfg.ClipDuration(),
		Title:       cfg.ClipTitle(),
		Description: cfg.ClipDescription(),
	}, logger)
	pipeline.SetObserver(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	janitor := runs.NewJanitor(repo, cfg.RunRetention(), logger)
	go janitor.Start(ctx)

	dispatcher := api.NewDispatcher(logger)
	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Mode:           cfg.WebhookMode(),
		Pipeline:       pipeline,
		Registry:       registry,
		Notifier:       notify.NewSender(logging.WithComponent(logger, "notify")),
		Probe:          probe,
		Dispatcher:     dispatcher,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
		StartTime:      startTime,
		Version:        Version,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
	}

	logger.Info("initiating graceful shutdown", "in_flight", dispatcher.InFlight())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown cleanly", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newDownloader(cfg config.Config, ffmpeg *transcode.FFmpeg, logger *slog.Logger) download.Downloader {
	dlLogger := logging.WithComponent(logger, "download")

	var backend download.Downloader
	switch cfg.Downloader() {
	case config.DownloaderNative:
		backend = download.NewNative(nil, ffmpeg, dlLogger)
	default:
		backend = download.NewYtDlp(cfg.YtDlpPath(), dlLogger)
	}

	backend = download.NewPaced(backend, cfg.DownloadsPerMinute())
	return download.NewRetrying(backend, cfg.MaxRetries(), cfg.RetryDelay(), dlLogger)
}

// newUploader resolves the credential once. A missing or broken credential
// does not stop the server; every run then fails at authentication.
func newUploader(cfg config.Config, logger *slog.Logger) clip.Uploader {
	env := cfg.Credential()
	cred, source, err := youtube.LoadCredential(cfg.TokenFile(), youtube.Credential{
		AccessToken:  env.AccessToken,
		RefreshToken: env.RefreshToken,
		ClientID:     env.ClientID,
		ClientSecret: env.ClientSecret,
		TokenURI:     env.TokenURI,
	})
	if err != nil {
		logger.Warn("youtube credential unavailable, uploads will fail", "source", source, "error", err)
		return noCredential{err: err}
	}

	uploader, err := youtube.NewUploader(cred, logging.WithComponent(logger, "youtube"),
		youtube.WithChunkSize(cfg.UploadChunkSize()),
	)
	if err != nil {
		logger.Warn("youtube uploader unavailable, uploads will fail", "error", err)
		return noCredential{err: err}
	}
	logger.Info("youtube credential loaded", "source", source)
	return uploader
}

type noCredential struct {
	err error
}

func (n noCredential) Authenticate(ctx context.Context) error {
	if errors.Is(n.err, youtube.ErrAuth) {
		return n.err
	}
	return fmt.Errorf("%w: %w", youtube.ErrAuth, n.err)
}

func (n noCredential) Upload(ctx context.Context, path string, meta youtube.Metadata) (youtube.UploadResult, error) {
	return youtube.UploadResult{}, n.Authenticate(ctx)
}
