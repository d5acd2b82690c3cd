package download

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/clipper/internal/transcode"
)

const maxStderrBytes = 8 * 1024

// YtDlp shells out to the yt-dlp binary.
type YtDlp struct {
	binary string
	logger *slog.Logger
}

// NewYtDlp creates a yt-dlp backend; binary defaults to "yt-dlp" on PATH.
func NewYtDlp(binary string, logger *slog.Logger) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{binary: binary, logger: logger}
}

// Args returns the yt-dlp arguments used to fetch url into dir.
func (d *YtDlp) Args(url, dir string) []string {
	return []string{
		"-f", "bestvideo+bestaudio/best",
		"--merge-output-format", "mp4",
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--user-agent", DesktopUserAgent,
		"-o", filepath.Join(dir, OutputBase+".%(ext)s"),
		url,
	}
}

// Download runs one yt-dlp attempt. It never retries on its own.
func (d *YtDlp) Download(ctx context.Context, url, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &BackendError{Kind: ErrDownload, Detail: err.Error()}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, d.binary, d.Args(url, dir)...)

	stderr := transcode.NewTailWriter(maxStderrBytes)
	cmd.Stderr = stderr
	cmd.Stdout = stderr

	d.logger.Info("downloading video", "url", url)

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		if isRateLimitMessage(msg) {
			return "", &BackendError{Kind: ErrRateLimited, Detail: msg}
		}
		return "", &BackendError{Kind: ErrDownload, Detail: msg}
	}

	path, err := LocateOutput(dir)
	if err != nil {
		return "", err
	}

	d.logger.Info("download finished",
		"file", filepath.Base(path),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}
