package transcode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	videoCodec   = "libx264"
	videoPreset  = "fast"
	audioCodec   = "aac"
	audioBitrate = "128k"
)

// FFmpeg is the production Transcoder.
type FFmpeg struct {
	binary string
	logger *slog.Logger
}

// NewFFmpeg returns a Transcoder that runs binary (looked up on PATH when
// not absolute).
func NewFFmpeg(binary string, logger *slog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, logger: logger}
}

// Trim re-encodes the [start, start+duration) window of in into out.
// Windows past the end of the source are left to ffmpeg, which emits a
// shorter or empty clip.
func (f *FFmpeg) Trim(ctx context.Context, in, out, start, duration string) (RunResult, error) {
	return f.exec(ctx, out,
		"-i", in,
		"-ss", start,
		"-t", duration,
		"-c:v", videoCodec,
		"-preset", videoPreset,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-y",
		out,
	)
}

// Mux stream-copies video and audio into out.
func (f *FFmpeg) Mux(ctx context.Context, video, audio, out string) (RunResult, error) {
	return f.exec(ctx, out,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", video,
		"-i", audio,
		"-c", "copy",
		out,
	)
}

// exec is the core subprocess execution helper.
func (f *FFmpeg) exec(ctx context.Context, outPath string, args ...string) (RunResult, error) {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}, err
	}

	cmd := exec.CommandContext(ctx, f.binary, args...)

	stderrBuf := NewTailWriter(maxStderrBytes)
	cmd.Stderr = stderrBuf
	cmd.Stdout = io.Discard

	f.logger.Debug("executing ffmpeg", "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if exitCode != 0 {
		stderr := result.StderrTail
		if stderr == "" && err != nil {
			stderr = err.Error()
		}
		f.logger.Warn("ffmpeg failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderr, 512),
		)
		return result, &ExitError{ExitCode: exitCode, Stderr: stderr}
	}

	f.logger.Info("ffmpeg succeeded",
		"duration_ms", elapsed.Milliseconds(),
		"output", filepath.Base(outPath),
	)
	return result, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
