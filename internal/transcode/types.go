// Package transcode drives the ffmpeg binary as a subprocess to cut clips
// out of downloaded sources and to mux separate video and audio streams.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExit is wrapped by every ExitError.
var ErrExit = errors.New("transcoder exited with failure")

// Transcoder is the contract the clip pipeline and the native downloader
// depend on.
type Transcoder interface {
	// Trim cuts duration starting at start out of in and re-encodes it to out.
	// start and duration use ffmpeg time syntax (e.g. "00:01:00").
	Trim(ctx context.Context, in, out, start, duration string) (RunResult, error)

	// Mux copies a video-only and an audio-only stream into one container.
	Mux(ctx context.Context, video, audio, out string) (RunResult, error)
}

// RunResult is the structured outcome of executing ffmpeg.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// ExitError reports a non-zero transcoder exit.
type ExitError struct {
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ffmpeg exited %d: %s", e.ExitCode, truncate(e.Stderr, 512))
}

func (e *ExitError) Unwrap() error { return ErrExit }

// Capabilities reports which external binaries are usable on this host.
type Capabilities struct {
	Tools    map[string]ToolInfo `json:"tools"`
	ProbedAt time.Time           `json:"probed_at"`
}

// ToolInfo is the availability of a single binary.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AllAvailable is true when every probed tool resolved.
func (c *Capabilities) AllAvailable() bool {
	for _, t := range c.Tools {
		if !t.Available {
			return false
		}
	}
	return len(c.Tools) > 0
}
