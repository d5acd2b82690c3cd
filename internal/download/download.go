// Package download fetches source media for the clip pipeline.
//
// Backends (yt-dlp subprocess, native Go client) write a single file named
// input_video.<ext> into a caller-owned directory. Decorators add pacing and
// the bounded rate-limit retry loop.
package download

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// OutputBase is the file name stem every backend writes to.
const OutputBase = "input_video"

// DesktopUserAgent is sent upstream so requests look like a regular browser.
const DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

var (
	// ErrRateLimited marks an upstream HTTP 429. Only these are retried.
	ErrRateLimited = errors.New("rate limited (HTTP 429)")
	// ErrNotFound means the backend finished but no usable file was left.
	ErrNotFound = errors.New("downloaded file not found")
	// ErrDownload covers every other fatal download failure.
	ErrDownload = errors.New("download failed")
)

// Downloader fetches url into dir and returns the path of the media file.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (string, error)
}

// RateLimitExhaustedError is returned once every attempt hit a 429.
type RateLimitExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RateLimitExhaustedError) Error() string {
	return fmt.Sprintf("Falha após %d tentativas (erro 429).", e.Attempts)
}

func (e *RateLimitExhaustedError) Unwrap() error { return ErrRateLimited }

// BackendError carries the diagnostic output of a failed backend run.
type BackendError struct {
	Kind   error // ErrRateLimited or ErrDownload
	Detail string
}

func (e *BackendError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *BackendError) Unwrap() error { return e.Kind }

const (
	shortsPath = "youtube.com/shorts/"
	watchPath  = "youtube.com/watch?v="
)

// NormalizeURL rewrites a Shorts link to the canonical watch form. Any other
// URL is returned unchanged apart from surrounding whitespace.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if IsShorts(u) {
		return strings.Replace(u, shortsPath, watchPath, 1)
	}
	return u
}

// IsShorts reports whether raw points at a Shorts page.
func IsShorts(raw string) bool {
	return strings.Contains(raw, shortsPath)
}

func isRateLimitMessage(msg string) bool {
	return strings.Contains(msg, "HTTP Error 429") ||
		strings.Contains(msg, "Too Many Requests") ||
		strings.Contains(msg, "status code: 429")
}
