package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/heimdex/clipper/internal/transcode"
)

// VideoSource is the subset of *youtube.Client the native backend needs.
type VideoSource interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// Muxer joins separate video and audio streams into one container.
type Muxer interface {
	Mux(ctx context.Context, video, audio, out string) (transcode.RunResult, error)
}

// Native downloads through the YouTube player API without yt-dlp. The best
// video and audio streams are fetched separately and muxed with ffmpeg.
type Native struct {
	source VideoSource
	muxer  Muxer
	logger *slog.Logger
}

// NewNative creates a native backend. A nil source uses a default client.
func NewNative(source VideoSource, muxer Muxer, logger *slog.Logger) *Native {
	if source == nil {
		source = &youtube.Client{}
	}
	return &Native{source: source, muxer: muxer, logger: logger}
}

func (n *Native) Download(ctx context.Context, url, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &BackendError{Kind: ErrDownload, Detail: err.Error()}
	}

	video, err := n.source.GetVideoContext(ctx, url)
	if err != nil {
		return "", classify(err)
	}

	vf := bestVideoFormat(video.Formats)
	if vf == nil {
		return "", &BackendError{Kind: ErrDownload, Detail: "no video formats available"}
	}
	af := bestAudioFormat(video.Formats)

	n.logger.Info("downloading video",
		"url", url,
		"video_id", video.ID,
		"quality", vf.QualityLabel,
		"separate_audio", af != nil,
	)

	out := filepath.Join(dir, OutputBase+".mp4")
	if af == nil {
		if err := n.fetch(ctx, video, vf, out); err != nil {
			return "", err
		}
		return LocateOutput(dir)
	}

	videoPath := filepath.Join(dir, "stream_video.tmp")
	audioPath := filepath.Join(dir, "stream_audio.tmp")
	defer os.Remove(videoPath)
	defer os.Remove(audioPath)

	if err := n.fetch(ctx, video, vf, videoPath); err != nil {
		return "", err
	}
	if err := n.fetch(ctx, video, af, audioPath); err != nil {
		return "", err
	}

	if _, err := n.muxer.Mux(ctx, videoPath, audioPath, out); err != nil {
		return "", &BackendError{Kind: ErrDownload, Detail: err.Error()}
	}
	return LocateOutput(dir)
}

func (n *Native) fetch(ctx context.Context, v *youtube.Video, f *youtube.Format, path string) error {
	stream, size, err := n.source.GetStreamContext(ctx, v, f)
	if err != nil {
		return classify(err)
	}
	defer stream.Close()

	file, err := os.Create(path)
	if err != nil {
		return &BackendError{Kind: ErrDownload, Detail: err.Error()}
	}
	defer file.Close()

	written, err := io.Copy(file, stream)
	if err != nil {
		return classify(err)
	}
	if size > 0 && written < size {
		return &BackendError{Kind: ErrDownload, Detail: fmt.Sprintf("short read: %d of %d bytes", written, size)}
	}
	return nil
}

func classify(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "429") || isRateLimitMessage(msg) {
		return &BackendError{Kind: ErrRateLimited, Detail: msg}
	}
	return &BackendError{Kind: ErrDownload, Detail: msg}
}

// bestVideoFormat picks the highest quality video stream, preferring mp4.
func bestVideoFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "video/") {
			continue
		}
		if best == nil {
			best = f
			continue
		}
		h, bh := parseQuality(f.QualityLabel), parseQuality(best.QualityLabel)
		if h > bh || (h == bh && isMP4(f) && !isMP4(best)) {
			best = f
		}
	}
	return best
}

// bestAudioFormat picks an audio-only stream, preferring mp4 then size.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil ||
			(isMP4(f) && !isMP4(best)) ||
			(isMP4(f) == isMP4(best) && f.ContentLength > best.ContentLength) {
			best = f
		}
	}
	return best
}

func isMP4(f *youtube.Format) bool {
	return strings.Contains(f.MimeType, "mp4")
}

// parseQuality turns "1080p60" into 1080.
func parseQuality(label string) int {
	end := strings.IndexFunc(label, func(r rune) bool { return r < '0' || r > '9' })
	if end == -1 {
		end = len(label)
	}
	h, err := strconv.Atoi(label[:end])
	if err != nil {
		return 0
	}
	return h
}
