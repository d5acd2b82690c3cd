package download

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/clipper/internal/transcode"
)

type fakeSource struct {
	video     *youtube.Video
	videoErr  error
	streamErr error
	fetched   []string
}

func (f *fakeSource) GetVideoContext(ctx context.Context, url string) (*youtube.Video, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return f.video, nil
}

func (f *fakeSource) GetStreamContext(ctx context.Context, v *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error) {
	if f.streamErr != nil {
		return nil, 0, f.streamErr
	}
	f.fetched = append(f.fetched, format.MimeType)
	return io.NopCloser(bytes.NewReader(mp4Header)), int64(len(mp4Header)), nil
}

// copyMuxer stands in for ffmpeg by copying the video stream to out.
type copyMuxer struct {
	calls int
}

func (m *copyMuxer) Mux(ctx context.Context, video, audio, out string) (transcode.RunResult, error) {
	m.calls++
	data, err := os.ReadFile(video)
	if err != nil {
		return transcode.RunResult{ExitCode: 1}, err
	}
	return transcode.RunResult{}, os.WriteFile(out, data, 0644)
}

func sampleVideo() *youtube.Video {
	return &youtube.Video{
		ID: "abc123",
		Formats: youtube.FormatList{
			{MimeType: `video/webm; codecs="vp9"`, QualityLabel: "1080p"},
			{MimeType: `video/mp4; codecs="avc1"`, QualityLabel: "1080p"},
			{MimeType: `video/mp4; codecs="avc1"`, QualityLabel: "720p60"},
			{MimeType: `audio/webm; codecs="opus"`, ContentLength: 900},
			{MimeType: `audio/mp4; codecs="mp4a"`, ContentLength: 500},
		},
	}
}

func TestBestVideoFormat_PrefersHeightThenMP4(t *testing.T) {
	f := bestVideoFormat(sampleVideo().Formats)
	require.NotNil(t, f)
	assert.Equal(t, "1080p", f.QualityLabel)
	assert.Contains(t, f.MimeType, "mp4")
}

func TestBestAudioFormat_PrefersMP4(t *testing.T) {
	f := bestAudioFormat(sampleVideo().Formats)
	require.NotNil(t, f)
	assert.Contains(t, f.MimeType, "audio/mp4")
}

func TestParseQuality(t *testing.T) {
	assert.Equal(t, 1080, parseQuality("1080p60"))
	assert.Equal(t, 720, parseQuality("720p"))
	assert.Equal(t, 0, parseQuality(""))
}

func TestNative_DownloadsAndMuxes(t *testing.T) {
	src := &fakeSource{video: sampleVideo()}
	mux := &copyMuxer{}
	dir := t.TempDir()

	path, err := NewNative(src, mux, testLogger()).Download(context.Background(), "https://www.youtube.com/watch?v=abc123", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "input_video.mp4"), path)
	assert.Equal(t, 1, mux.calls)
	assert.Len(t, src.fetched, 2)

	// stream temp files are removed
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNative_ProgressiveOnly(t *testing.T) {
	src := &fakeSource{video: &youtube.Video{
		ID:      "p",
		Formats: youtube.FormatList{{MimeType: "video/mp4", QualityLabel: "360p"}},
	}}
	mux := &copyMuxer{}

	_, err := NewNative(src, mux, testLogger()).Download(context.Background(), "u", t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, mux.calls)
}

func TestNative_RateLimitClassified(t *testing.T) {
	src := &fakeSource{videoErr: errors.New("unexpected status code: 429")}

	_, err := NewNative(src, &copyMuxer{}, testLogger()).Download(context.Background(), "u", t.TempDir())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestNative_NoFormats(t *testing.T) {
	src := &fakeSource{video: &youtube.Video{ID: "x"}}

	_, err := NewNative(src, &copyMuxer{}, testLogger()).Download(context.Background(), "u", t.TempDir())
	assert.ErrorIs(t, err, ErrDownload)
}
