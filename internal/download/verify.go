package download

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// headerSize is enough bytes for filetype to recognise any container.
const headerSize = 262

// LocateOutput finds the single input_video.* file a backend left in dir and
// checks that it really is a video container.
func LocateOutput(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, OutputBase+".*"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var complete []string
	for _, m := range matches {
		// yt-dlp leaves these behind when a merge fails
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		complete = append(complete, m)
	}

	var path string
	switch len(complete) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrNotFound, filepath.Base(dir))
	case 1:
		path = complete[0]
	default:
		// Unmerged format fragments (input_video.f137.mp4 ...) mean the merge step failed.
		return "", fmt.Errorf("%w: %d candidate files, merge incomplete", ErrNotFound, len(complete))
	}

	if err := checkVideo(path); err != nil {
		return "", err
	}
	return path, nil
}

func checkVideo(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: read header: %v", ErrNotFound, err)
	}
	head = head[:n]

	if !filetype.IsVideo(head) {
		kind, _ := filetype.Match(head)
		return fmt.Errorf("%w: %s is not a video (detected %s)", ErrNotFound, filepath.Base(path), kind.MIME.Value)
	}
	return nil
}
