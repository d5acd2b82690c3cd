package transcode

import (
	"bytes"
	"strings"
)

// TailWriter is an io.Writer that keeps only the last limit bytes.
// Subprocess runners point stderr at it.
type TailWriter struct {
	buf   bytes.Buffer
	limit int
}

func NewTailWriter(limit int) *TailWriter {
	return &TailWriter{limit: limit}
}

func (t *TailWriter) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if t.limit > 0 && t.buf.Len() > t.limit {
		b := t.buf.Bytes()
		tail := make([]byte, t.limit)
		copy(tail, b[len(b)-t.limit:])
		t.buf.Reset()
		t.buf.Write(tail)
	}
	return n, nil
}

func (t *TailWriter) String() string { return t.buf.String() }

// LastLine returns the last non-blank line of output, cut to at most
// maxLen bytes. Tools print the decisive error last.
func LastLine(output string, maxLen int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if maxLen > 0 && len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8RuneStart(line[cut]) {
				cut--
			}
			line = line[:cut] + "..."
		}
		return line
	}
	return ""
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
