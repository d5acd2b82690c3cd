package clip

import (
	"context"
	"errors"
	"fmt"

	"github.com/heimdex/clipper/internal/download"
	"github.com/heimdex/clipper/internal/transcode"
	"github.com/heimdex/clipper/internal/youtube"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindDownload    Kind = "download"
	KindRateLimited Kind = "rate_limited"
	KindTranscode   Kind = "transcode"
	KindAuth        Kind = "auth"
	KindUpload      Kind = "upload"
	KindInternal    Kind = "internal"
)

// User-facing failure messages.
const (
	MsgFileNotFound   = "Arquivo de vídeo não encontrado após download."
	MsgDownloadFailed = "Erro no download do vídeo."
	MsgTrimFailed     = "Erro no corte do vídeo."
	MsgInternal       = "Erro inesperado."
)

// maxDetailLen bounds the tool output appended to a user-facing message.
const maxDetailLen = 200

// StageError is a failure attributed to one pipeline stage. Message is safe
// to return to callers; Err carries the full diagnostic detail for logs.
type StageError struct {
	Stage   State
	Kind    Kind
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// classify maps an adapter error to a StageError for the stage it came from.
func classify(stage State, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &StageError{Stage: stage, Kind: KindInternal, Message: MsgInternal, Err: err}
	}

	var (
		exhausted *download.RateLimitExhaustedError
		backend   *download.BackendError
		exit      *transcode.ExitError
	)
	switch {
	case errors.As(err, &exhausted):
		return &StageError{Stage: stage, Kind: KindRateLimited, Message: exhausted.Error(), Err: err}
	case errors.Is(err, download.ErrRateLimited):
		return &StageError{Stage: stage, Kind: KindRateLimited, Message: "Falha no download (erro 429).", Err: err}
	case errors.Is(err, download.ErrNotFound):
		return &StageError{Stage: stage, Kind: KindDownload, Message: MsgFileNotFound, Err: err}
	case errors.As(err, &backend) && errors.Is(err, download.ErrDownload):
		return &StageError{Stage: stage, Kind: KindDownload, Message: withDetail(MsgDownloadFailed, backend.Detail), Err: err}
	case errors.Is(err, download.ErrDownload):
		return &StageError{Stage: stage, Kind: KindDownload, Message: MsgDownloadFailed, Err: err}
	case errors.As(err, &exit):
		return &StageError{Stage: stage, Kind: KindTranscode, Message: withDetail(MsgTrimFailed, exit.Stderr), Err: err}
	case errors.Is(err, transcode.ErrExit):
		return &StageError{Stage: stage, Kind: KindTranscode, Message: MsgTrimFailed, Err: err}
	case errors.Is(err, youtube.ErrAuth):
		return &StageError{Stage: stage, Kind: KindAuth, Message: "Falha na autenticação com o YouTube.", Err: err}
	case errors.Is(err, youtube.ErrUpload):
		return &StageError{Stage: stage, Kind: KindUpload, Message: "Falha no upload para o YouTube.", Err: err}
	}
	return &StageError{Stage: stage, Kind: KindInternal, Message: MsgInternal, Err: err}
}

// withDetail appends the last line of a tool's output to msg so callers see
// what actually failed, for example "moov atom not found".
func withDetail(msg, output string) string {
	line := transcode.LastLine(output, maxDetailLen)
	if line == "" {
		return msg
	}
	return msg + " " + line
}
