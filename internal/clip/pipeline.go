// Package clip sequences download, trim and upload for one source video.
package clip

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/clipper/internal/download"
	"github.com/heimdex/clipper/internal/logging"
	"github.com/heimdex/clipper/internal/transcode"
	"github.com/heimdex/clipper/internal/youtube"
)

// State is a step of a pipeline run.
type State string

const (
	StateStart          State = "start"
	StateNormalizing    State = "normalizing"
	StateDownloading    State = "downloading"
	StateTrimming       State = "trimming"
	StateAuthenticating State = "authenticating"
	StateUploading      State = "uploading"
	StateCleanup        State = "cleanup"
	StateDone           State = "done"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// ClipFile is the trimmed output name inside the run directory.
	ClipFile = "output_clip.mp4"
)

// Trimmer cuts a window out of a source file.
type Trimmer interface {
	Trim(ctx context.Context, in, out, start, duration string) (transcode.RunResult, error)
}

// Uploader publishes the finished clip.
type Uploader interface {
	Authenticate(ctx context.Context) error
	Upload(ctx context.Context, path string, meta youtube.Metadata) (youtube.UploadResult, error)
}

// Observer is told about every state a run enters. The final call carries
// StateDone and the result.
type Observer interface {
	OnState(runID string, state State)
	OnDone(runID string, result Result)
}

// Request is the input of one run. Empty fields take the pipeline defaults.
type Request struct {
	RunID       string
	VideoURL    string
	Start       string
	Duration    string
	Title       string
	Description string
}

// Result is Success{VideoID, VideoLink} or Failure{Message}, told apart by
// Status.
type Result struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	VideoID   string `json:"video_id,omitempty"`
	VideoLink string `json:"video_link,omitempty"`
	Message   string `json:"message,omitempty"`
	Kind      Kind   `json:"kind,omitempty"`
}

// IsSuccess reports whether the clip was published.
func (r Result) IsSuccess() bool { return r.Status == StatusSuccess }

// Defaults fill in Request fields the caller left empty.
type Defaults struct {
	Start       string
	Duration    string
	Title       string
	Description string
}

// Pipeline runs download, trim and upload in order. Each run owns a fresh
// directory under workDir, so concurrent runs never share files.
type Pipeline struct {
	downloader download.Downloader
	trimmer    Trimmer
	uploader   Uploader
	workDir    string
	defaults   Defaults
	observer   Observer
	logger     *slog.Logger
}

func NewPipeline(downloader download.Downloader, trimmer Trimmer, uploader Uploader, workDir string, defaults Defaults, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		downloader: downloader,
		trimmer:    trimmer,
		uploader:   uploader,
		workDir:    workDir,
		defaults:   fillDefaults(defaults),
		logger:     logger,
	}
}

// SetObserver registers the state observer. Call before the first Run.
func (p *Pipeline) SetObserver(o Observer) {
	p.observer = o
}

// Run executes one pipeline run to completion and always returns a Result.
// The run directory is removed before Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	req = p.withDefaults(req)
	logger := logging.WithRunID(p.logger, req.RunID)

	start := time.Now()
	p.transition(logger, req.RunID, StateStart)

	dir := filepath.Join(p.workDir, req.RunID)
	result := p.execute(ctx, logger, dir, req)
	result.RunID = req.RunID

	p.transition(logger, req.RunID, StateCleanup)
	p.cleanup(logger, dir)

	p.transition(logger, req.RunID, StateDone)
	if result.IsSuccess() {
		logger.Info("run succeeded",
			"video_id", result.VideoID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		logger.Error("run failed",
			"kind", result.Kind,
			"message", result.Message,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	if p.observer != nil {
		p.observer.OnDone(req.RunID, result)
	}
	return result
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, dir string, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in pipeline", "panic", r)
			result = failure(&StageError{Stage: StateDone, Kind: KindInternal, Message: MsgInternal, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if req.VideoURL == "" {
		return failure(&StageError{Stage: StateStart, Kind: KindValidation, Message: "Missing video_url"})
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return p.fail(logger, StateStart, fmt.Errorf("create run dir: %w", err))
	}

	p.transition(logger, req.RunID, StateNormalizing)
	url := download.NormalizeURL(req.VideoURL)
	if download.IsShorts(req.VideoURL) {
		logger.Info("normalized shorts url", "from", req.VideoURL, "to", url)
	}

	p.transition(logger, req.RunID, StateDownloading)
	source, err := p.downloader.Download(ctx, url, dir)
	if err != nil {
		return p.fail(logger, StateDownloading, err)
	}

	p.transition(logger, req.RunID, StateTrimming)
	clipPath := filepath.Join(dir, ClipFile)
	if _, err := p.trimmer.Trim(ctx, source, clipPath, req.Start, req.Duration); err != nil {
		return p.fail(logger, StateTrimming, err)
	}

	p.transition(logger, req.RunID, StateAuthenticating)
	if err := p.uploader.Authenticate(ctx); err != nil {
		return p.fail(logger, StateAuthenticating, err)
	}

	p.transition(logger, req.RunID, StateUploading)
	uploaded, err := p.uploader.Upload(ctx, clipPath, youtube.Metadata{Title: req.Title, Description: req.Description})
	if err != nil {
		return p.fail(logger, StateUploading, err)
	}

	return Result{
		Status:    StatusSuccess,
		VideoID:   uploaded.VideoID,
		VideoLink: uploaded.VideoLink,
	}
}

func (p *Pipeline) fail(logger *slog.Logger, stage State, err error) Result {
	se := classify(stage, err)
	logger.Error("stage failed", "stage", stage, "kind", se.Kind, "error", err)
	return failure(se)
}

func failure(se *StageError) Result {
	return Result{Status: StatusError, Message: se.Message, Kind: se.Kind}
}

func (p *Pipeline) transition(logger *slog.Logger, runID string, s State) {
	logger.Debug("run state", "state", s)
	if p.observer != nil {
		p.observer.OnState(runID, s)
	}
}

// cleanup is best effort; errors never change the run outcome.
func (p *Pipeline) cleanup(logger *slog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove run dir", "dir", dir, "error", err)
		return
	}
	logger.Debug("removed run dir", "dir", dir)
}

func (p *Pipeline) withDefaults(req Request) Request {
	if req.Start == "" {
		req.Start = p.defaults.Start
	}
	if req.Duration == "" {
		req.Duration = p.defaults.Duration
	}
	if req.Title == "" {
		req.Title = p.defaults.Title
	}
	if req.Description == "" {
		req.Description = p.defaults.Description
	}
	return req
}

// StandardDefaults produce a one minute clip from the start of the source.
var StandardDefaults = Defaults{
	Start:       "00:00:00",
	Duration:    "00:01:00",
	Title:       "Short automático",
	Description: "Gerado automaticamente",
}

func fillDefaults(d Defaults) Defaults {
	if d.Start == "" {
		d.Start = StandardDefaults.Start
	}
	if d.Duration == "" {
		d.Duration = StandardDefaults.Duration
	}
	if d.Title == "" {
		d.Title = StandardDefaults.Title
	}
	if d.Description == "" {
		d.Description = StandardDefaults.Description
	}
	return d
}
