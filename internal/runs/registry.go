package runs

import (
	"context"
	"log/slog"
	"time"

	"github.com/heimdex/clipper/internal/clip"
)

const writeTimeout = 5 * time.Second

// Registry tracks run progress. It implements clip.Observer so the pipeline
// reports state changes directly.
type Registry struct {
	repo   Repository
	logger *slog.Logger
}

func NewRegistry(repo Repository, logger *slog.Logger) *Registry {
	return &Registry{repo: repo, logger: logger}
}

// Begin records a run before it is dispatched.
func (g *Registry) Begin(ctx context.Context, id, videoURL, callbackURL string) (*Run, error) {
	run := &Run{
		ID:          id,
		VideoURL:    videoURL,
		State:       string(clip.StateStart),
		Status:      StatusRunning,
		CallbackURL: callbackURL,
	}
	if err := g.repo.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (g *Registry) Get(ctx context.Context, id string) (*Run, error) {
	return g.repo.Get(ctx, id)
}

func (g *Registry) List(ctx context.Context, limit int) ([]*Run, error) {
	return g.repo.List(ctx, limit)
}

func (g *Registry) OnState(runID string, state clip.State) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := g.repo.UpdateState(ctx, runID, string(state)); err != nil {
		g.logger.Warn("failed to record run state", "run_id", runID, "state", state, "error", err)
	}
}

func (g *Registry) OnDone(runID string, result clip.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	out := Outcome{
		Status:    result.Status,
		VideoID:   result.VideoID,
		VideoLink: result.VideoLink,
		Message:   result.Message,
		Kind:      string(result.Kind),
	}
	if err := g.repo.Complete(ctx, runID, out); err != nil {
		g.logger.Warn("failed to record run result", "run_id", runID, "error", err)
	}
}

var _ clip.Observer = (*Registry)(nil)
