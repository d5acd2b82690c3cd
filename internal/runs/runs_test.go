package runs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/clipper/internal/clip"
	"github.com/heimdex/clipper/internal/db"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(db.Memory, nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := &Run{ID: "r1", VideoURL: "https://youtu.be/x", State: "start", CallbackURL: "https://hook.example/cb"}
	require.NoError(t, repo.Create(ctx, run))

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "https://hook.example/cb", got.CallbackURL)
	assert.False(t, got.Finished())
	assert.Nil(t, got.FinishedAt)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, 5*time.Second)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_UpdateAndComplete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Run{ID: "r1", VideoURL: "u", State: "start"}))

	require.NoError(t, repo.UpdateState(ctx, "r1", "uploading"))
	require.NoError(t, repo.Complete(ctx, "r1", Outcome{
		Status:    StatusSuccess,
		VideoID:   "abc123",
		VideoLink: "https://www.youtube.com/watch?v=abc123",
	}))

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "uploading", got.State)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "abc123", got.VideoID)
	assert.True(t, got.Finished())
	require.NotNil(t, got.FinishedAt)
}

func TestRepository_ListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		clock.t = clock.t.Add(time.Second)
		require.NoError(t, repo.Create(ctx, &Run{ID: fmt.Sprintf("r%d", i), VideoURL: "u", State: "start"}))
	}

	list, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "r4", list[0].ID)
	assert.Equal(t, "r2", list[2].ID)
}

func TestRepository_PruneOnlyFinished(t *testing.T) {
	repo := newTestRepo(t)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo.now = clock.Now
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &Run{ID: "old-done", VideoURL: "u", State: "start"}))
	require.NoError(t, repo.Create(ctx, &Run{ID: "old-running", VideoURL: "u", State: "start"}))
	require.NoError(t, repo.Complete(ctx, "old-done", Outcome{Status: StatusError, Message: "x"}))

	clock.t = clock.t.Add(2 * time.Hour)
	require.NoError(t, repo.Create(ctx, &Run{ID: "new-done", VideoURL: "u", State: "start"}))
	require.NoError(t, repo.Complete(ctx, "new-done", Outcome{Status: StatusSuccess}))

	n, err := repo.Prune(ctx, clock.t.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, _ := repo.Get(ctx, "old-done")
	assert.Nil(t, gone)
	kept, _ := repo.Get(ctx, "old-running")
	assert.NotNil(t, kept)
	recent, _ := repo.Get(ctx, "new-done")
	assert.NotNil(t, recent)
}

func TestRegistry_ObservesPipeline(t *testing.T) {
	repo := newTestRepo(t)
	reg := NewRegistry(repo, testLogger())
	ctx := context.Background()

	_, err := reg.Begin(ctx, "r1", "https://youtube.com/shorts/xyz", "")
	require.NoError(t, err)

	reg.OnState("r1", clip.StateTrimming)
	got, _ := reg.Get(ctx, "r1")
	assert.Equal(t, "trimming", got.State)
	assert.Equal(t, StatusRunning, got.Status)

	reg.OnState("r1", clip.StateDone)
	reg.OnDone("r1", clip.Result{RunID: "r1", Status: clip.StatusError, Message: clip.MsgTrimFailed, Kind: clip.KindTranscode})

	got, _ = reg.Get(ctx, "r1")
	assert.Equal(t, "done", got.State)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, clip.MsgTrimFailed, got.Message)
	assert.Equal(t, "transcode", got.Kind)
}

func TestJanitor_Sweep(t *testing.T) {
	repo := newTestRepo(t)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo.now = clock.Now
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &Run{ID: "r1", VideoURL: "u", State: "start"}))
	require.NoError(t, repo.Complete(ctx, "r1", Outcome{Status: StatusSuccess}))

	j := NewJanitor(repo, time.Hour, testLogger())
	j.now = clock.Now

	assert.Equal(t, int64(0), j.Sweep(ctx), "within retention")

	clock.t = clock.t.Add(90 * time.Minute)
	assert.Equal(t, int64(1), j.Sweep(ctx))
}

func TestJanitor_StartStops(t *testing.T) {
	j := NewJanitor(newTestRepo(t), time.Hour, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	require.Eventually(t, j.IsRunning, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
	assert.False(t, j.IsRunning())
}

func TestNewJanitor_Interval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, NewJanitor(nil, 24*time.Hour, testLogger()).interval)
	assert.Equal(t, 15*time.Second, NewJanitor(nil, time.Minute, testLogger()).interval)
	assert.Equal(t, time.Second, NewJanitor(nil, time.Millisecond, testLogger()).interval)
}
