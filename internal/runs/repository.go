package runs

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Repository interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	UpdateState(ctx context.Context, id, state string) error
	Complete(ctx context.Context, id string, out Outcome) error
	Prune(ctx context.Context, finishedBefore time.Time) (int64, error)
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const runColumns = `id, video_url, state, status, video_id, video_link, message, kind, callback_url, created_at, updated_at, finished_at`

func (r *SQLiteRepository) Create(ctx context.Context, run *Run) error {
	now := r.now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, run.ID, run.VideoURL, run.State, run.Status,
		nullString(run.VideoID), nullString(run.VideoLink), nullString(run.Message),
		nullString(run.Kind), nullString(run.CallbackURL),
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt))
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) UpdateState(ctx context.Context, id, state string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, updated_at = ? WHERE id = ?
	`, state, formatTime(r.now()), id)
	return err
}

func (r *SQLiteRepository) Complete(ctx context.Context, id string, out Outcome) error {
	now := formatTime(r.now())
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, video_id = ?, video_link = ?, message = ?, kind = ?, updated_at = ?, finished_at = ?
		WHERE id = ?
	`, out.Status, nullString(out.VideoID), nullString(out.VideoLink), nullString(out.Message),
		nullString(out.Kind), now, now, id)
	return err
}

// Prune deletes finished runs older than finishedBefore. Running runs are
// never removed.
func (r *SQLiteRepository) Prune(ctx context.Context, finishedBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM runs WHERE finished_at IS NOT NULL AND finished_at < ?
	`, formatTime(finishedBefore))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var videoID, videoLink, message, kind, callbackURL, finishedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&run.ID, &run.VideoURL, &run.State, &run.Status,
		&videoID, &videoLink, &message, &kind, &callbackURL,
		&createdAt, &updatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.VideoID = videoID.String
	run.VideoLink = videoLink.String
	run.Message = message.String
	run.Kind = kind.String
	run.CallbackURL = callbackURL.String
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
