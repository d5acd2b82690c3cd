// Package runs records pipeline runs so async callers can look up outcomes.
// Records live in an in-memory SQLite database and are pruned after a
// retention window.
package runs

import (
	"time"
)

const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"

	DefaultListLimit = 50
)

// Run is one webhook-triggered pipeline execution.
type Run struct {
	ID          string     `json:"id"`
	VideoURL    string     `json:"video_url"`
	State       string     `json:"state"`
	Status      string     `json:"status"`
	VideoID     string     `json:"video_id,omitempty"`
	VideoLink   string     `json:"video_link,omitempty"`
	Message     string     `json:"message,omitempty"`
	Kind        string     `json:"kind,omitempty"`
	CallbackURL string     `json:"callback_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the run reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status != StatusRunning
}

// Outcome is the terminal result written by Complete.
type Outcome struct {
	Status    string
	VideoID   string
	VideoLink string
	Message   string
	Kind      string
}

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
