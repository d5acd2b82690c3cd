package api

import (
	"time"

	"github.com/heimdex/clipper/internal/runs"
)

type RootResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	UptimeS  int64           `json:"uptime_s"`
	Mode     string          `json:"mode"`
	InFlight int64           `json:"in_flight"`
	Tools    map[string]bool `json:"tools,omitempty"`
}

type WebhookRequest struct {
	VideoURL    string `json:"video_url"`
	Start       string `json:"start,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type WebhookAcceptedResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

// WebhookResultResponse is the sync mode body. VideoURL carries the public
// link of the uploaded clip.
type WebhookResultResponse struct {
	Status   string `json:"status"`
	RunID    string `json:"run_id,omitempty"`
	VideoID  string `json:"video_id,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
	Message  string `json:"message,omitempty"`
}

type RunResponse struct {
	ID         string `json:"id"`
	VideoURL   string `json:"video_url"`
	State      string `json:"state"`
	Status     string `json:"status"`
	VideoID    string `json:"video_id,omitempty"`
	VideoLink  string `json:"video_link,omitempty"`
	Message    string `json:"message,omitempty"`
	Kind       string `json:"kind,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RunToResponse(r *runs.Run) RunResponse {
	resp := RunResponse{
		ID:        r.ID,
		VideoURL:  r.VideoURL,
		State:     r.State,
		Status:    r.Status,
		VideoID:   r.VideoID,
		VideoLink: r.VideoLink,
		Message:   r.Message,
		Kind:      r.Kind,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	return resp
}
