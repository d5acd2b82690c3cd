package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/heimdex/clipper/internal/clip"
	"github.com/heimdex/clipper/internal/logging"
	"github.com/heimdex/clipper/internal/notify"
	"github.com/heimdex/clipper/internal/runs"
)

const (
	ModeAsync = "async"
	ModeSync  = "sync"

	rootMessage     = "POST-YOUTUBE API is online"
	statusStarted   = "Processing started"
	maxWebhookBytes = 64 << 10
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewDispatcher(cfg.Logger)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAsync
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins))

	r.Get("/", rootHandler())
	r.Get("/health", healthHandler(cfg))
	r.Post("/webhook", webhookHandler(cfg))
	r.Get("/runs", listRunsHandler(cfg))
	r.Get("/runs/{id}", getRunHandler(cfg))

	return r
}

func rootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, RootResponse{Message: rootMessage})
	}
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			Mode:     cfg.Mode,
			InFlight: cfg.Dispatcher.InFlight(),
		}

		if cfg.Probe != nil {
			caps, err := cfg.Probe.Get(r.Context())
			if err == nil && caps != nil {
				resp.Tools = make(map[string]bool, len(caps.Tools))
				for name, t := range caps.Tools {
					resp.Tools[name] = t.Available
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

// decodeWebhook returns nil when the body is absent, not JSON, or an empty
// object.
func decodeWebhook(body io.Reader) *WebhookRequest {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return nil
	}
	var req WebhookRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil
	}
	return &req
}

func webhookHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := decodeWebhook(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if req == nil {
			WriteError(w, http.StatusBadRequest, "Missing JSON body", "")
			return
		}
		req.VideoURL = strings.TrimSpace(req.VideoURL)
		if req.VideoURL == "" {
			WriteError(w, http.StatusBadRequest, "Missing video_url", "")
			return
		}
		req.CallbackURL = strings.TrimSpace(req.CallbackURL)
		if req.CallbackURL != "" {
			if err := notify.ValidateURL(req.CallbackURL); err != nil {
				WriteError(w, http.StatusBadRequest, "Invalid callback_url", "")
				return
			}
		}

		requestID, _ := r.Context().Value(RequestIDKey).(string)
		logger := logging.WithRequestID(cfg.Logger, requestID)

		runID := uuid.NewString()
		if _, err := cfg.Registry.Begin(r.Context(), runID, req.VideoURL, req.CallbackURL); err != nil {
			logger.Error("failed to record run", "error", err)
			WriteError(w, http.StatusInternalServerError, "Internal server error", "")
			return
		}
		logger.Info("webhook accepted", "run_id", runID, "mode", cfg.Mode)

		clipReq := clip.Request{
			RunID:       runID,
			VideoURL:    req.VideoURL,
			Start:       req.Start,
			Duration:    req.Duration,
			Title:       req.Title,
			Description: req.Description,
		}

		if cfg.Mode == ModeSync {
			// The run is not cancelled if the client goes away.
			result := cfg.Pipeline.Run(context.WithoutCancel(r.Context()), clipReq)
			notifyCallback(cfg, req.CallbackURL, result)
			if result.IsSuccess() {
				WriteJSON(w, http.StatusOK, WebhookResultResponse{
					Status:   result.Status,
					RunID:    runID,
					VideoID:  result.VideoID,
					VideoURL: result.VideoLink,
				})
				return
			}
			WriteJSON(w, http.StatusInternalServerError, WebhookResultResponse{
				Status:  result.Status,
				RunID:   runID,
				Message: result.Message,
			})
			return
		}

		callbackURL := req.CallbackURL
		cfg.Dispatcher.Go("run "+runID, func(ctx context.Context) {
			result := cfg.Pipeline.Run(ctx, clipReq)
			if callbackURL != "" && cfg.Notifier != nil {
				cfg.Notifier.Deliver(ctx, callbackURL, payloadFor(result))
			}
		})

		WriteJSON(w, http.StatusAccepted, WebhookAcceptedResponse{
			Status:    statusStarted,
			RunID:     runID,
			StatusURL: "/runs/" + runID,
		})
	}
}

// notifyCallback delivers a sync run's result in the background so the
// response is not held up by the receiver.
func notifyCallback(cfg ServerConfig, callbackURL string, result clip.Result) {
	if callbackURL == "" || cfg.Notifier == nil {
		return
	}
	cfg.Dispatcher.Go("callback "+result.RunID, func(ctx context.Context) {
		cfg.Notifier.Deliver(ctx, callbackURL, payloadFor(result))
	})
}

func payloadFor(result clip.Result) notify.Payload {
	return notify.Payload{
		RunID:      result.RunID,
		Status:     result.Status,
		VideoID:    result.VideoID,
		VideoLink:  result.VideoLink,
		Message:    result.Message,
		FinishedAt: time.Now().UTC(),
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Registry.List(r.Context(), runs.DefaultListLimit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		resp := RunsResponse{Runs: make([]RunResponse, len(list))}
		for i, run := range list {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, err := cfg.Registry.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get run", "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "Run not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(run))
	}
}
