package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/infra/logging"
	"hotorbot/internal/usecase"
)

type turnRequest struct {
	ProfileID    string `json:"profileId"`
	Text         string `json:"text,omitempty"`
	AudioURL     string `json:"audioUrl,omitempty"`
	Interruption bool   `json:"interruption,omitempty"`
}

// handleInterviewTurn streams one interview exchange back to the client:
// narration text as it arrives, then framed audio. Once the stream has
// started, errors can only terminate it; the status code is already gone.
func (s *Server) handleInterviewTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ProfileID == "" {
		writeError(w, http.StatusBadRequest, "profileId is required")
		return
	}

	ctx := logging.WithProfileID(r.Context(), req.ProfileID)
	turn := usecase.TurnRequest{
		ProfileID:    req.ProfileID,
		Text:         req.Text,
		Interruption: req.Interruption,
	}
	if req.AudioURL != "" {
		body, err := s.fetchAudio(ctx, req.AudioURL)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not fetch audio")
			return
		}
		defer body.Close()
		turn.Audio = body
		turn.AudioFilename = "turn-audio"
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")

	out := &sniffWriter{inner: w}
	result, err := s.interview.Turn(ctx, turn, out)
	if err != nil {
		if out.wrote {
			// mid-stream failure, nothing to do but cut the stream
			logging.With(ctx, s.log).Error().Err(err).Msg("interview turn failed mid-stream")
			return
		}
		s.writeTurnError(w, r.WithContext(ctx), err)
		return
	}
	logging.With(ctx, s.log).Info().
		Int("progress", result.Progress).
		Bool("finished", result.SessionFinished).
		Bool("waited", result.Waited).
		Bool("cancelled", result.Cancelled).
		Msg("interview turn done")
}

func (s *Server) writeTurnError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrTurnInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrEmptyTranscription):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("interview turn failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) fetchAudio(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.audio.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch audio: http %d", resp.StatusCode)
	}
	return resp.Body, nil
}

type enqueueRequest struct {
	Name              string          `json:"name"`
	Data              json.RawMessage `json:"data,omitempty"`
	Priority          int             `json:"priority,omitempty"`
	SingletonKey      string          `json:"singletonKey,omitempty"`
	StartAfter        *time.Time      `json:"startAfter,omitempty"`
	RetryLimit        int             `json:"retryLimit,omitempty"`
	RetryDelaySeconds int             `json:"retryDelaySeconds,omitempty"`
	RetryBackoff      bool            `json:"retryBackoff,omitempty"`
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	opts := &model.JobOptions{
		Priority:     req.Priority,
		SingletonKey: req.SingletonKey,
		RetryLimit:   req.RetryLimit,
		RetryDelay:   time.Duration(req.RetryDelaySeconds) * time.Second,
		RetryBackoff: req.RetryBackoff,
	}
	if req.StartAfter != nil {
		opts.StartAfter = *req.StartAfter
	}

	var payload any
	if len(req.Data) > 0 {
		payload = req.Data
	}
	job, inserted, err := s.queue.Enqueue(r.Context(), req.Name, payload, opts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.With(r.Context(), s.log).Error().Err(err).Msg("enqueue failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":       job.ID,
		"inserted": inserted,
	})
}

// jobView is the persisted row shape admin tooling reads.
type jobView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	State        string     `json:"state"`
	Data         any        `json:"data"`
	Priority     int        `json:"priority"`
	RetryCount   int        `json:"retryCount"`
	RetryLimit   int        `json:"retryLimit"`
	RetryDelayMs int64      `json:"retryDelayMs"`
	RetryBackoff bool       `json:"retryBackoff"`
	StartAfter   time.Time  `json:"startAfter"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	SingletonKey string     `json:"singletonKey,omitempty"`
	ExpireInMs   int64      `json:"expireInMs"`
	KeepUntil    time.Time  `json:"keepUntil"`
	LastError    string     `json:"lastError,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, err := s.jobs.FindByID(r.Context(), nil, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		logging.With(r.Context(), s.log).Error().Err(err).Str("job_id", id).Msg("job lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, jobView{
		ID:           job.ID,
		Name:         job.Name,
		State:        string(job.State),
		Data:         json.RawMessage(job.Data),
		Priority:     job.Priority,
		RetryCount:   job.RetryCount,
		RetryLimit:   job.RetryLimit,
		RetryDelayMs: job.RetryDelay.Milliseconds(),
		RetryBackoff: job.RetryBackoff,
		StartAfter:   job.StartAfter,
		StartedAt:    job.StartedAt,
		SingletonKey: job.SingletonKey,
		ExpireInMs:   job.ExpireIn.Milliseconds(),
		KeepUntil:    job.KeepUntil,
		LastError:    job.LastError,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "dependency unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sniffWriter remembers whether the stream has started so error handling
// knows if a status code can still be sent.
type sniffWriter struct {
	inner http.ResponseWriter
	wrote bool
}

func (s *sniffWriter) Write(p []byte) (int, error) {
	s.wrote = true
	return s.inner.Write(p)
}

func (s *sniffWriter) Flush() {
	if f, ok := s.inner.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
