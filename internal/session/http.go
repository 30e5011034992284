package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/timed-quiz/internal/logging"
	"github.com/gokatarajesh/timed-quiz/internal/quiz"
	"github.com/gokatarajesh/timed-quiz/internal/validate"
	httperrors "github.com/gokatarajesh/timed-quiz/pkg/http/errors"
)

// StartRequest is the body of POST /v1/sessions.
type StartRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AnswerRequest is the body of POST /v1/sessions/{id}/answer.
type AnswerRequest struct {
	Option string `json:"option" validate:"required"`
}

// NavigateRequest is the body of POST /v1/sessions/{id}/navigate.
type NavigateRequest struct {
	Index *int `json:"index" validate:"required"`
}

// HTTPHandlers provides REST endpoints for quiz sessions.
type HTTPHandlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for session endpoints.
func NewHTTPHandlers(service *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "session_http").Logger(),
	}
}

// Register mounts the session routes. auth guards every per-session route.
func (h *HTTPHandlers) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	guard := func(fn http.HandlerFunc) http.Handler { return auth(fn) }

	mux.HandleFunc("POST /v1/sessions", h.Start)
	mux.Handle("GET /v1/sessions/{id}", guard(h.Get))
	mux.Handle("POST /v1/sessions/{id}/retry", guard(h.Retry))
	mux.Handle("POST /v1/sessions/{id}/answer", guard(h.SelectAnswer))
	mux.Handle("POST /v1/sessions/{id}/navigate", guard(h.GoToQuestion))
	mux.Handle("POST /v1/sessions/{id}/next", guard(h.Next))
	mux.Handle("POST /v1/sessions/{id}/previous", guard(h.Previous))
	mux.Handle("POST /v1/sessions/{id}/submit", guard(h.Submit))
	mux.Handle("GET /v1/sessions/{id}/report", guard(h.Report))
	mux.Handle("DELETE /v1/sessions/{id}/report", guard(h.ClearReport))
	mux.Handle("DELETE /v1/sessions/{id}", guard(h.Close))
}

// Start handles POST /v1/sessions
func (h *HTTPHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if fields := validate.Struct(req); len(fields) > 0 {
		httperrors.RespondValidationErrors(w, fields)
		return
	}

	res, err := h.service.Start(r.Context(), req.Email)
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("failed to start session")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeSessionStartFail, "Could not start session")
		return
	}

	h.respondJSON(w, http.StatusAccepted, res)
}

// Get handles GET /v1/sessions/{id}
func (h *HTTPHandlers) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// Retry handles POST /v1/sessions/{id}/retry
func (h *HTTPHandlers) Retry(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(run *Runner) (View, error) { return run.Retry(r.Context()) })
}

// SelectAnswer handles POST /v1/sessions/{id}/answer
func (h *HTTPHandlers) SelectAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withRunner(w, r, func(run *Runner) (View, error) { return run.SelectAnswer(r.Context(), req.Option) })
}

// GoToQuestion handles POST /v1/sessions/{id}/navigate
func (h *HTTPHandlers) GoToQuestion(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withRunner(w, r, func(run *Runner) (View, error) { return run.GoToQuestion(r.Context(), *req.Index) })
}

// Next handles POST /v1/sessions/{id}/next
func (h *HTTPHandlers) Next(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(run *Runner) (View, error) { return run.Next(r.Context()) })
}

// Previous handles POST /v1/sessions/{id}/previous
func (h *HTTPHandlers) Previous(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(run *Runner) (View, error) { return run.Previous(r.Context()) })
}

// Submit handles POST /v1/sessions/{id}/submit
func (h *HTTPHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	rep, err := run.Submit(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rep)
}

// Report handles GET /v1/sessions/{id}/report. Without a stored result the
// client is sent back to the start page.
func (h *HTTPHandlers) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if rep == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.respondJSON(w, http.StatusOK, rep)
}

// ClearReport handles DELETE /v1/sessions/{id}/report
func (h *HTTPHandlers) ClearReport(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearReport(r.Context(), r.PathValue("id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Close handles DELETE /v1/sessions/{id}. The stored result is kept.
func (h *HTTPHandlers) Close(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Get(r.PathValue("id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.service.Close(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandlers) withRunner(w http.ResponseWriter, r *http.Request, fn func(*Runner) (View, error)) {
	run, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	view, err := fn(run)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *HTTPHandlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return false
	}
	if fields := validate.Struct(dst); len(fields) > 0 {
		httperrors.RespondValidationErrors(w, fields)
		return false
	}
	return true
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorStatus(err)
	switch status {
	case http.StatusNotFound:
		httperrors.RespondNotFound(w, code, message)
	case http.StatusConflict:
		httperrors.RespondConflict(w, code, message)
	case http.StatusInternalServerError:
		logging.FromContext(r.Context()).Error().Err(err).Str("session_id", r.PathValue("id")).Msg("session request failed")
		httperrors.RespondInternalError(w, message)
	default:
		httperrors.RespondError(w, status, code, message)
	}
}

// errorStatus maps service errors onto HTTP responses.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, httperrors.ErrCodeSessionNotFound, "Session not found"
	case errors.Is(err, ErrNotReady):
		return http.StatusConflict, httperrors.ErrCodeSessionNotReady, "Questions are not loaded yet"
	case errors.Is(err, ErrNotFailed):
		return http.StatusConflict, httperrors.ErrCodeConflict, "Session has no failed load to retry"
	case errors.Is(err, quiz.ErrInvalidOption):
		return http.StatusUnprocessableEntity, httperrors.ErrCodeInvalidOption, "Option is not offered for the current question"
	case errors.Is(err, ErrClosed):
		return http.StatusGone, httperrors.ErrCodeSessionClosed, "Session is closed"
	default:
		return http.StatusInternalServerError, httperrors.ErrCodeInternalError, "Internal server error"
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("encode response")
	}
}
