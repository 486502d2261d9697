// Package api provides the HTTP handlers for the lab assistant API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/application"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/domain"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/infra"
)

const maxRequestBody = 10 * 1024 * 1024 // base64 audio payloads

type Handler struct {
	assistant *application.Assistant
	logger    *slog.Logger
}

func NewHandler(assistant *application.Assistant, logger *slog.Logger) *Handler {
	return &Handler{assistant: assistant, logger: logger}
}

// RegisterRoutes mounts the session API on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Post("/breakdown", h.breakdown)
			r.Post("/step/next", h.nextStep)
			r.Post("/step/previous", h.previousStep)
			r.Post("/chat", h.chat)
			r.Post("/replay", h.replay)
			r.Post("/transcribe", h.transcribe)
			r.Post("/record/start", h.startRecording)
			r.Post("/record/stop", h.stopRecording)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeError maps the error taxonomy onto HTTP statuses. The original input,
// when given, is echoed back so the form can be repopulated.
func (h *Handler) writeError(w http.ResponseWriter, err error, input string) {
	var (
		validationErr *application.ValidationError
		busyErr       *domain.BusyError
		upstreamErr   *infra.UpstreamError
	)

	switch {
	case errors.As(err, &validationErr):
		body := map[string]any{
			"error":       "Invalid input.",
			"fieldErrors": validationErr.Fields,
		}
		if input != "" {
			body["input"] = input
		}
		JSON(w, http.StatusBadRequest, body)
	case errors.As(err, &busyErr):
		Error(w, http.StatusConflict, busyErr.Error())
	case errors.Is(err, application.ErrUnknownSession):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrNoProcedure),
		errors.Is(err, application.ErrNothingToReplay),
		errors.Is(err, application.ErrNotRecording):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, infra.ErrNotConfigured):
		Error(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &upstreamErr):
		body := map[string]any{
			"error":          upstreamErr.Error(),
			"provider":       upstreamErr.Provider,
			"upstreamStatus": upstreamErr.Status,
		}
		if input != "" {
			body["input"] = input
		}
		JSON(w, http.StatusBadGateway, body)
	case errors.Is(err, application.ErrStaleResult):
		Error(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		body := map[string]any{"error": err.Error()}
		if input != "" {
			body["input"] = input
		}
		JSON(w, http.StatusInternalServerError, body)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	id := h.assistant.NewSession()
	JSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.assistant.Snapshot(sessionID(r))
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	JSON(w, http.StatusOK, view)
}

type breakdownRequest struct {
	Instructions string `json:"instructions"`
}

func (h *Handler) breakdown(w http.ResponseWriter, r *http.Request) {
	var req breakdownRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.assistant.Breakdown(r.Context(), sessionID(r), req.Instructions)
	if err != nil {
		h.writeError(w, err, req.Instructions)
		return
	}

	body := map[string]any{"session": result.Session}
	if result.Notice != "" {
		body["notice"] = result.Notice
	}
	JSON(w, http.StatusOK, body)
}

func (h *Handler) nextStep(w http.ResponseWriter, r *http.Request) {
	view, err := h.assistant.NextStep(sessionID(r))
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	JSON(w, http.StatusOK, view)
}

func (h *Handler) previousStep(w http.ResponseWriter, r *http.Request) {
	view, err := h.assistant.PreviousStep(sessionID(r))
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	JSON(w, http.StatusOK, view)
}

type chatRequest struct {
	Query string `json:"query"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.assistant.Chat(r.Context(), sessionID(r), req.Query)
	if err != nil {
		h.writeError(w, err, req.Query)
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"reply":   result.Reply,
		"session": result.Session,
	})
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request) {
	audio, err := h.assistant.Replay(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"audioBase64": audio})
}

type transcribeRequest struct {
	AudioBase64 string `json:"audioBase64"`
}

func (h *Handler) transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if !decode(w, r, &req) {
		return
	}

	text, err := h.assistant.Transcribe(r.Context(), sessionID(r), req.AudioBase64)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"transcribedText": text})
}

func (h *Handler) startRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.assistant.StartRecording(r.Context(), sessionID(r)); err != nil {
		h.writeError(w, err, "")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "recording"})
}

func (h *Handler) stopRecording(w http.ResponseWriter, r *http.Request) {
	text, err := h.assistant.StopRecording(r.Context(), sessionID(r))
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"transcribedText": text})
}
