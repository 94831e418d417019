package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/observability"
	"github.com/spherical/glance/internal/session"
	"github.com/spherical/glance/internal/storage"
)

// Handler serves session observations and commands.
type Handler struct {
	session Session
	archive domain.Archive
	logger  *observability.Logger
}

// NewHandler creates a handler.
func NewHandler(s Session, archive domain.Archive, logger *observability.Logger) *Handler {
	return &Handler{session: s, archive: archive, logger: logger.WithComponent("api")}
}

// TextResponse lists the text of the last cycle per block.
type TextResponse struct {
	Recognized []string `json:"recognized"`
	Translated []string `json:"translated,omitempty"`
}

// Snapshot returns the controller state and the page on screen.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// Preview returns the last captured image.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	img := h.session.Preview()
	if len(img) == 0 {
		writeError(w, http.StatusNotFound, "no capture available", "")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(img))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}

// Text returns the recognized and translated text.
func (h *Handler) Text(w http.ResponseWriter, r *http.Request) {
	recognized, translated := h.session.Texts()
	writeJSON(w, http.StatusOK, TextResponse{Recognized: recognized, Translated: translated})
}

// Capture returns an archived capture by id.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "archive disabled", "")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid capture id", err.Error())
		return
	}

	rec, err := h.archive.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "capture not found", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("capture_id", id).Msg("archive lookup failed")
		writeError(w, http.StatusInternalServerError, "archive lookup failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// StartCapture begins a capture cycle, the same as a triple tap.
func (h *Handler) StartCapture(w http.ResponseWriter, r *http.Request) {
	err := h.session.Start(r.Context())
	if errors.Is(err, session.ErrBusy) {
		writeError(w, http.StatusConflict, "capture already in progress", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start capture", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, h.session.Snapshot())
}

// Cancel aborts the cycle and blanks the display.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Cancel(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("cancel could not blank display")
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}
