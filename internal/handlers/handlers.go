// Package handlers provides HTTP handlers for the PDF composition API.
//
// This package contains the endpoints for session management, source and
// signature uploads, page list editing, page rendering, overlay editing,
// export and download.
//
// Example usage:
//
//	h := handlers.NewAPIHandler(sessionManager, pdf.NewLibrary(), cfg)
//	r := chi.NewRouter()
//	r.Post("/api/sessions/", h.CreateSession)
//
// All handlers are designed to be used with the chi router.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"go-pdfcompose/internal/compose"
	"go-pdfcompose/internal/config"
	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
	"go-pdfcompose/internal/render"
	"go-pdfcompose/internal/session"
	"go-pdfcompose/internal/workspace"

	"github.com/go-chi/chi/v5"
)

type APIHandler struct {
	SessionManager *session.SessionManager
	Library        doclib.Library
	Composer       *compose.Composer
	UploadDir      string
	OutputDir      string
	MaxUploadBytes int64
	MaxImageBytes  int64
}

func NewAPIHandler(sm *session.SessionManager, lib doclib.Library, cfg config.Config) *APIHandler {
	return &APIHandler{
		SessionManager: sm,
		Library:        lib,
		Composer:       compose.New(lib),
		UploadDir:      cfg.UploadDir,
		OutputDir:      cfg.OutputDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxImageBytes:  cfg.MaxImageBytes,
	}
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, exists := h.SessionManager.GetSession(chi.URLParam(r, "sessionID"))
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var loadErr *compose.DocumentLoadError
	var renderErr *render.RenderError
	switch {
	case errors.Is(err, workspace.ErrInvariant):
		log.Printf("State invariant violation: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	case errors.Is(err, workspace.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, workspace.ErrOutOfRange),
		errors.Is(err, workspace.ErrWrongType),
		errors.Is(err, geometry.ErrInvalidDelta):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, workspace.ErrNoCanvas),
		errors.Is(err, workspace.ErrStaleRender),
		errors.Is(err, session.ErrExportInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &loadErr):
		log.Printf("Error loading source document: %v", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &renderErr):
		log.Printf("Error rendering page: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	default:
		log.Printf("Unexpected error: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// CreateSession godoc
// @Summary      Create a new session
// @Description  Creates a new composition session and returns a session ID
// @Tags         sessions
// @Produce      json
// @Success      200  {object}  map[string]string  "{ sessionId: string }"
// @Router       /api/sessions/ [post]
func (h *APIHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.SessionManager.CreateSession()
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": s.ID})
}

// DeleteSession godoc
// @Summary      Delete a session
// @Description  Deletes a session with its uploads and exported file
// @Tags         sessions
// @Param        sessionID  path  string  true  "Session ID"
// @Success      204
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID} [delete]
func (h *APIHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.SessionManager.DeleteSession(chi.URLParam(r, "sessionID")) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string  "{ status: ok }"
// @Router       /api/health [get]
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
