package handlers

import (
	"net/http"

	"go-pdfcompose/internal/workspace"

	"github.com/go-chi/chi/v5"
)

// AddOverlay godoc
// @Summary      Place an overlay
// @Description  Places an image or text overlay on a rendered page at canvas pixel coordinates
// @Tags         overlays
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Param        pageID     path  string  true  "Page ID"
// @Param        overlay    body  object  true  "{ type: image|text, x: number, y: number, imageId?: string, text?: string }"
// @Success      201  {object}  workspace.Overlay
// @Failure      400  {string}  string  "Bad request"
// @Failure      404  {string}  string  "Session, page or image not found"
// @Failure      409  {string}  string  "Page has not been rendered yet"
// @Router       /api/sessions/{sessionID}/pages/{pageID}/overlays [post]
func (h *APIHandler) AddOverlay(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Type    workspace.OverlayType `json:"type"`
		X       float64               `json:"x"`
		Y       float64               `json:"y"`
		ImageID string                `json:"imageId"`
		Text    string                `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ov, err := s.Workspace.AddOverlay(chi.URLParam(r, "pageID"), workspace.OverlaySpec{
		Type:    req.Type,
		X:       req.X,
		Y:       req.Y,
		ImageID: req.ImageID,
		Text:    req.Text,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ov)
}

// MoveOverlay godoc
// @Summary      Move an overlay
// @Tags         overlays
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Param        overlayID  path  string  true  "Overlay ID"
// @Param        position   body  object  true  "{ x: number, y: number }"
// @Success      200  {object}  workspace.Overlay
// @Failure      404  {string}  string  "Session or overlay not found"
// @Router       /api/sessions/{sessionID}/overlays/{overlayID}/position [put]
func (h *APIHandler) MoveOverlay(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ov, err := s.Workspace.MoveOverlay(chi.URLParam(r, "overlayID"), req.X, req.Y)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// ResizeOverlay godoc
// @Summary      Resize an overlay
// @Description  Sets an overlay's width in canvas pixels; text overlays scale their font size along
// @Tags         overlays
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Param        overlayID  path  string  true  "Overlay ID"
// @Param        size       body  object  true  "{ width: number }"
// @Success      200  {object}  workspace.Overlay
// @Failure      404  {string}  string  "Session or overlay not found"
// @Router       /api/sessions/{sessionID}/overlays/{overlayID}/width [put]
func (h *APIHandler) ResizeOverlay(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Width float64 `json:"width"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ov, err := s.Workspace.ResizeOverlay(chi.URLParam(r, "overlayID"), req.Width)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// SetOverlayText godoc
// @Summary      Edit a text overlay
// @Tags         overlays
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Param        overlayID  path  string  true  "Overlay ID"
// @Param        text       body  object  true  "{ text: string }"
// @Success      200  {object}  workspace.Overlay
// @Failure      400  {string}  string  "Not a text overlay"
// @Failure      404  {string}  string  "Session or overlay not found"
// @Router       /api/sessions/{sessionID}/overlays/{overlayID}/text [put]
func (h *APIHandler) SetOverlayText(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ov, err := s.Workspace.SetText(chi.URLParam(r, "overlayID"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// DeleteOverlay godoc
// @Summary      Delete an overlay
// @Tags         overlays
// @Param        sessionID  path  string  true  "Session ID"
// @Param        overlayID  path  string  true  "Overlay ID"
// @Success      204
// @Failure      404  {string}  string  "Session or overlay not found"
// @Router       /api/sessions/{sessionID}/overlays/{overlayID} [delete]
func (h *APIHandler) DeleteOverlay(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Workspace.RemoveOverlay(chi.URLParam(r, "overlayID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
