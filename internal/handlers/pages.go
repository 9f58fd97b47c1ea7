package handlers

import (
	"errors"
	"image/png"
	"log"
	"net/http"
	"strconv"

	"go-pdfcompose/internal/geometry"
	"go-pdfcompose/internal/render"
	"go-pdfcompose/internal/workspace"

	"github.com/go-chi/chi/v5"
)

// ListPages godoc
// @Summary      List pages
// @Description  Returns the documents, the ordered page list with every page's overlays, and the signature images
// @Tags         pages
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Success      200  {object}  workspace.Snapshot
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID}/pages [get]
func (h *APIHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.Workspace.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// UpdateOrder godoc
// @Summary      Move a page
// @Description  Moves the page at position from to position to
// @Tags         pages
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Param        order      body  object  true  "{ from: int, to: int }"
// @Success      200  {array}   workspace.Page
// @Failure      400  {string}  string  "Bad request"
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID}/order [put]
func (h *APIHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.From == nil || req.To == nil {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if err := s.Workspace.MovePage(*req.From, *req.To); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Workspace.Pages())
}

type pageResponse struct {
	Page     workspace.Page      `json:"page"`
	Overlays []workspace.Overlay `json:"overlays"`
}

func (h *APIHandler) writePage(w http.ResponseWriter, ws *workspace.Workspace, p workspace.Page) {
	ovs, err := ws.Overlays(p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{Page: p, Overlays: ovs})
}

// AddPage godoc
// @Summary      Add a page
// @Description  Appends page index of an uploaded document to the page list again
// @Tags         pages
// @Accept       json
// @Produce      json
// @Param        sessionID   path  string  true  "Session ID"
// @Param        documentID  path  string  true  "Document ID"
// @Param        request     body  object  true  "{ index: int }"
// @Success      201  {object}  workspace.Page
// @Failure      400  {string}  string  "Page index out of range"
// @Failure      404  {string}  string  "Session or document not found"
// @Router       /api/sessions/{sessionID}/documents/{documentID}/pages [post]
func (h *APIHandler) AddPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Index *int `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	p, err := s.Workspace.CreatePage(chi.URLParam(r, "documentID"), *req.Index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// RotatePage godoc
// @Summary      Rotate a page
// @Description  Rotates a page by ±90 or 180 degrees; its overlays move with it. A rendered page is rendered again for the new rotation.
// @Tags         pages
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Param        pageID     path  string  true  "Page ID"
// @Param        rotation   body  object  true  "{ delta: int }"
// @Success      200  {object}  pageResponse
// @Failure      400  {string}  string  "Invalid rotation"
// @Failure      404  {string}  string  "Session or page not found"
// @Router       /api/sessions/{sessionID}/pages/{pageID}/rotate [post]
func (h *APIHandler) RotatePage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.RotatePage(r.Context(), chi.URLParam(r, "pageID"), req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePage(w, s.Workspace, p)
}

// DeletePage godoc
// @Summary      Delete a page
// @Description  Removes a page and its overlays from the page list
// @Tags         pages
// @Param        sessionID  path  string  true  "Session ID"
// @Param        pageID     path  string  true  "Page ID"
// @Success      204
// @Failure      404  {string}  string  "Session or page not found"
// @Router       /api/sessions/{sessionID}/pages/{pageID} [delete]
func (h *APIHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.RemovePage(chi.URLParam(r, "pageID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renderResponse struct {
	Page     workspace.Page      `json:"page"`
	Overlays []workspace.Overlay `json:"overlays"`
	Viewport geometry.Viewport   `json:"viewport"`
	Cached   bool                `json:"cached"`
}

// RenderPage godoc
// @Summary      Render a page
// @Description  Renders a page fitted to the available width and makes the render the page's canvas. Overlay coordinates are pixels of this canvas.
// @Tags         pages
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Param        pageID     path  string  true  "Page ID"
// @Param        request    body  object  true  "{ width: number }"
// @Success      200  {object}  renderResponse
// @Failure      404  {string}  string  "Session or page not found"
// @Failure      409  {string}  string  "Page changed while rendering"
// @Router       /api/sessions/{sessionID}/pages/{pageID}/render [post]
func (h *APIHandler) RenderPage(w http.ResponseWriter, r *http.Request) {
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
	res, p, err := s.Render(r.Context(), chi.URLParam(r, "pageID"), req.Width)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	ovs, err := s.Workspace.Overlays(p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{Page: p, Overlays: ovs, Viewport: res.Viewport, Cached: res.Cached})
}

type pageError struct {
	PageID string `json:"pageId,omitempty"`
	Error  string `json:"error"`
}

type renderAllResponse struct {
	workspace.Snapshot
	Errors []pageError `json:"errors"`
}

// RenderPages godoc
// @Summary      Render all pages
// @Description  Renders every page in order, fitted to the available width. Pages that fail are listed in errors and the others still render.
// @Tags         pages
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Param        request    body  object  true  "{ width: number }"
// @Success      200  {object}  renderAllResponse
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID}/actions/render [post]
func (h *APIHandler) RenderPages(w http.ResponseWriter, r *http.Request) {
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
	failed, err := s.RenderAll(r.Context(), req.Width)
	if err != nil {
		return
	}
	res := renderAllResponse{Errors: []pageError{}}
	for _, err := range failed {
		if errors.Is(err, workspace.ErrInvariant) {
			writeError(w, err)
			return
		}
		log.Printf("Error rendering page: %v", err)
		pe := pageError{Error: err.Error()}
		var renderErr *render.RenderError
		if errors.As(err, &renderErr) {
			pe.PageID = renderErr.PageID
		}
		res.Errors = append(res.Errors, pe)
	}
	res.Snapshot, err = s.Workspace.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PreviewPage godoc
// @Summary      Page preview
// @Description  Returns the current render of a page as PNG, optionally scaled down to width pixels
// @Tags         pages
// @Produce      image/png
// @Param        sessionID  path   string  true   "Session ID"
// @Param        pageID     path   string  true   "Page ID"
// @Param        width      query  int     false  "Thumbnail width"
// @Success      200  {file}  file  "PNG image"
// @Failure      404  {string}  string  "Session, page or render not found"
// @Router       /api/sessions/{sessionID}/pages/{pageID}/preview [get]
func (h *APIHandler) PreviewPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, ok := s.Preview(chi.URLParam(r, "pageID"))
	if !ok || res.Raster == nil {
		http.Error(w, "Page has not been rendered", http.StatusNotFound)
		return
	}
	img := res.Raster
	if v := r.URL.Query().Get("width"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil || width <= 0 {
			http.Error(w, "Invalid width", http.StatusBadRequest)
			return
		}
		img = render.Thumbnail(img, width)
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		log.Printf("Error encoding preview: %v", err)
	}
}
