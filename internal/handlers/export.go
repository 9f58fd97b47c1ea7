package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"go-pdfcompose/internal/utils"
)

// ExportPDF godoc
// @Summary      Export the composed PDF
// @Description  Composes every page in order with its rotation and overlays and returns a download URL
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        sessionID  path  string  true   "Session ID"
// @Param        request    body  object  false  "{ filename?: string }"
// @Success      200  {object}  map[string]string  "{ downloadUrl: string, filename: string }"
// @Failure      400  {string}  string  "No pages to export"
// @Failure      404  {string}  string  "Session not found"
// @Failure      409  {string}  string  "Export already in progress"
// @Failure      422  {string}  string  "A source document could not be loaded"
// @Router       /api/sessions/{sessionID}/actions/export [post]
func (h *APIHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Filename string `json:"filename"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := decodeOptional(r.Body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(s.Workspace.Pages()) == 0 {
		http.Error(w, "No pages to export", http.StatusBadRequest)
		return
	}

	data, err := s.Export(r.Context(), h.Composer)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := utils.OutputFilename(req.Filename)
	path := h.outputPath(s.ID, filename)
	if err := writeFileAtomic(path, data); err != nil {
		log.Printf("Error writing export: %v", err)
		http.Error(w, "Failed to save exported PDF", http.StatusInternalServerError)
		return
	}
	s.SetOutput(path)

	downloadURL := fmt.Sprintf("/api/sessions/%s/files/%s", s.ID, url.PathEscape(filename))
	writeJSON(w, http.StatusOK, map[string]string{"downloadUrl": downloadURL, "filename": filename})
}

// decodeOptional decodes a JSON body that may be empty.
func decodeOptional(body io.Reader, v any) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return err
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
