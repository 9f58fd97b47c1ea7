package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/session"
	"go-pdfcompose/internal/utils"
	"go-pdfcompose/internal/workspace"

	"github.com/go-chi/chi/v5"
)

type fileError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type uploadResult struct {
	Documents []workspace.Document `json:"documents"`
	Pages     []workspace.Page     `json:"pages"`
	Errors    []fileError          `json:"errors"`
}

// UploadFiles godoc
// @Summary      Upload PDF files
// @Description  Uploads one or more PDF files; every page of every file is appended to the page list. Files that fail are reported individually.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        sessionID  path      string  true  "Session ID"
// @Param        pdf        formData  file    true  "PDF file (repeatable)"
// @Success      200  {object}  uploadResult
// @Failure      400  {object}  uploadResult  "No file could be added"
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID}/files [post]
func (h *APIHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File["pdf"]
	if len(headers) == 0 {
		http.Error(w, "Error retrieving file", http.StatusBadRequest)
		return
	}

	res := uploadResult{Documents: []workspace.Document{}, Pages: []workspace.Page{}, Errors: []fileError{}}
	for _, fh := range headers {
		doc, pages, err := h.addPDF(s, fh)
		if err != nil {
			log.Printf("Rejected upload %q: %v", fh.Filename, err)
			res.Errors = append(res.Errors, fileError{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		res.Documents = append(res.Documents, doc)
		res.Pages = append(res.Pages, pages...)
	}

	status := http.StatusOK
	if len(res.Documents) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

var (
	errNotPDF     = errors.New("only PDF files are allowed")
	errInvalidPDF = errors.New("uploaded file is not a valid PDF")
)

func (h *APIHandler) addPDF(s *session.Session, fh *multipart.FileHeader) (workspace.Document, []workspace.Page, error) {
	if strings.ToLower(filepath.Ext(fh.Filename)) != ".pdf" {
		return workspace.Document{}, nil, errNotPDF
	}
	data, err := readUpload(fh)
	if err != nil {
		return workspace.Document{}, nil, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return workspace.Document{}, nil, errInvalidPDF
	}
	src, err := h.Library.Load(data)
	if err != nil {
		if errors.Is(err, doclib.ErrParse) {
			return workspace.Document{}, nil, errInvalidPDF
		}
		return workspace.Document{}, nil, err
	}
	if src.PageCount() == 0 {
		return workspace.Document{}, nil, errors.New("PDF has no pages")
	}

	doc := workspace.Document{
		ID:        utils.GenerateUUID(),
		Name:      utils.SanitizeFilename(fh.Filename),
		PageCount: src.PageCount(),
	}
	path := filepath.Join(h.UploadDir, fmt.Sprintf("%s-%s", doc.ID, doc.Name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return workspace.Document{}, nil, fmt.Errorf("failed to save file: %w", err)
	}
	s.AddFile(doc.ID, path)

	pages, err := s.Workspace.AddDocument(doc)
	if err != nil {
		s.DiscardFile(doc.ID)
		return workspace.Document{}, nil, err
	}
	return doc, pages, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// RemoveFile godoc
// @Summary      Remove a source PDF
// @Description  Removes an uploaded PDF together with its pages and their overlays
// @Tags         files
// @Param        sessionID   path  string  true  "Session ID"
// @Param        documentID  path  string  true  "Document ID"
// @Success      204
// @Failure      404  {string}  string  "Session or document not found"
// @Router       /api/sessions/{sessionID}/documents/{documentID} [delete]
func (h *APIHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.RemoveDocument(chi.URLParam(r, "documentID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadSignature godoc
// @Summary      Upload a signature image
// @Description  Uploads a signature image (PNG/JPEG) that image overlays can place
// @Tags         signature
// @Accept       multipart/form-data
// @Produce      json
// @Param        sessionID  path      string  true  "Session ID"
// @Param        signature  formData  file    true  "Signature image file (PNG/JPEG)"
// @Success      200  {object}  map[string]interface{}  "{ imageId: string, name: string, size: int }"
// @Failure      400  {string}  string  "Bad request - invalid image format"
// @Failure      404  {string}  string  "Session not found"
// @Router       /api/sessions/{sessionID}/signature [post]
func (h *APIHandler) UploadSignature(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxImageBytes)
	if err := r.ParseMultipartForm(h.MaxImageBytes); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("signature")
	if err != nil {
		http.Error(w, "Error retrieving file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(handler.Filename))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		http.Error(w, "Only PNG and JPEG images are allowed", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}
	contentType := http.DetectContentType(data)

	validExtensions := map[string][]string{
		"image/jpeg": {".jpg", ".jpeg"},
		"image/png":  {".png"},
	}
	extensions, allowed := validExtensions[contentType]
	if !allowed {
		http.Error(w, "Invalid image format. Only PNG and JPEG images are allowed", http.StatusBadRequest)
		return
	}
	if !slices.Contains(extensions, ext) {
		http.Error(w, "File extension doesn't match content type", http.StatusBadRequest)
		return
	}

	img := s.Workspace.AddImage(workspace.Image{
		Name:        utils.SanitizeFilename(handler.Filename),
		ContentType: contentType,
		Data:        data,
	})
	writeJSON(w, http.StatusOK, map[string]any{"imageId": img.ID, "name": img.Name, "size": len(data)})
}

// RemoveSignature godoc
// @Summary      Remove a signature image
// @Description  Removes a signature image and every overlay that places it
// @Tags         signature
// @Param        sessionID  path  string  true  "Session ID"
// @Param        imageID    path  string  true  "Image ID"
// @Success      204
// @Failure      404  {string}  string  "Session or image not found"
// @Router       /api/sessions/{sessionID}/signature/{imageID} [delete]
func (h *APIHandler) RemoveSignature(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Workspace.RemoveImage(chi.URLParam(r, "imageID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadFile godoc
// @Summary      Download the exported PDF
// @Description  Downloads the last exported PDF of the session
// @Tags         files
// @Produce      application/pdf
// @Param        sessionID  path      string  true  "Session ID"
// @Param        filename   path      string  true  "Exported PDF filename"
// @Success      200  {file}  file  "PDF file download"
// @Failure      403  {string}  string  "Unauthorized access to file"
// @Failure      404  {string}  string  "Session or file not found"
// @Router       /api/sessions/{sessionID}/files/{filename} [get]
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	filename := chi.URLParam(r, "filename")
	path := h.outputPath(s.ID, filename)
	if s.Output() != path {
		http.Error(w, "Unauthorized access to file", http.StatusForbidden)
		return
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, path)
}

func (h *APIHandler) outputPath(sessionID, filename string) string {
	return filepath.Join(h.OutputDir, fmt.Sprintf("%s-%s", sessionID, filename))
}
