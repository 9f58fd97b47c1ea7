// Package server sets up the HTTP server and registers API routes for go-pdfcompose.
//
// RegisterRoutes returns an http.Handler with all API endpoints for sessions,
// uploads, page and overlay editing, rendering and export.
//
// Expected outputs:
// - All API endpoints are available under /api/sessions
// - CORS and logging middleware are enabled
//
// See README.md for endpoint details and integration examples.
package server

import (
	"net"
	"net/http"

	_ "go-pdfcompose/docs"
	"go-pdfcompose/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Only allow requests from localhost to /swagger/*
func localhostOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		if host != "127.0.0.1" && host != "::1" && host != "localhost" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigins() []string {
	if s.cfg.FrontendURL != "" {
		return []string{s.cfg.FrontendURL}
	}
	return []string{"https://*", "http://*"}
}

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.With(localhostOnly).Get("/swagger/*", httpSwagger.WrapHandler)
	h := handlers.NewAPIHandler(s.SessionManager, s.library, s.cfg)
	r.Get("/api/health", h.Health)
	r.Route("/api/sessions", func(api chi.Router) {
		api.Post("/", h.CreateSession)
		api.Delete("/{sessionID}", h.DeleteSession)

		api.Post("/{sessionID}/files", h.UploadFiles)
		api.Delete("/{sessionID}/documents/{documentID}", h.RemoveFile)
		api.Get("/{sessionID}/files/{filename}", h.DownloadFile)

		api.Post("/{sessionID}/signature", h.UploadSignature)
		api.Delete("/{sessionID}/signature/{imageID}", h.RemoveSignature)

		api.Get("/{sessionID}/pages", h.ListPages)
		api.Post("/{sessionID}/documents/{documentID}/pages", h.AddPage)
		api.Put("/{sessionID}/order", h.UpdateOrder)
		api.Post("/{sessionID}/pages/{pageID}/rotate", h.RotatePage)
		api.Delete("/{sessionID}/pages/{pageID}", h.DeletePage)
		api.Post("/{sessionID}/pages/{pageID}/render", h.RenderPage)
		api.Get("/{sessionID}/pages/{pageID}/preview", h.PreviewPage)

		api.Post("/{sessionID}/pages/{pageID}/overlays", h.AddOverlay)
		api.Put("/{sessionID}/overlays/{overlayID}/position", h.MoveOverlay)
		api.Put("/{sessionID}/overlays/{overlayID}/width", h.ResizeOverlay)
		api.Put("/{sessionID}/overlays/{overlayID}/text", h.SetOverlayText)
		api.Delete("/{sessionID}/overlays/{overlayID}", h.DeleteOverlay)

		api.Post("/{sessionID}/actions/render", h.RenderPages)
		api.Post("/{sessionID}/actions/export", h.ExportPDF)
	})

	return r
}
