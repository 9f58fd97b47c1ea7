// Package server provides the HTTP server setup for go-pdfcompose.
//
// NewServer creates and configures the HTTP server, session manager, and file directories.
//
// Expected outputs:
// - Server listens on the configured port (default 8080)
// - Sessions unused for longer than SESSION_TTL are removed with their files
//
// Usage:
//
//	cfg, _ := config.Load()
//	server := server.NewServer(ctx, cfg)
//	server.ListenAndServe()
//
// See internal/server/routes.go for route registration.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"go-pdfcompose/internal/config"
	"go-pdfcompose/internal/pdf"
	"go-pdfcompose/internal/render"
	"go-pdfcompose/internal/session"
	"go-pdfcompose/internal/workspace"
)

type Server struct {
	cfg            config.Config
	library        *pdf.Library
	SessionManager *session.SessionManager
	UploadDir      string
	OutputDir      string
}

// New builds the server state and creates the upload and output
// directories.
func New(cfg config.Config) *Server {
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		log.Printf("Error creating %s: %v", cfg.UploadDir, err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Printf("Error creating %s: %v", cfg.OutputDir, err)
	}

	lib := pdf.NewLibrary()
	sm := session.NewSessionManager(session.Options{
		Library:  lib,
		Renderer: render.SheetRenderer{},
		Render: render.Options{
			MaxWidth:  cfg.CanvasMaxWidth,
			MaxHeight: cfg.CanvasMaxHeight,
			Yield:     cfg.RenderYield,
		},
		Defaults: workspace.Defaults{
			ImageScale: cfg.SignatureScale,
			TextWidth:  cfg.TextWidth,
			TextSize:   cfg.TextSize,
		},
	})

	return &Server{
		cfg:            cfg,
		library:        lib,
		SessionManager: sm,
		UploadDir:      cfg.UploadDir,
		OutputDir:      cfg.OutputDir,
	}
}

// StartSweeper removes expired sessions every CLEANUP_INTERVAL until ctx
// is done.
func (s *Server) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.SessionManager.Sweep(s.cfg.SessionTTL); n > 0 {
					log.Printf("Removed %d expired sessions", n)
				}
			}
		}
	}()
}

func NewServer(ctx context.Context, cfg config.Config) *http.Server {
	srv := New(cfg)
	srv.StartSweeper(ctx)

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
