// Package session manages editing sessions: the uploaded files of a user,
// their workspace and the render cache that goes with it.
//
// Types:
//   - Session: one user's uploads, workspace, renders and export.
//   - SessionManager: all active sessions, with expiry.
//
// Expected outputs:
// - Session IDs are unique (UUID)
// - Source files are read from disk every time they are needed
// - A render only becomes the page's canvas if it is still current
// - Cleanup removes all files for a session
//
// Used by API handlers to manage user state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go-pdfcompose/internal/compose"
	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
	"go-pdfcompose/internal/render"
	"go-pdfcompose/internal/utils"
	"go-pdfcompose/internal/workspace"
)

const (
	StatusIdle       = "idle"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

var ErrExportInProgress = errors.New("export already in progress")

type Session struct {
	ID        string
	CreatedAt time.Time

	Workspace *workspace.Workspace
	Renders   *render.Cache

	// Files maps document ids to their upload on disk.
	Files        map[string]string
	OutputFile   string
	ExportStatus string
	LastUsed     time.Time
	Mutex        sync.Mutex
}

// Options configure every session a SessionManager creates.
type Options struct {
	Library  doclib.Library
	Renderer render.Renderer
	Render   render.Options
	Defaults workspace.Defaults
}

type SessionManager struct {
	Sessions map[string]*Session
	Mutex    sync.RWMutex
	opts     Options
}

func NewSessionManager(opts Options) *SessionManager {
	if opts.Renderer == nil {
		opts.Renderer = render.SheetRenderer{}
	}
	if opts.Defaults == (workspace.Defaults{}) {
		opts.Defaults = workspace.DefaultDefaults()
	}
	return &SessionManager{
		Sessions: make(map[string]*Session),
		opts:     opts,
	}
}

func (sm *SessionManager) CreateSession() *Session {
	now := time.Now()
	s := &Session{
		ID:           utils.GenerateUUID(),
		CreatedAt:    now,
		LastUsed:     now,
		Workspace:    workspace.New(workspace.WithDefaults(sm.opts.Defaults)),
		Files:        make(map[string]string),
		ExportStatus: StatusIdle,
	}
	s.Renders = render.NewCache(sm.opts.Library, sm.opts.Renderer, s.ReadDocument, sm.opts.Render)

	sm.Mutex.Lock()
	defer sm.Mutex.Unlock()
	sm.Sessions[s.ID] = s
	return s
}

// GetSession returns the session and marks it as used.
func (sm *SessionManager) GetSession(id string) (*Session, bool) {
	sm.Mutex.RLock()
	s, exists := sm.Sessions[id]
	sm.Mutex.RUnlock()
	if exists {
		s.touch()
	}
	return s, exists
}

// DeleteSession removes a session and its files.
func (sm *SessionManager) DeleteSession(id string) bool {
	sm.Mutex.Lock()
	s, exists := sm.Sessions[id]
	delete(sm.Sessions, id)
	sm.Mutex.Unlock()
	if exists {
		s.Cleanup()
	}
	return exists
}

// Sweep removes sessions unused for longer than maxAge and deletes their
// files. It returns the number of sessions removed.
func (sm *SessionManager) Sweep(maxAge time.Duration) int {
	sm.Mutex.Lock()
	var expired []*Session
	for id, s := range sm.Sessions {
		if time.Since(s.lastUsed()) > maxAge {
			expired = append(expired, s)
			delete(sm.Sessions, id)
		}
	}
	sm.Mutex.Unlock()

	for _, s := range expired {
		s.Cleanup()
	}
	return len(expired)
}

func (s *Session) touch() {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	s.LastUsed = time.Now()
}

func (s *Session) lastUsed() time.Time {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	return s.LastUsed
}

// AddFile records the upload of a document.
func (s *Session) AddFile(documentID, path string) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	s.Files[documentID] = path
}

func (s *Session) FilePath(documentID string) (string, bool) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	p, ok := s.Files[documentID]
	return p, ok
}

// ReadDocument reads a source document from disk.
func (s *Session) ReadDocument(documentID string) ([]byte, error) {
	path, ok := s.FilePath(documentID)
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, workspace.ErrNotFound)
	}
	return os.ReadFile(path)
}

// RemoveDocument drops a source document with its pages, overlays, renders
// and upload.
func (s *Session) RemoveDocument(documentID string) error {
	if err := s.Workspace.RemoveDocument(documentID); err != nil {
		return err
	}
	s.Renders.ForgetDocument(documentID)
	s.DiscardFile(documentID)
	return nil
}

// DiscardFile deletes the upload of a document and forgets its path.
func (s *Session) DiscardFile(documentID string) {
	s.Mutex.Lock()
	path := s.Files[documentID]
	delete(s.Files, documentID)
	s.Mutex.Unlock()
	if path != "" {
		os.Remove(path)
	}
}

// RemovePage drops a page and its render.
func (s *Session) RemovePage(pageID string) error {
	if err := s.Workspace.RemovePage(pageID); err != nil {
		return err
	}
	s.Renders.Forget(pageID)
	return nil
}

func pageRef(p workspace.Page) render.PageRef {
	return render.PageRef{PageID: p.ID, DocumentID: p.DocumentID, PageIndex: p.PageIndex, Rotation: p.Rotation}
}

// Render renders a page fitted to the available width and publishes the
// render as the page's canvas.
func (s *Session) Render(ctx context.Context, pageID string, available float64) (render.Result, workspace.Page, error) {
	p, err := s.Workspace.Page(pageID)
	if err != nil {
		return render.Result{}, workspace.Page{}, err
	}
	res, err := s.Renders.RenderPage(ctx, pageRef(p), available)
	if err != nil {
		return render.Result{}, workspace.Page{}, err
	}
	p, err = s.Workspace.SetCanvas(pageID, res.Key.Rotation, res.Viewport.Size())
	if err != nil {
		return render.Result{}, workspace.Page{}, err
	}
	return res, p, nil
}

// RotatePage rotates a page with its overlays. A page that was rendered
// before is rendered again at the same available width, so its canvas and
// viewport follow the rotation. A failed re-render is logged; the page
// stays rotated.
func (s *Session) RotatePage(ctx context.Context, pageID string, delta int) (workspace.Page, error) {
	p, err := s.Workspace.RotatePage(pageID, delta)
	if err != nil {
		return workspace.Page{}, err
	}
	last, ok := s.Renders.Last(pageID)
	if !ok {
		return p, nil
	}
	res, err := s.Renders.RenderPage(ctx, pageRef(p), last.Key.Available)
	if err != nil {
		log.Printf("Error re-rendering page %s after rotation: %v", pageID, err)
		return p, nil
	}
	rendered, err := s.Workspace.SetCanvas(pageID, res.Key.Rotation, res.Viewport.Size())
	if err != nil {
		log.Printf("Error publishing render of page %s: %v", pageID, err)
		return s.Workspace.Page(pageID)
	}
	return rendered, nil
}

// RenderAll renders every page in order and publishes each render as its
// page's canvas. Pages that fail are skipped and reported in failed; err
// is only set when ctx ends the pass.
func (s *Session) RenderAll(ctx context.Context, available float64) (failed []error, err error) {
	pages := s.Workspace.Pages()
	refs := make([]render.PageRef, len(pages))
	for i, p := range pages {
		refs[i] = pageRef(p)
	}
	rerr := s.Renders.RenderAll(ctx, refs, available, func(res render.Result) {
		if _, err := s.Workspace.SetCanvas(res.PageID, res.Key.Rotation, res.Viewport.Size()); err != nil {
			failed = append(failed, &render.RenderError{PageID: res.PageID, Err: err})
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if joined, ok := rerr.(interface{ Unwrap() []error }); ok {
		failed = append(failed, joined.Unwrap()...)
	} else if rerr != nil {
		failed = append(failed, rerr)
	}
	return failed, nil
}

// Preview returns the current render of a page.
func (s *Session) Preview(pageID string) (render.Result, bool) {
	p, err := s.Workspace.Page(pageID)
	if err != nil {
		return render.Result{}, false
	}
	return s.Renders.Current(pageRef(p))
}

// Viewport returns the viewport of the page's current render when that
// render is the one its canvas was taken from.
func (s *Session) Viewport(pageID string) (geometry.Viewport, bool) {
	p, err := s.Workspace.Page(pageID)
	if err != nil {
		return geometry.Viewport{}, false
	}
	res, ok := s.Renders.Current(pageRef(p))
	if !ok || !res.Viewport.Size().Matches(p.Canvas) {
		return geometry.Viewport{}, false
	}
	return res.Viewport, true
}

// Export composes the current workspace. Only one export runs at a time.
func (s *Session) Export(ctx context.Context, c *compose.Composer) ([]byte, error) {
	s.Mutex.Lock()
	if s.ExportStatus == StatusInProgress {
		s.Mutex.Unlock()
		return nil, ErrExportInProgress
	}
	prev := s.ExportStatus
	s.ExportStatus = StatusInProgress
	s.Mutex.Unlock()

	data, err := s.export(ctx, c)

	s.Mutex.Lock()
	if err != nil {
		s.ExportStatus = prev
	} else {
		s.ExportStatus = StatusDone
	}
	s.Mutex.Unlock()
	return data, err
}

func (s *Session) export(ctx context.Context, c *compose.Composer) ([]byte, error) {
	snap, err := s.Workspace.Snapshot()
	if err != nil {
		return nil, err
	}
	return c.Export(ctx, compose.NewJob(snap, s.ReadDocument, s.Viewport))
}

// SetOutput records the exported file, removing the previous one.
func (s *Session) SetOutput(path string) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if s.OutputFile != "" && s.OutputFile != path {
		os.Remove(s.OutputFile)
	}
	s.OutputFile = path
}

func (s *Session) Output() string {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	return s.OutputFile
}

func (s *Session) Cleanup() {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	for _, file := range s.Files {
		os.Remove(file)
	}
	if s.OutputFile != "" {
		os.Remove(s.OutputFile)
	}
}
