// Package render keeps each page's last preview raster and viewport and
// decides when a page has to be rendered again.
//
// Types:
//   - Cache: decoded sources per document plus the last render per page.
//   - Renderer: turns a page into a raster and the viewport of that raster.
//   - SheetRenderer: the bundled Renderer; paints a blank sheet the size of
//     the page.
//
// Expected outputs:
//   - a page is rendered again only when its document, page index, user
//     rotation or available width changed
//   - a source document is decoded at most once, even when several pages
//     of it are rendered at the same time
//   - a render whose context was cancelled is never stored
//   - a failed render is reported as *RenderError and other pages still
//     render
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
)

// Renderer rasterises page pageIndex of src at scale, turned rotation
// degrees clockwise.
type Renderer interface {
	Render(ctx context.Context, src doclib.Source, pageIndex int, scale float64, rotation int) (image.Image, geometry.Viewport, error)
}

// Key identifies one render of a page. Available is the container width
// the scale was fitted to.
type Key struct {
	DocumentID string
	PageIndex  int
	Rotation   int
	Available  float64
}

// PageRef is the part of a page the cache needs. Rotation is the user
// rotation, without the page's own /Rotate.
type PageRef struct {
	PageID     string
	DocumentID string
	PageIndex  int
	Rotation   int
}

func (r PageRef) key(available float64) Key {
	return Key{DocumentID: r.DocumentID, PageIndex: r.PageIndex, Rotation: r.Rotation, Available: available}
}

type Result struct {
	PageID   string
	Key      Key
	Viewport geometry.Viewport
	Raster   image.Image
	Cached   bool
}

// RenderError is a failed preview of one page.
type RenderError struct {
	PageID string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %s: %v", e.PageID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type Options struct {
	MaxWidth  float64
	MaxHeight float64
	// Yield is the pause between two pages in RenderAll.
	Yield time.Duration
}

func DefaultOptions() Options {
	return Options{MaxWidth: 1600, MaxHeight: 2000, Yield: 20 * time.Millisecond}
}

// ReadFunc returns the bytes of a source document.
type ReadFunc func(documentID string) ([]byte, error)

type Cache struct {
	lib      doclib.Library
	renderer Renderer
	read     ReadFunc
	opts     Options
	logger   *log.Logger

	group singleflight.Group

	mu    sync.Mutex
	docs  map[string]doclib.Source
	pages map[string]Result
}

func NewCache(lib doclib.Library, renderer Renderer, read ReadFunc, opts Options) *Cache {
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		d := DefaultOptions()
		opts.MaxWidth, opts.MaxHeight = d.MaxWidth, d.MaxHeight
	}
	return &Cache{
		lib:      lib,
		renderer: renderer,
		read:     read,
		opts:     opts,
		logger:   log.Default(),
		docs:     make(map[string]doclib.Source),
		pages:    make(map[string]Result),
	}
}

// Source returns the decoded document, loading it on first use.
func (c *Cache) Source(ctx context.Context, documentID string) (doclib.Source, error) {
	c.mu.Lock()
	src, ok := c.docs[documentID]
	c.mu.Unlock()
	if ok {
		return src, nil
	}

	ch := c.group.DoChan(documentID, func() (any, error) {
		c.mu.Lock()
		src, ok := c.docs[documentID]
		c.mu.Unlock()
		if ok {
			return src, nil
		}
		data, err := c.read(documentID)
		if err != nil {
			return nil, err
		}
		loaded, err := c.lib.Load(data)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.docs[documentID] = loaded
		c.mu.Unlock()
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(doclib.Source), nil
	}
}

// RenderPage renders ref fitted to the available width, or returns the
// stored render when it was made for the same key.
func (c *Cache) RenderPage(ctx context.Context, ref PageRef, available float64) (Result, error) {
	key := ref.key(available)

	c.mu.Lock()
	if res, ok := c.pages[ref.PageID]; ok && res.Key == key {
		c.mu.Unlock()
		res.Cached = true
		return res, nil
	}
	c.mu.Unlock()

	src, err := c.Source(ctx, ref.DocumentID)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &RenderError{PageID: ref.PageID, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	box, err := src.PageBox(ref.PageIndex)
	if err != nil {
		return Result{}, &RenderError{PageID: ref.PageID, Err: err}
	}
	intrinsic, err := src.PageRotation(ref.PageIndex)
	if err != nil {
		return Result{}, &RenderError{PageID: ref.PageID, Err: err}
	}
	rotation := geometry.AddDegrees(intrinsic, ref.Rotation)
	natural := geometry.NewViewport(box, 1, rotation).Size()
	if natural.Empty() {
		return Result{}, &RenderError{PageID: ref.PageID, Err: errors.New("page box is empty")}
	}
	scale := geometry.FitScale(natural, available, c.opts.MaxWidth, c.opts.MaxHeight)

	raster, vp, err := c.renderer.Render(ctx, src, ref.PageIndex, scale, rotation)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		return Result{}, &RenderError{PageID: ref.PageID, Err: err}
	}
	if !vp.Valid() {
		return Result{}, &RenderError{PageID: ref.PageID, Err: errors.New("renderer returned no viewport")}
	}

	res := Result{PageID: ref.PageID, Key: key, Viewport: vp, Raster: raster}
	c.mu.Lock()
	c.pages[ref.PageID] = res
	c.mu.Unlock()
	return res, nil
}

// RenderAll renders pages in order, pausing between pages. publish is
// called for every successful render. Failed pages are logged and their
// errors returned together once every page has been tried.
func (c *Cache) RenderAll(ctx context.Context, pages []PageRef, available float64, publish func(Result)) error {
	var errs []error
	for i, ref := range pages {
		if i > 0 && c.opts.Yield > 0 {
			t := time.NewTimer(c.opts.Yield)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		res, err := c.RenderPage(ctx, ref, available)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Printf("render: %v", err)
			errs = append(errs, err)
			continue
		}
		if publish != nil {
			publish(res)
		}
	}
	return errors.Join(errs...)
}

// Viewport returns the page's viewport if it was rendered for exactly key.
func (c *Cache) Viewport(pageID string, key Key) (geometry.Viewport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.pages[pageID]
	if !ok || res.Key != key {
		return geometry.Viewport{}, false
	}
	return res.Viewport, true
}

// Current returns the last render of ref, whatever width it was fitted
// to, as long as the page has not been rotated or repointed since.
func (c *Cache) Current(ref PageRef) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.pages[ref.PageID]
	if !ok {
		return Result{}, false
	}
	k := res.Key
	if k.DocumentID != ref.DocumentID || k.PageIndex != ref.PageIndex || k.Rotation != ref.Rotation {
		return Result{}, false
	}
	return res, true
}

// Last returns the last render of a page, whatever it was made for.
func (c *Cache) Last(pageID string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.pages[pageID]
	return res, ok
}

// Forget drops the render of one page.
func (c *Cache) Forget(pageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, pageID)
}

// ForgetDocument drops the decoded source and every render of its pages.
func (c *Cache) ForgetDocument(documentID string) {
	c.group.Forget(documentID)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, documentID)
	for id, res := range c.pages {
		if res.Key.DocumentID == documentID {
			delete(c.pages, id)
		}
	}
}
