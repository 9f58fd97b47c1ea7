package render

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
)

type fakeSource struct {
	boxes []geometry.Rect
	rots  []int
}

func (s *fakeSource) PageCount() int { return len(s.boxes) }

func (s *fakeSource) PageBox(i int) (geometry.Rect, error) {
	if i < 0 || i >= len(s.boxes) {
		return geometry.Rect{}, errors.New("no such page")
	}
	return s.boxes[i], nil
}

func (s *fakeSource) PageRotation(i int) (int, error) {
	if i < 0 || i >= len(s.rots) {
		return 0, errors.New("no such page")
	}
	return s.rots[i], nil
}

type fakeLibrary struct {
	loads atomic.Int32
	delay time.Duration
	src   *fakeSource
}

func (l *fakeLibrary) Load(data []byte) (doclib.Source, error) {
	l.loads.Add(1)
	time.Sleep(l.delay)
	if string(data) == "broken" {
		return nil, doclib.ErrParse
	}
	return l.src, nil
}

func (l *fakeLibrary) Create() doclib.Document { return nil }

type countingRenderer struct {
	SheetRenderer
	calls atomic.Int32
	fail  map[int]bool
}

func (r *countingRenderer) Render(ctx context.Context, src doclib.Source, pageIndex int, scale float64, rotation int) (image.Image, geometry.Viewport, error) {
	r.calls.Add(1)
	if r.fail[pageIndex] {
		return nil, geometry.Viewport{}, errors.New("raster failed")
	}
	return r.SheetRenderer.Render(ctx, src, pageIndex, scale, rotation)
}

func letterSource() *fakeSource {
	return &fakeSource{
		boxes: []geometry.Rect{{URX: 500, URY: 700}, {URX: 500, URY: 700}, {URX: 800, URY: 400}},
		rots:  []int{0, 90, 0},
	}
}

func newTestCache(lib *fakeLibrary, r Renderer) *Cache {
	read := func(id string) ([]byte, error) {
		switch id {
		case "doc":
			return []byte("pdf"), nil
		case "broken":
			return []byte("broken"), nil
		}
		return nil, errors.New("unknown document")
	}
	return NewCache(lib, r, read, Options{MaxWidth: 1600, MaxHeight: 2000})
}

func TestRenderPageFitsWidth(t *testing.T) {
	c := newTestCache(&fakeLibrary{src: letterSource()}, SheetRenderer{})

	res, err := c.RenderPage(context.Background(), PageRef{PageID: "p1", DocumentID: "doc"}, 500)
	if err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	opt := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(geometry.Size{W: 500, H: 700}, res.Viewport.Size(), opt); diff != "" {
		t.Errorf("viewport size (-want +got):\n%s", diff)
	}
	if b := res.Raster.Bounds(); b.Dx() != 500 || b.Dy() != 700 {
		t.Errorf("raster = %v, want 500x700", b)
	}

	// Page 1 has /Rotate 90; a user quarter turn brings it to 180.
	res, err = c.RenderPage(context.Background(), PageRef{PageID: "p2", DocumentID: "doc", PageIndex: 1, Rotation: 90}, 250)
	if err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if res.Viewport.Rotation != 180 {
		t.Errorf("rotation = %d, want 180", res.Viewport.Rotation)
	}
	if diff := cmp.Diff(geometry.Size{W: 250, H: 350}, res.Viewport.Size(), opt); diff != "" {
		t.Errorf("viewport size (-want +got):\n%s", diff)
	}
}

func TestRenderPageBoundsHeight(t *testing.T) {
	c := NewCache(&fakeLibrary{src: letterSource()}, SheetRenderer{}, func(string) ([]byte, error) { return nil, nil },
		Options{MaxWidth: 1600, MaxHeight: 350})
	res, err := c.RenderPage(context.Background(), PageRef{PageID: "p1", DocumentID: "doc"}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if res.Viewport.Height > 350+1e-9 {
		t.Errorf("height = %v, want at most 350", res.Viewport.Height)
	}
}

func TestRenderPageCachesByKey(t *testing.T) {
	r := &countingRenderer{}
	c := newTestCache(&fakeLibrary{src: letterSource()}, r)
	ctx := context.Background()
	ref := PageRef{PageID: "p1", DocumentID: "doc"}

	if _, err := c.RenderPage(ctx, ref, 600); err != nil {
		t.Fatal(err)
	}
	res, err := c.RenderPage(ctx, ref, 600)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached || r.calls.Load() != 1 {
		t.Errorf("second render: cached=%v calls=%d, want cached and 1 call", res.Cached, r.calls.Load())
	}

	ref.Rotation = 90
	if _, err := c.RenderPage(ctx, ref, 600); err != nil {
		t.Fatal(err)
	}
	if r.calls.Load() != 2 {
		t.Errorf("rotated render calls = %d, want 2", r.calls.Load())
	}

	if _, ok := c.Viewport("p1", Key{DocumentID: "doc", Available: 600}); ok {
		t.Error("viewport for the unrotated key is still handed out")
	}
	if _, ok := c.Viewport("p1", Key{DocumentID: "doc", Rotation: 90, Available: 600}); !ok {
		t.Error("viewport for the current key is missing")
	}
	if _, ok := c.Current(PageRef{PageID: "p1", DocumentID: "doc"}); ok {
		t.Error("Current returned a render for a stale rotation")
	}
	if _, ok := c.Current(ref); !ok {
		t.Error("Current is missing the latest render")
	}
}

func TestSourceLoadedOnce(t *testing.T) {
	lib := &fakeLibrary{src: letterSource(), delay: 20 * time.Millisecond}
	c := newTestCache(lib, SheetRenderer{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := PageRef{PageID: string(rune('a' + i)), DocumentID: "doc", PageIndex: i}
			if _, err := c.RenderPage(context.Background(), ref, 400); err != nil {
				t.Errorf("RenderPage %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if n := lib.loads.Load(); n != 1 {
		t.Errorf("document decoded %d times, want 1", n)
	}

	c.ForgetDocument("doc")
	if _, ok := c.Current(PageRef{PageID: "a", DocumentID: "doc"}); ok {
		t.Error("render survived ForgetDocument")
	}
	if _, err := c.Source(context.Background(), "doc"); err != nil {
		t.Fatal(err)
	}
	if n := lib.loads.Load(); n != 2 {
		t.Errorf("loads after ForgetDocument = %d, want 2", n)
	}
}

func TestRenderPageCancelled(t *testing.T) {
	c := newTestCache(&fakeLibrary{src: letterSource()}, SheetRenderer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RenderPage(ctx, PageRef{PageID: "p1", DocumentID: "doc"}, 500)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if _, ok := c.Current(PageRef{PageID: "p1", DocumentID: "doc"}); ok {
		t.Error("cancelled render was stored")
	}
}

func TestRenderErrors(t *testing.T) {
	c := newTestCache(&fakeLibrary{src: letterSource()}, SheetRenderer{})

	_, err := c.RenderPage(context.Background(), PageRef{PageID: "p1", DocumentID: "broken"}, 500)
	var re *RenderError
	if !errors.As(err, &re) || re.PageID != "p1" {
		t.Fatalf("error = %v, want RenderError for p1", err)
	}
	if !errors.Is(err, doclib.ErrParse) {
		t.Errorf("error = %v, want it to wrap ErrParse", err)
	}

	_, err = c.RenderPage(context.Background(), PageRef{PageID: "p9", DocumentID: "doc", PageIndex: 9}, 500)
	if !errors.As(err, &re) {
		t.Errorf("out of range page error = %v, want RenderError", err)
	}
}

func TestRenderAllKeepsGoing(t *testing.T) {
	r := &countingRenderer{fail: map[int]bool{1: true}}
	c := newTestCache(&fakeLibrary{src: letterSource()}, r)
	pages := []PageRef{
		{PageID: "a", DocumentID: "doc", PageIndex: 0},
		{PageID: "b", DocumentID: "doc", PageIndex: 1},
		{PageID: "c", DocumentID: "doc", PageIndex: 2},
	}

	var published []string
	err := c.RenderAll(context.Background(), pages, 400, func(res Result) {
		published = append(published, res.PageID)
	})
	var re *RenderError
	if !errors.As(err, &re) || re.PageID != "b" {
		t.Fatalf("error = %v, want RenderError for b", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, published); diff != "" {
		t.Errorf("published (-want +got):\n%s", diff)
	}
}

func TestRenderAllStopsOnCancel(t *testing.T) {
	c := newTestCache(&fakeLibrary{src: letterSource()}, SheetRenderer{})
	c.opts.Yield = time.Second
	ctx, cancel := context.WithCancel(context.Background())
	pages := []PageRef{
		{PageID: "a", DocumentID: "doc", PageIndex: 0},
		{PageID: "b", DocumentID: "doc", PageIndex: 1},
	}

	var published []string
	err := c.RenderAll(ctx, pages, 400, func(res Result) {
		published = append(published, res.PageID)
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if diff := cmp.Diff([]string{"a"}, published); diff != "" {
		t.Errorf("published (-want +got):\n%s", diff)
	}
}

func TestThumbnail(t *testing.T) {
	img, _, err := SheetRenderer{}.Render(context.Background(), letterSource(), 2, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	th := Thumbnail(img, 200)
	if b := th.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("thumbnail = %v, want 200x100", b)
	}
	if Thumbnail(img, 0) != img {
		t.Error("Thumbnail(0) changed the image")
	}
}
