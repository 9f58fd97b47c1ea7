package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"go-pdfcompose/internal/doclib"
	"go-pdfcompose/internal/geometry"
)

// Resource names get a prefix so they never collide with the names a
// copied page already uses.
const resPrefix = "PC"

var ErrNoPages = errors.New("document has no pages")

// Document collects copied pages and the drawing done on them. Nothing is
// written until Serialize.
type Document struct {
	pages    []*Page
	fonts    []*Font
	images   []*Image
	opacity  []float64
	nextPage int
}

func NewDocument() *Document {
	return &Document{}
}

type Page struct {
	doc      *Document
	id       int
	src      *Source
	index    int
	rotation int
	size     geometry.Size
	added    bool

	content bytes.Buffer
	fonts   []*Font
	images  []*Image
	states  []int
}

type Font struct {
	doc  *Document
	name string
	res  string
}

func (f *Font) Name() string { return f.name }

func (d *Document) CopyPages(src doclib.Source, indices []int) ([]doclib.Page, error) {
	s, ok := src.(*Source)
	if !ok {
		return nil, fmt.Errorf("copy from %T: %w", src, doclib.ErrForeign)
	}
	out := make([]doclib.Page, 0, len(indices))
	for _, i := range indices {
		info, err := s.info(i)
		if err != nil {
			return nil, err
		}
		d.nextPage++
		out = append(out, &Page{
			doc:      d,
			id:       d.nextPage,
			src:      s,
			index:    i,
			rotation: info.rotation,
			size:     geometry.Size{W: info.media.Width(), H: info.media.Height()},
		})
	}
	return out, nil
}

func (d *Document) AddPage(p doclib.Page) error {
	pg, ok := p.(*Page)
	if !ok || pg.doc != d {
		return fmt.Errorf("add page: %w", doclib.ErrForeign)
	}
	if pg.added {
		return fmt.Errorf("page %d added twice", pg.id)
	}
	pg.added = true
	d.pages = append(d.pages, pg)
	return nil
}

// PageCount returns the number of pages added so far.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// EmbedFont returns the document's font for one of the standard 14 names.
// Asking twice for the same name returns the same font.
func (d *Document) EmbedFont(name string) (doclib.Font, error) {
	if !slices.Contains(standardFonts, name) {
		return nil, fmt.Errorf("font %q is not a standard font", name)
	}
	for _, f := range d.fonts {
		if f.name == name {
			return f, nil
		}
	}
	f := &Font{doc: d, name: name, res: fmt.Sprintf("%sF%d", resPrefix, len(d.fonts)+1)}
	d.fonts = append(d.fonts, f)
	return f, nil
}

func (d *Document) EmbedPNG(data []byte) (doclib.Image, error) {
	return d.embedImage(data, decodePNG)
}

func (d *Document) EmbedJPEG(data []byte) (doclib.Image, error) {
	return d.embedImage(data, decodeJPEG)
}

func (d *Document) embedImage(data []byte, decode decodeFunc) (doclib.Image, error) {
	img, err := newImage(data, decode)
	if err != nil {
		return nil, err
	}
	img.doc = d
	img.res = fmt.Sprintf("%sIm%d", resPrefix, len(d.images)+1)
	d.images = append(d.images, img)
	return img, nil
}

// opacityState returns the index of the graphics state for opacity.
func (d *Document) opacityState(opacity float64) int {
	if i := slices.Index(d.opacity, opacity); i >= 0 {
		return i
	}
	d.opacity = append(d.opacity, opacity)
	return len(d.opacity) - 1
}

func stateName(i int) string {
	return fmt.Sprintf("%sGS%d", resPrefix, i+1)
}

func (p *Page) Rotation() int { return p.rotation }

func (p *Page) SetRotation(degrees int) {
	p.rotation = geometry.AddDegrees(degrees, 0)
}

func (p *Page) Size() geometry.Size { return p.size }

func (p *Page) DrawImage(img doclib.Image, opts doclib.ImageOptions) error {
	im, ok := img.(*Image)
	if !ok || im.doc != p.doc {
		return fmt.Errorf("draw image: %w", doclib.ErrForeign)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("image size %vx%v", opts.Width, opts.Height)
	}

	state := -1
	if opts.Opacity > 0 && opts.Opacity < 1 {
		state = p.doc.opacityState(opts.Opacity)
	}
	writeImage(&p.content, im.res, state, opts)

	if !slices.Contains(p.images, im) {
		p.images = append(p.images, im)
	}
	if state >= 0 && !slices.Contains(p.states, state) {
		p.states = append(p.states, state)
	}
	return nil
}

func (p *Page) DrawText(text string, opts doclib.TextOptions) error {
	f, ok := opts.Font.(*Font)
	if !ok || f.doc != p.doc {
		return fmt.Errorf("draw text: %w", doclib.ErrForeign)
	}
	if opts.Size <= 0 {
		return fmt.Errorf("font size %v", opts.Size)
	}
	if text == "" {
		return nil
	}
	writeText(&p.content, f.res, encodeWinAnsi(text), opts)
	if !slices.Contains(p.fonts, f) {
		p.fonts = append(p.fonts, f)
	}
	return nil
}

// Serialize writes the document: every added page is extracted from its
// source with its rotation applied, the pages are merged, and the drawing
// is stamped onto the merged pages with shared resources.
func (d *Document) Serialize() ([]byte, error) {
	if len(d.pages) == 0 {
		return nil, ErrNoPages
	}

	parts := make([]io.ReadSeeker, 0, len(d.pages))
	for _, p := range d.pages {
		b, err := p.extract()
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", p.index+1, err)
		}
		parts = append(parts, bytes.NewReader(b))
	}

	var merged bytes.Buffer
	if len(parts) == 1 {
		if _, err := io.Copy(&merged, parts[0]); err != nil {
			return nil, err
		}
	} else if err := pdfapi.MergeRaw(parts, &merged, false, configuration()); err != nil {
		return nil, fmt.Errorf("merge pages: %w", err)
	}

	if !d.hasDrawing() {
		return merged.Bytes(), nil
	}

	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(merged.Bytes()), configuration())
	if err != nil {
		return nil, fmt.Errorf("reread merged pages: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	if ctx.PageCount != len(d.pages) {
		return nil, fmt.Errorf("merged %d pages, expected %d", ctx.PageCount, len(d.pages))
	}

	st := &stamper{ctx: ctx, doc: d}
	for i, p := range d.pages {
		if p.content.Len() == 0 {
			continue
		}
		if err := st.stamp(i+1, p); err != nil {
			return nil, fmt.Errorf("draw on page %d: %w", i+1, err)
		}
	}

	var out bytes.Buffer
	if err := pdfapi.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	return out.Bytes(), nil
}

func (d *Document) hasDrawing() bool {
	return slices.ContainsFunc(d.pages, func(p *Page) bool { return p.content.Len() > 0 })
}

// extract writes the page as a one page PDF carrying the page's rotation.
func (p *Page) extract() ([]byte, error) {
	ctx, err := pdfcpu.ExtractPages(p.src.ctx, []int{p.index + 1}, false)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	pageDict, _, _, err := ctx.PageDict(1, false)
	if err != nil {
		return nil, err
	}
	if pageDict == nil {
		return nil, errors.New("extracted page is empty")
	}
	if p.rotation == 0 {
		pageDict.Delete("Rotate")
	} else {
		pageDict["Rotate"] = types.Integer(p.rotation)
	}

	var out bytes.Buffer
	if err := pdfapi.WriteContext(ctx, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// stamper adds the shared resources to the merged file on first use and
// appends each page's drawing to its content.
type stamper struct {
	ctx    *model.Context
	doc    *Document
	fonts  map[*Font]types.IndirectRef
	images map[*Image]types.IndirectRef
	states map[int]types.IndirectRef
}

func (st *stamper) stamp(pageNr int, p *Page) error {
	pageDict, _, inh, err := st.ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	res, err := st.resources(pageDict, inh)
	if err != nil {
		return err
	}

	for _, f := range p.fonts {
		ref, err := st.font(f)
		if err != nil {
			return err
		}
		if err := st.addResource(res, "Font", f.res, ref); err != nil {
			return err
		}
	}
	for _, im := range p.images {
		ref, err := st.image(im)
		if err != nil {
			return err
		}
		if err := st.addResource(res, "XObject", im.res, ref); err != nil {
			return err
		}
	}
	for _, s := range p.states {
		ref, err := st.state(s)
		if err != nil {
			return err
		}
		if err := st.addResource(res, "ExtGState", stateName(s), ref); err != nil {
			return err
		}
	}

	// Wrap the existing content in q/Q so the overlays start from the
	// default graphics state.
	open, err := st.stream([]byte("q\n"))
	if err != nil {
		return err
	}
	body := append([]byte("Q\n"), p.content.Bytes()...)
	overlay, err := st.stream(body)
	if err != nil {
		return err
	}

	contents := types.Array{open}
	switch c := pageDict["Contents"].(type) {
	case nil:
	case types.IndirectRef:
		contents = append(contents, c)
	case types.Array:
		contents = append(contents, c...)
	default:
		return fmt.Errorf("unexpected page contents %T", c)
	}
	pageDict["Contents"] = append(contents, overlay)
	return nil
}

func (st *stamper) stream(buf []byte) (types.IndirectRef, error) {
	sd, err := st.ctx.NewStreamDictForBuf(buf)
	if err != nil {
		return types.IndirectRef{}, err
	}
	if err := sd.Encode(); err != nil {
		return types.IndirectRef{}, err
	}
	ref, err := st.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return types.IndirectRef{}, err
	}
	return *ref, nil
}

// resources returns the page's own resource dictionary, creating it from
// the inherited one when the page has none.
func (st *stamper) resources(pageDict types.Dict, inh *model.InheritedPageAttrs) (types.Dict, error) {
	if obj, found := pageDict.Find("Resources"); found && obj != nil {
		d, err := st.ctx.DereferenceDict(obj)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
	res := types.Dict{}
	if inh != nil {
		for k, v := range inh.Resources {
			res[k] = v
		}
	}
	pageDict["Resources"] = res
	return res, nil
}

func (st *stamper) addResource(res types.Dict, kind, name string, ref types.IndirectRef) error {
	var sub types.Dict
	if obj, found := res.Find(kind); found && obj != nil {
		d, err := st.ctx.DereferenceDict(obj)
		if err != nil {
			return err
		}
		sub = d
	}
	if sub == nil {
		sub = types.Dict{}
		res[kind] = sub
	}
	sub[name] = ref
	return nil
}

func (st *stamper) font(f *Font) (types.IndirectRef, error) {
	if ref, ok := st.fonts[f]; ok {
		return ref, nil
	}
	d := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(f.name),
	}
	if f.name != "Symbol" && f.name != "ZapfDingbats" {
		d["Encoding"] = types.Name("WinAnsiEncoding")
	}
	ref, err := st.ctx.IndRefForNewObject(d)
	if err != nil {
		return types.IndirectRef{}, err
	}
	if st.fonts == nil {
		st.fonts = make(map[*Font]types.IndirectRef)
	}
	st.fonts[f] = *ref
	return *ref, nil
}

func (st *stamper) image(im *Image) (types.IndirectRef, error) {
	if ref, ok := st.images[im]; ok {
		return ref, nil
	}
	ref, err := im.xobject(st.ctx)
	if err != nil {
		return types.IndirectRef{}, err
	}
	if st.images == nil {
		st.images = make(map[*Image]types.IndirectRef)
	}
	st.images[im] = ref
	return ref, nil
}

func (st *stamper) state(i int) (types.IndirectRef, error) {
	if ref, ok := st.states[i]; ok {
		return ref, nil
	}
	op := types.Float(st.doc.opacity[i])
	ref, err := st.ctx.IndRefForNewObject(types.Dict{
		"Type": types.Name("ExtGState"),
		"ca":   op,
		"CA":   op,
	})
	if err != nil {
		return types.IndirectRef{}, err
	}
	if st.states == nil {
		st.states = make(map[int]types.IndirectRef)
	}
	st.states[i] = *ref
	return *ref, nil
}
