package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Page is the visual size of one page in points, page rotation applied.
type Page struct {
	Width  float64
	Height float64
}

// Landscape reports whether the page is wider than tall.
func (p Page) Landscape() bool {
	return p.Width > p.Height
}

// Document is an immutable PDF plus its page geometry. Every transform
// returns a new Document.
type Document struct {
	data  []byte
	pages []Page
}

// LoadDocument parses PDF bytes. Documents without pages are rejected.
func LoadDocument(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, errors.New("PDF is empty")
	}

	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}
	if ctx.PageCount == 0 {
		return nil, errors.New("PDF has no pages")
	}

	pages := make([]Page, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		_, _, inh, err := ctx.PageDict(pageNr, false)
		if err != nil {
			return nil, err
		}
		box, err := visibleBox(inh, pageNr)
		if err != nil {
			return nil, err
		}
		w, h := box.Width(), box.Height()
		if quarterTurn(inh.Rotate) {
			w, h = h, w
		}
		pages = append(pages, Page{Width: w, Height: h})
	}

	return &Document{
		data:  append([]byte(nil), data...),
		pages: pages,
	}, nil
}

// Bytes returns a copy of the serialized PDF.
func (d *Document) Bytes() []byte {
	return append([]byte(nil), d.data...)
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// Pages returns a copy of the page geometry.
func (d *Document) Pages() []Page {
	return append([]Page(nil), d.pages...)
}

func (d *Document) clone() *Document {
	return &Document{data: d.Bytes(), pages: d.Pages()}
}

func readContext(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func writeContext(ctx *model.Context) ([]byte, error) {
	var out bytes.Buffer
	if err := pdfapi.WriteContext(ctx, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// mergeRaw concatenates PDFs in order.
func mergeRaw(segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, errors.New("nothing to merge")
	}
	if len(segments) == 1 {
		return segments[0], nil
	}

	readers := make([]io.ReadSeeker, len(segments))
	for i, data := range segments {
		readers[i] = bytes.NewReader(data)
	}

	var out bytes.Buffer
	if err := pdfapi.MergeRaw(readers, &out, false, model.NewDefaultConfiguration()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func visibleBox(inh *model.InheritedPageAttrs, pageNr int) (*types.Rectangle, error) {
	if inh == nil {
		return nil, fmt.Errorf("page %d has no attributes", pageNr)
	}
	box := inh.CropBox
	if box == nil {
		box = inh.MediaBox
	}
	if box == nil {
		return nil, fmt.Errorf("page %d has no size information", pageNr)
	}
	if box.Width() <= 0 || box.Height() <= 0 {
		return nil, fmt.Errorf("page %d has an empty page box", pageNr)
	}
	return box, nil
}

func normalizeRotation(rot int) int {
	rot %= 360
	if rot < 0 {
		rot += 360
	}
	return rot
}

func quarterTurn(rot int) bool {
	r := normalizeRotation(rot)
	return r == 90 || r == 270
}
