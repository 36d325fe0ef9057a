package layout

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"print-relay/internal/pdftest"

	"github.com/digitorus/pdf"
	"github.com/stretchr/testify/require"
)

var (
	a4Portrait  = [2]float64{A4Width, A4Height}
	a4Landscape = [2]float64{A4Height, A4Width}
)

// makePDF writes a minimal PDF with one page per size.
func makePDF(t *testing.T, sizes ...[2]float64) []byte {
	t.Helper()
	require.NotEmpty(t, sizes)
	return pdftest.Build(sizes...)
}

// pagesOf returns n copies of size.
func pagesOf(n int, size [2]float64) [][2]float64 {
	return pdftest.Pages(n, size)
}

func loadDoc(t *testing.T, sizes ...[2]float64) *Document {
	t.Helper()
	doc, err := LoadDocument(makePDF(t, sizes...))
	require.NoError(t, err)
	return doc
}

func makeImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	return img
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, makeImage(w, h), &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, makeImage(w, h)))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// readerPages inspects a PDF with an independent parser and returns the
// MediaBox of every page and the number of XObjects each page draws.
func readerPages(t *testing.T, data []byte) (boxes [][4]float64, xobjects []int) {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		v := page.V
		for v.Key("MediaBox").IsNull() && !v.Key("Parent").IsNull() {
			v = v.Key("Parent")
		}
		mb := v.Key("MediaBox")
		var box [4]float64
		for j := 0; j < 4 && j < mb.Len(); j++ {
			box[j] = mb.Index(j).Float64()
		}
		boxes = append(boxes, box)
		xobjects = append(xobjects, len(page.V.Key("Resources").Key("XObject").Keys()))
	}
	return boxes, xobjects
}

// fakeRasterizer records calls and returns canned output.
type fakeRasterizer struct {
	thumbnail      []byte
	thumbnailErr   error
	grayscaleErr   error
	thumbnailCalls int
	grayscaleCalls int
}

func (f *fakeRasterizer) Thumbnail(_ context.Context, _ []byte) ([]byte, error) {
	f.thumbnailCalls++
	return f.thumbnail, f.thumbnailErr
}

func (f *fakeRasterizer) Grayscale(_ context.Context, pdf []byte) ([]byte, error) {
	f.grayscaleCalls++
	if f.grayscaleErr != nil {
		return nil, f.grayscaleErr
	}
	return pdf, nil
}

type fakeOffice struct {
	pdf   []byte
	err   error
	calls []string
}

func (f *fakeOffice) ConvertToPDF(_ context.Context, _ []byte, ext string) ([]byte, error) {
	f.calls = append(f.calls, ext)
	return f.pdf, f.err
}

type fakeTranscoder struct {
	png []byte
}

func (f *fakeTranscoder) ToPNG(_ context.Context, _ []byte) ([]byte, error) {
	if f.png == nil {
		return nil, errors.New("cannot transcode")
	}
	return f.png, nil
}
