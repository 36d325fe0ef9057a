//go:build mupdf

package render

import (
	"bytes"
	"context"
	"image/png"

	"print-relay/internal/layout"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// MuPDFAvailable reports whether the binary was built with MuPDF.
const MuPDFAvailable = true

// MuPDF renders thumbnails in-process with MuPDF
type MuPDF struct {
	logger *zap.Logger
}

// NewMuPDF creates a MuPDF rasterizer.
func NewMuPDF(logger *zap.Logger) (*MuPDF, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MuPDF{logger: logger}, nil
}

// Thumbnail renders the first page of pdf as a PNG at 72 DPI.
func (m *MuPDF) Thumbnail(_ context.Context, pdf []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidInput, "failed reading document", err)
	}
	defer doc.Close()

	if n := doc.NumPage(); n == 0 {
		return nil, NewRenderError(ErrCodeInvalidInput, "document has no pages", nil)
	}

	img, err := doc.ImageDPI(0, thumbnailDPI)
	if err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed rendering first page", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed encoding page", err)
	}
	return buf.Bytes(), nil
}

// Grayscale is not implemented on MuPDF.
func (m *MuPDF) Grayscale(_ context.Context, _ []byte) ([]byte, error) {
	return nil, NewRenderError(ErrCodeUnsupported, "grayscale is not supported by mupdf", nil)
}

var _ layout.Rasterizer = (*MuPDF)(nil)
