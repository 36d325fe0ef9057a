//go:build !mupdf

package render

import (
	"context"

	"go.uber.org/zap"
)

// MuPDFAvailable reports whether the binary was built with MuPDF.
const MuPDFAvailable = false

// MuPDF is unavailable without the mupdf build tag
type MuPDF struct{}

// NewMuPDF always fails without the mupdf build tag.
func NewMuPDF(_ *zap.Logger) (*MuPDF, error) {
	return nil, NewRenderError(ErrCodeUnsupported, "built without mupdf support", nil)
}

// Thumbnail always fails without the mupdf build tag.
func (m *MuPDF) Thumbnail(_ context.Context, _ []byte) ([]byte, error) {
	return nil, NewRenderError(ErrCodeUnsupported, "built without mupdf support", nil)
}

// Grayscale always fails without the mupdf build tag.
func (m *MuPDF) Grayscale(_ context.Context, _ []byte) ([]byte, error) {
	return nil, NewRenderError(ErrCodeUnsupported, "built without mupdf support", nil)
}
