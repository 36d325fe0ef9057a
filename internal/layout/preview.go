package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	// PreviewWidth is the thumbnail width in pixels.
	PreviewWidth = 600
	// PreviewQuality is the JPEG quality of thumbnails.
	PreviewQuality = 60
)

var (
	// PreviewUnavailable is returned instead of a thumbnail when rendering
	// fails.
	PreviewUnavailable = []byte("error-preview")

	// placeholderPreview is what older sessions stored in place of a PDF.
	placeholderPreview = []byte("mock-preview-data")
)

// Preview renders the first page of pdf as a small JPEG. It never fails:
// on any error the PreviewUnavailable payload is returned.
func (p *Processor) Preview(ctx context.Context, pdf []byte) (preview []byte) {
	if bytes.Equal(pdf, placeholderPreview) {
		return append([]byte(nil), pdf...)
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("preview rendering panicked", zap.Any("panic", r))
			preview = unavailablePreview()
		}
	}()

	thumb, err := p.renderThumbnail(ctx, pdf)
	if err != nil {
		p.logger.Warn("preview unavailable",
			zap.Error(NewError(ErrCodeRenderingDegraded, "preview rendering failed", err)))
		return unavailablePreview()
	}
	return thumb
}

func (p *Processor) renderThumbnail(ctx context.Context, pdf []byte) ([]byte, error) {
	if p.rasterizer == nil {
		return nil, errors.New("no rasterizer configured")
	}
	raw, err := p.rasterizer.Thumbnail(ctx, pdf)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return EncodeThumbnail(img)
}

// EncodeThumbnail resizes img to PreviewWidth keeping its aspect ratio and
// encodes it as JPEG.
func EncodeThumbnail(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("rendered page is empty")
	}

	if b.Dx() != PreviewWidth {
		h := max(b.Dy()*PreviewWidth/b.Dx(), 1)
		dst := image.NewRGBA(image.Rect(0, 0, PreviewWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: PreviewQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func unavailablePreview() []byte {
	return append([]byte(nil), PreviewUnavailable...)
}
