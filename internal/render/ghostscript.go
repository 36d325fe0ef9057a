package render

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"print-relay/internal/layout"
)

const (
	defaultGhostscriptBinary = "gs"
	thumbnailDPI             = 72
	thumbnailQuality         = 60
)

// Ghostscript renders thumbnails and desaturates documents with gs
type Ghostscript struct {
	tool *tool
}

// NewGhostscript creates a Ghostscript backend.
func NewGhostscript(cfg *Config) (*Ghostscript, error) {
	t, err := newTool("ghostscript", defaultGhostscriptBinary, cfg)
	if err != nil {
		return nil, err
	}
	return &Ghostscript{tool: t}, nil
}

// Thumbnail renders the first page of pdf as a JPEG.
func (g *Ghostscript) Thumbnail(ctx context.Context, pdf []byte) ([]byte, error) {
	return g.convert(ctx, pdf, "page.jpg", thumbnailArgs)
}

// Grayscale re-renders pdf with every color converted to gray.
func (g *Ghostscript) Grayscale(ctx context.Context, pdf []byte) ([]byte, error) {
	return g.convert(ctx, pdf, "gray.pdf", grayscaleArgs)
}

func (g *Ghostscript) convert(ctx context.Context, pdf []byte, outName string, args func(in, out string) []string) ([]byte, error) {
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeInvalidInput, "PDF is empty", nil)
	}

	dir, cleanup, err := g.tool.workspace()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	in := filepath.Join(dir, "input.pdf")
	out := filepath.Join(dir, outName)
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to write input file", err)
	}

	if err := g.tool.run(ctx, args(in, out)...); err != nil {
		return nil, err
	}
	return readOutput(out)
}

func thumbnailArgs(in, out string) []string {
	return []string{
		"-sDEVICE=jpeg",
		"-dFirstPage=1",
		"-dLastPage=1",
		"-dNOPAUSE",
		"-dBATCH",
		"-dSAFER",
		"-dQUIET",
		"-dJPEGQ=" + strconv.Itoa(thumbnailQuality),
		"-r" + strconv.Itoa(thumbnailDPI),
		"-sOutputFile=" + out,
		in,
	}
}

func grayscaleArgs(in, out string) []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-sColorConversionStrategy=Gray",
		"-dProcessColorModel=/DeviceGray",
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE",
		"-dBATCH",
		"-dSAFER",
		"-dQUIET",
		"-sOutputFile=" + out,
		in,
	}
}

var _ layout.Rasterizer = (*Ghostscript)(nil)
