package layout

import "context"

// OfficeConverter turns an office document into PDF bytes. ext is the
// lower-case source extension without the dot.
type OfficeConverter interface {
	ConvertToPDF(ctx context.Context, data []byte, ext string) ([]byte, error)
}

// Rasterizer renders and recolors whole PDFs.
type Rasterizer interface {
	// Thumbnail renders the first page as an encoded raster image.
	Thumbnail(ctx context.Context, pdf []byte) ([]byte, error)
	// Grayscale converts every page, vector and text content included.
	Grayscale(ctx context.Context, pdf []byte) ([]byte, error)
}

// ImageTranscoder converts raster formats the image package cannot decode
// into PNG.
type ImageTranscoder interface {
	ToPNG(ctx context.Context, data []byte) ([]byte, error)
}
