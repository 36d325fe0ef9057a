package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	rasterExtensions = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true,
		"webp": true, "tiff": true, "tif": true, "heic": true, "heif": true,
	}
	officeExtensions = map[string]bool{
		"doc": true, "docx": true, "xls": true, "xlsx": true, "ppt": true, "pptx": true,
		"pages": true, "numbers": true, "key": true,
		"odt": true, "ods": true, "odp": true, "txt": true, "rtf": true,
	}
	pdfMagic = []byte("%PDF")
)

// Converter normalizes images, PDFs and office documents into a Document.
type Converter struct {
	office     OfficeConverter
	transcoder ImageTranscoder
	logger     *zap.Logger
}

// NewConverter creates a Converter. office and transcoder may be nil, in
// which case office documents fail with CONVERSION_FAILED and only
// natively decodable images are accepted.
func NewConverter(office OfficeConverter, transcoder ImageTranscoder, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		office:     office,
		transcoder: transcoder,
		logger:     logger,
	}
}

// Convert builds a Document from data. When sourcePaths is set the original
// images are used instead of data, one page per image in order.
func (c *Converter) Convert(ctx context.Context, data []byte, fileName string, grayscale bool, sourcePaths []string) (*Document, error) {
	if len(sourcePaths) > 0 {
		images := make([][]byte, 0, len(sourcePaths))
		for _, path := range sourcePaths {
			img, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read source image %s: %w", filepath.Base(path), err)
			}
			images = append(images, img)
		}
		doc, err := c.imageDocument(ctx, images, grayscale)
		if err != nil {
			return nil, NewError(ErrCodeUnsupportedFormat, "could not read source images", err)
		}
		return doc, nil
	}

	ext := Extension(fileName)
	switch {
	case ext == "pdf" || bytes.HasPrefix(data, pdfMagic):
		doc, err := LoadDocument(data)
		if err != nil {
			if errors.Is(err, pdfcpu.ErrWrongPassword) {
				return nil, NewError(ErrCodeUnsupportedFormat, "PDF is password protected", err)
			}
			return nil, NewError(ErrCodeUnsupportedFormat, "could not read PDF", err)
		}
		return doc, nil

	case rasterExtensions[ext]:
		doc, err := c.imageDocument(ctx, [][]byte{data}, grayscale)
		if err != nil {
			return nil, unsupportedFormatError(fileName, err)
		}
		return doc, nil

	case officeExtensions[ext]:
		return c.officeDocument(ctx, data, ext)

	default:
		doc, err := c.imageDocument(ctx, [][]byte{data}, grayscale)
		if err != nil {
			return nil, unsupportedFormatError(fileName, err)
		}
		return doc, nil
	}
}

// Extension returns the lower-case extension of fileName without the dot.
func Extension(fileName string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
}

// IsImage reports whether fileName names a raster image format.
func IsImage(fileName string) bool {
	return rasterExtensions[Extension(fileName)]
}

func (c *Converter) officeDocument(ctx context.Context, data []byte, ext string) (*Document, error) {
	message := fmt.Sprintf("failed to convert %s to PDF, conversion requires LibreOffice", strings.ToUpper(ext))
	if c.office == nil {
		return nil, NewError(ErrCodeConversionFailed, message, errors.New("office converter is not configured"))
	}

	pdf, err := c.office.ConvertToPDF(ctx, data, ext)
	if err != nil {
		c.logger.Error("office conversion failed", zap.String("ext", ext), zap.Error(err))
		return nil, NewError(ErrCodeConversionFailed, message, err)
	}

	doc, err := LoadDocument(pdf)
	if err != nil {
		return nil, NewError(ErrCodeConversionFailed, message, err)
	}
	return doc, nil
}

// imageDocument puts every image on its own A4 page.
func (c *Converter) imageDocument(ctx context.Context, images [][]byte, grayscale bool) (*Document, error) {
	pages := make([][]byte, 0, len(images))
	for i, data := range images {
		page, err := c.imagePage(ctx, data, grayscale)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		pages = append(pages, page)
	}

	merged, err := mergeRaw(pages)
	if err != nil {
		return nil, err
	}
	return LoadDocument(merged)
}

// imagePage renders one image onto an A4 page oriented after the image,
// scaled uniformly to fit and centered.
func (c *Converter) imagePage(ctx context.Context, data []byte, grayscale bool) ([]byte, error) {
	img, format, err := c.decodeImage(ctx, data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.New("image is empty")
	}

	encoded, err := embeddable(img, data, format, grayscale)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	form := "A4"
	if w, _ := a4For(bounds.Dx(), bounds.Dy()); w == A4Height {
		form = "A4L"
	}
	imp, err := pdfapi.Import(fmt.Sprintf("form:%s, pos:c, sc:1.0", form), types.POINTS)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := pdfapi.ImportImages(nil, &out, []io.Reader{bytes.NewReader(encoded)}, imp, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("import image: %w", err)
	}
	return out.Bytes(), nil
}

// embeddable returns the bytes placed into the PDF. JPEG sources are
// embedded as they are, grayscale photos are re-encoded as JPEG and
// everything else goes in as PNG.
func embeddable(img image.Image, data []byte, format string, grayscale bool) ([]byte, error) {
	var buf bytes.Buffer
	switch {
	case format == "jpeg" && !grayscale:
		return data, nil
	case format == "jpeg":
		if err := jpeg.Encode(&buf, toGray(img), &jpeg.Options{Quality: PhotoQuality}); err != nil {
			return nil, err
		}
	case grayscale:
		if err := png.Encode(&buf, toGray(img)); err != nil {
			return nil, err
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// decodeImage returns the decoded image and the name of its format.
// Transcoded images report "png".
func (c *Converter) decodeImage(ctx context.Context, data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, format, nil
	}
	if c.transcoder == nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	c.logger.Debug("native decode failed, transcoding", zap.Error(err))
	converted, terr := c.transcoder.ToPNG(ctx, data)
	if terr != nil {
		return nil, "", fmt.Errorf("decode image: %w", errors.Join(err, terr))
	}
	img, err = png.Decode(bytes.NewReader(converted))
	if err != nil {
		return nil, "", fmt.Errorf("decode transcoded image: %w", err)
	}
	return img, "png", nil
}

// toGray flattens img onto white and drops the color channels.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
