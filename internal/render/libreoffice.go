package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"print-relay/internal/layout"

	"go.uber.org/zap"
)

const defaultSofficeBinary = "soffice"

// LibreOffice converts office documents to PDF with a headless soffice
type LibreOffice struct {
	tool *tool
}

// NewLibreOffice creates a LibreOffice converter. It fails with
// BINARY_NOT_FOUND when soffice cannot be located.
func NewLibreOffice(cfg *Config) (*LibreOffice, error) {
	t, err := newTool("soffice", defaultSofficeBinary, cfg)
	if err != nil {
		return nil, err
	}
	return &LibreOffice{tool: t}, nil
}

// ConvertToPDF converts data, whose format is given by ext, to PDF.
func (l *LibreOffice) ConvertToPDF(ctx context.Context, data []byte, ext string) ([]byte, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return nil, NewRenderError(ErrCodeInvalidInput, "file extension is required", nil)
	}

	dir, cleanup, err := l.tool.workspace()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input := filepath.Join(dir, "input."+ext)
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to write input file", err)
	}

	if err := l.tool.run(ctx, sofficeArgs(dir, input)...); err != nil {
		return nil, err
	}

	pdf, err := readOutput(filepath.Join(dir, "input.pdf"))
	if err != nil {
		return nil, err
	}
	l.tool.logger.Info("office document converted",
		zap.String("ext", ext),
		zap.Int("bytes", len(pdf)))
	return pdf, nil
}

// sofficeArgs keeps the user profile inside dir so concurrent conversions
// do not fight over the shared profile lock.
func sofficeArgs(dir, input string) []string {
	return []string{
		"--headless",
		"--norestore",
		"-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(dir, "profile")),
		"--convert-to", "pdf",
		"--outdir", dir,
		input,
	}
}

var _ layout.OfficeConverter = (*LibreOffice)(nil)
