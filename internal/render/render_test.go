package render

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// onePagePDF is a red A4 page.
const onePagePDF = "%PDF-1.4\n" +
	"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
	"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
	"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R >>\nendobj\n" +
	"4 0 obj\n<< /Length 27 >>\nstream\n1 0 0 rg 50 50 495 742 re f\nendstream\nendobj\n" +
	"trailer\n<< /Root 1 0 R >>\n%%EOF\n"

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

func TestRenderError(t *testing.T) {
	t.Run("error without cause", func(t *testing.T) {
		err := NewRenderError(ErrCodeRenderTimeout, "timeout occurred", nil)

		assert.Equal(t, ErrCodeRenderTimeout, err.Code)
		assert.Equal(t, "timeout occurred", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("error with cause", func(t *testing.T) {
		cause := assert.AnError
		err := NewRenderError(ErrCodeRenderFailed, "render failed", cause)

		assert.Contains(t, err.Error(), "render failed")
		assert.Contains(t, err.Error(), cause.Error())
		assert.ErrorIs(t, err, cause)
	})
}

func TestNewTool_BinaryNotFound(t *testing.T) {
	constructors := map[string]func(*Config) error{
		"soffice":     func(c *Config) error { _, err := NewLibreOffice(c); return err },
		"ghostscript": func(c *Config) error { _, err := NewGhostscript(c); return err },
		"ffmpeg":      func(c *Config) error { _, err := NewFFmpeg(c); return err },
	}
	for name, build := range constructors {
		t.Run(name, func(t *testing.T) {
			err := build(&Config{BinaryPath: "/nonexistent/bin/" + name})

			var renderErr *RenderError
			require.True(t, errors.As(err, &renderErr))
			assert.Equal(t, ErrCodeBinaryNotFound, renderErr.Code)
		})
	}
}

func TestNewTool_Defaults(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)

	tl, err := newTool("test", "", &Config{BinaryPath: self})
	require.NoError(t, err)
	assert.Equal(t, self, tl.binary)
	assert.Equal(t, defaultTimeout, tl.timeout)
	assert.Equal(t, os.TempDir(), tl.tempDir)
	assert.NotNil(t, tl.logger)
}

func TestTool_Workspace(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)
	tl, err := newTool("gs", "", &Config{BinaryPath: self, TempDir: t.TempDir()})
	require.NoError(t, err)

	first, cleanFirst, err := tl.workspace()
	require.NoError(t, err)
	second, cleanSecond, err := tl.workspace()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.DirExists(t, first)

	cleanFirst()
	cleanSecond()
	assert.NoDirExists(t, first)
	assert.NoDirExists(t, second)
}

func TestTool_Run(t *testing.T) {
	requireBinary(t, "sh")
	sh, _ := exec.LookPath("sh")

	t.Run("failure carries stderr", func(t *testing.T) {
		tl, err := newTool("sh", "", &Config{BinaryPath: sh})
		require.NoError(t, err)

		err = tl.run(context.Background(), "-c", "echo broken >&2; exit 3")
		var renderErr *RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.Equal(t, ErrCodeRenderFailed, renderErr.Code)
		assert.Contains(t, renderErr.Message, "broken")
	})

	t.Run("timeout", func(t *testing.T) {
		tl, err := newTool("sh", "", &Config{BinaryPath: sh, Timeout: 50 * time.Millisecond})
		require.NoError(t, err)

		err = tl.run(context.Background(), "-c", "sleep 5")
		var renderErr *RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.Equal(t, ErrCodeRenderTimeout, renderErr.Code)
	})
}

func TestSofficeArgs(t *testing.T) {
	args := sofficeArgs("/tmp/job", "/tmp/job/input.docx")

	assert.Equal(t, "--headless", args[0])
	assert.Contains(t, args, "-env:UserInstallation=file:///tmp/job/profile")
	assert.Equal(t, []string{"--convert-to", "pdf", "--outdir", "/tmp/job", "/tmp/job/input.docx"}, args[len(args)-5:])
}

func TestGhostscriptArgs(t *testing.T) {
	thumb := thumbnailArgs("in.pdf", "out.jpg")
	assert.Contains(t, thumb, "-sDEVICE=jpeg")
	assert.Contains(t, thumb, "-dFirstPage=1")
	assert.Contains(t, thumb, "-dLastPage=1")
	assert.Contains(t, thumb, "-dJPEGQ=60")
	assert.Contains(t, thumb, "-r72")
	assert.Contains(t, thumb, "-sOutputFile=out.jpg")
	assert.Equal(t, "in.pdf", thumb[len(thumb)-1])

	gray := grayscaleArgs("in.pdf", "out.pdf")
	assert.Contains(t, gray, "-sDEVICE=pdfwrite")
	assert.Contains(t, gray, "-sColorConversionStrategy=Gray")
	assert.Contains(t, gray, "-dProcessColorModel=/DeviceGray")
	assert.Contains(t, gray, "-dCompatibilityLevel=1.4")
	assert.Equal(t, "in.pdf", gray[len(gray)-1])
}

func TestTranscodeArgs(t *testing.T) {
	in := filepath.Join("work", "input")
	out := filepath.Join("work", "output.png")
	args := transcodeArgs(in, out)

	require.GreaterOrEqual(t, len(args), 4)
	assert.Equal(t, "-i", args[0])
	assert.Equal(t, in, args[1])
	assert.Contains(t, args, out)
	assert.Contains(t, args, "-frames:v")
	assert.Contains(t, args, "-y")
	assert.Contains(t, args, "-loglevel")
	assert.Contains(t, args, "error")
	assert.False(t, ffmpeg.LogCompiledCommand, "compiling must not log through the standard logger")
}

func TestGhostscript(t *testing.T) {
	requireBinary(t, defaultGhostscriptBinary)

	gs, err := NewGhostscript(&Config{TempDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("thumbnail", func(t *testing.T) {
		out, err := gs.Thumbnail(ctx, []byte(onePagePDF))
		require.NoError(t, err)

		img, err := jpeg.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 595, img.Bounds().Dx())
	})

	t.Run("grayscale", func(t *testing.T) {
		out, err := gs.Grayscale(ctx, []byte(onePagePDF))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := gs.Grayscale(ctx, nil)
		var renderErr *RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.Equal(t, ErrCodeInvalidInput, renderErr.Code)
	})
}

func TestLibreOffice(t *testing.T) {
	requireBinary(t, defaultSofficeBinary)

	lo, err := NewLibreOffice(&Config{TempDir: t.TempDir(), Timeout: 2 * time.Minute})
	require.NoError(t, err)

	out, err := lo.ConvertToPDF(context.Background(), []byte("hello from the print queue\n"), "txt")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
