package render

import (
	"context"
	"os"
	"path/filepath"

	"print-relay/internal/layout"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const defaultFFmpegBinary = "ffmpeg"

// FFmpeg transcodes raster formats the Go decoders do not understand,
// such as HEIC or AVIF, into PNG.
type FFmpeg struct {
	tool *tool
}

// NewFFmpeg creates an FFmpeg transcoder.
func NewFFmpeg(cfg *Config) (*FFmpeg, error) {
	t, err := newTool("ffmpeg", defaultFFmpegBinary, cfg)
	if err != nil {
		return nil, err
	}
	return &FFmpeg{tool: t}, nil
}

// ToPNG decodes the first frame of data and encodes it as PNG.
func (f *FFmpeg) ToPNG(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, NewRenderError(ErrCodeInvalidInput, "image is empty", nil)
	}

	dir, cleanup, err := f.tool.workspace()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	in := filepath.Join(dir, "input")
	out := filepath.Join(dir, "output.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to write input file", err)
	}

	if err := f.tool.run(ctx, transcodeArgs(in, out)...); err != nil {
		return nil, err
	}
	return readOutput(out)
}

// transcodeArgs builds the ffmpeg command line without the binary name.
func transcodeArgs(in, out string) []string {
	// OverWriteOutput marks the stream it is called on, so it has to come
	// after GlobalArgs. Silent keeps Compile from logging outside zap.
	cmd := ffmpeg.Input(in).
		Output(out, ffmpeg.KwArgs{"frames:v": 1, "f": "image2", "c:v": "png"}).
		GlobalArgs("-loglevel", "error").
		OverWriteOutput().
		Silent(true).
		Compile()
	return cmd.Args[1:]
}

var _ layout.ImageTranscoder = (*FFmpeg)(nil)
