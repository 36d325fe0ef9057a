package layout

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestCompressPhoto(t *testing.T) {
	t.Run("large photo is shrunk to fit", func(t *testing.T) {
		out, ok := CompressPhoto(makePNG(t, 3000, 1500))
		require.True(t, ok)
		assert.Equal(t, image.Rect(0, 0, 2000, 1000), decodeJPEG(t, out).Bounds())
	})

	t.Run("tall photo keeps its aspect ratio", func(t *testing.T) {
		out, ok := CompressPhoto(makeJPEG(t, 1200, 4000))
		require.True(t, ok)
		assert.Equal(t, image.Rect(0, 0, 600, 2000), decodeJPEG(t, out).Bounds())
	})

	t.Run("small photo is never enlarged", func(t *testing.T) {
		out, ok := CompressPhoto(makePNG(t, 400, 300))
		require.True(t, ok)
		assert.Equal(t, image.Rect(0, 0, 400, 300), decodeJPEG(t, out).Bounds())
	})

	t.Run("transparency becomes white", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 20, 20))))
		out, ok := CompressPhoto(buf.Bytes())
		require.True(t, ok)
		r, g, b, _ := decodeJPEG(t, out).At(10, 10).RGBA()
		assert.Greater(t, r, uint32(0xf000))
		assert.Greater(t, g, uint32(0xf000))
		assert.Greater(t, b, uint32(0xf000))
	})

	t.Run("undecodable input is kept", func(t *testing.T) {
		in := []byte("ftypheic not decodable here")
		out, ok := CompressPhoto(in)
		assert.False(t, ok)
		assert.Equal(t, in, out)
	})
}

func TestFitInside(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{2000, 2000, 2000, 2000},
		{4000, 3000, 2000, 1500},
		{3000, 4000, 1500, 2000},
		{100, 50, 100, 50},
		{10000, 1, 2000, 1},
	}
	for _, tt := range tests {
		w, h := fitInside(tt.w, tt.h, PhotoMaxSide)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestCompressPhoto_GrayPixel(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0x40
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, ok := CompressPhoto(buf.Bytes())
	require.True(t, ok)
	got := color.GrayModel.Convert(decodeJPEG(t, out).At(4, 4)).(color.Gray)
	assert.InDelta(t, 0x40, int(got.Y), 4)
}
