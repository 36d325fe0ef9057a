package layout

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	// PhotoMaxSide bounds both sides of a received photo.
	PhotoMaxSide = 2000
	// PhotoQuality is the JPEG quality received photos are stored at.
	PhotoQuality = 80
)

// CompressPhoto shrinks a photo to fit inside PhotoMaxSide x PhotoMaxSide,
// never enlarging it, and re-encodes it as JPEG. Input that cannot be
// decoded or encoded is returned unchanged with ok set to false.
func CompressPhoto(data []byte) (out []byte, ok bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, false
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return data, false
	}
	w, h := fitInside(b.Dx(), b.Dy(), PhotoMaxSide)

	// JPEG has no alpha, transparent areas become white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: PhotoQuality}); err != nil {
		return data, false
	}
	return buf.Bytes(), true
}

// fitInside scales w x h down to fit a limit x limit square keeping the
// aspect ratio.
func fitInside(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
