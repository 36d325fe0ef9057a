package layout

import "math"

// Page geometry in PDF points (1/72 inch).
const (
	A4Width  = 595.0
	A4Height = 842.0

	// Gap is the 5mm spacing between imposed slots.
	Gap = 14.17

	// MaxPages is the page ceiling for any pipeline output.
	MaxPages = 100
)

// Slot is a rectangular region of a destination page reserved for one
// source page. The origin is the bottom-left corner, as in PDF user space.
type Slot struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Portrait reports whether the slot is taller than wide.
func (s Slot) Portrait() bool {
	return s.Height > s.Width
}

// Placement describes how a source page is drawn into a slot.
type Placement struct {
	Scale   float64
	Rotated bool
	// X, Y, Width and Height are the visual bounds of the drawn page.
	X      float64
	Y      float64
	Width  float64
	Height float64
	// Matrix is the PDF transformation matrix [a b c d e f] mapping source
	// page space onto the destination page.
	Matrix [6]float64
}

// PlaceInSlot fits a w×h source page into slot. Landscape pages headed for
// a portrait slot are turned 90° counter-clockwise. Scaling is uniform and
// the result is centered on both axes.
func PlaceInSlot(w, h float64, slot Slot) Placement {
	rotated := w > h && slot.Portrait()

	effW, effH := w, h
	if rotated {
		effW, effH = h, w
	}

	scale := math.Min(slot.Width/effW, slot.Height/effH)
	visualW := effW * scale
	visualH := effH * scale

	x := slot.X + (slot.Width-visualW)/2
	y := slot.Y + (slot.Height-visualH)/2

	p := Placement{
		Scale:   scale,
		Rotated: rotated,
		X:       x,
		Y:       y,
		Width:   visualW,
		Height:  visualH,
	}
	if rotated {
		// (u, v) -> (x+visualW - s*v, y + s*u)
		p.Matrix = [6]float64{0, scale, -scale, 0, x + visualW, y}
	} else {
		p.Matrix = [6]float64{scale, 0, 0, scale, x, y}
	}
	return p
}

// Grid is the destination page geometry for one N-up factor.
type Grid struct {
	Width  float64
	Height float64
	// Slots in fill order.
	Slots []Slot
}

// GridFor returns the imposition grid for n pages per sheet. ok is false
// for factors other than 2 and 4.
func GridFor(n int) (grid Grid, ok bool) {
	switch n {
	case 2:
		// Landscape sheet, two side-by-side portrait slots.
		w := (A4Height - Gap) / 2
		return Grid{
			Width:  A4Height,
			Height: A4Width,
			Slots: []Slot{
				{X: 0, Y: 0, Width: w, Height: A4Width},
				{X: w + Gap, Y: 0, Width: w, Height: A4Width},
			},
		}, true
	case 4:
		// Portrait sheet, 2x2: top-left, top-right, bottom-left, bottom-right.
		w := (A4Width - Gap) / 2
		h := (A4Height - Gap) / 2
		return Grid{
			Width:  A4Width,
			Height: A4Height,
			Slots: []Slot{
				{X: 0, Y: h + Gap, Width: w, Height: h},
				{X: w + Gap, Y: h + Gap, Width: w, Height: h},
				{X: 0, Y: 0, Width: w, Height: h},
				{X: w + Gap, Y: 0, Width: w, Height: h},
			},
		}, true
	}
	return Grid{}, false
}

// SheetsFor returns the number of destination pages needed to impose
// pages source pages n-up.
func SheetsFor(pages, n int) int {
	if n <= 1 {
		return pages
	}
	return (pages + n - 1) / n
}

// a4For returns the A4 page size oriented after a w×h image: portrait
// when h >= w, landscape otherwise.
func a4For(w, h int) (float64, float64) {
	if w > h {
		return A4Height, A4Width
	}
	return A4Width, A4Height
}
