// Package pdftest builds small PDF fixtures for tests.
package pdftest

import (
	"bytes"
	"fmt"
)

// Page describes one fixture page. Rotate is written as the page's
// /Rotate entry when non-zero.
type Page struct {
	Size   [2]float64
	Rotate int
}

// Build writes a minimal PDF with one page per size. Each page is filled
// with a colored rectangle and shows its page number.
func Build(sizes ...[2]float64) []byte {
	pages := make([]Page, len(sizes))
	for i, size := range sizes {
		pages[i] = Page{Size: size}
	}
	return BuildPages(pages...)
}

// BuildPages is Build with per-page rotation.
func BuildPages(pages ...Page) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, page := range pages {
		size := page.Size
		rotate := ""
		if page.Rotate != 0 {
			rotate = fmt.Sprintf(" /Rotate %d", page.Rotate)
		}
		content := fmt.Sprintf("0.8 0.1 0.1 rg 10 10 %.2f %.2f re f BT /F1 24 Tf 40 40 Td (Page %d) Tj ET",
			size[0]-20, size[1]-20, i+1)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f]%s /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			size[0], size[1], rotate, 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// Pages returns n copies of size.
func Pages(n int, size [2]float64) [][2]float64 {
	sizes := make([][2]float64, n)
	for i := range sizes {
		sizes[i] = size
	}
	return sizes
}

// A4 is a portrait A4 page in points.
var A4 = [2]float64{595, 842}
