package layout

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"print-relay/internal/pdftest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sizeA = [2]float64{300, 400}
	sizeB = [2]float64{400, 300}
	sizeC = [2]float64{200, 500}
)

func sizesOf(doc *Document) [][2]float64 {
	var out [][2]float64
	for _, p := range doc.Pages() {
		out = append(out, [2]float64{p.Width, p.Height})
	}
	return out
}

func TestLoadDocument(t *testing.T) {
	t.Run("reads page geometry", func(t *testing.T) {
		doc := loadDoc(t, a4Portrait, a4Landscape)
		assert.Equal(t, 2, doc.PageCount())
		assert.Equal(t, [][2]float64{a4Portrait, a4Landscape}, sizesOf(doc))
		assert.False(t, doc.Pages()[0].Landscape())
		assert.True(t, doc.Pages()[1].Landscape())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := LoadDocument(nil)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := LoadDocument([]byte("%PDF-1.4 definitely not a pdf"))
		assert.Error(t, err)
	})

	t.Run("bytes are copied", func(t *testing.T) {
		doc := loadDoc(t, a4Portrait)
		b := doc.Bytes()
		b[0] = 'X'
		assert.Equal(t, byte('%'), doc.Bytes()[0])
	})
}

func TestDuplicate(t *testing.T) {
	t.Run("repeats each page before the next", func(t *testing.T) {
		doc := loadDoc(t, sizeA, sizeB)

		out, err := Duplicate(doc, 2)
		require.NoError(t, err)
		assert.Equal(t, [][2]float64{sizeA, sizeA, sizeB, sizeB}, sizesOf(out))
	})

	t.Run("page count is copies times source pages", func(t *testing.T) {
		for _, copies := range []int{1, 2, 3, 5} {
			doc := loadDoc(t, sizeA, sizeB, sizeC)
			out, err := Duplicate(doc, copies)
			require.NoError(t, err)
			assert.Equal(t, 3*copies, out.PageCount(), "copies=%d", copies)
		}
	})

	t.Run("single copy keeps content", func(t *testing.T) {
		doc := loadDoc(t, sizeA, sizeB)
		out, err := Duplicate(doc, 1)
		require.NoError(t, err)
		assert.NotSame(t, doc, out)
		assert.Equal(t, doc.Bytes(), out.Bytes())
	})
}

func TestImposeNUp(t *testing.T) {
	t.Run("four pages two up give two landscape sheets", func(t *testing.T) {
		doc := loadDoc(t, pagesOf(4, a4Portrait)...)

		out, err := ImposeNUp(doc, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, out.PageCount())
		for _, p := range out.Pages() {
			assert.InDelta(t, A4Height, p.Width, tolerance)
			assert.InDelta(t, A4Width, p.Height, tolerance)
		}

		boxes, xobjects := readerPages(t, out.Bytes())
		require.Len(t, boxes, 2)
		assert.Equal(t, [4]float64{0, 0, A4Height, A4Width}, boxes[0])
		assert.Equal(t, []int{2, 2}, xobjects)
	})

	t.Run("three pages four up leave the last slot empty", func(t *testing.T) {
		doc := loadDoc(t, pagesOf(3, a4Portrait)...)

		out, err := ImposeNUp(doc, 4)
		require.NoError(t, err)
		require.Equal(t, 1, out.PageCount())
		assert.InDelta(t, A4Width, out.Pages()[0].Width, tolerance)
		assert.InDelta(t, A4Height, out.Pages()[0].Height, tolerance)

		_, xobjects := readerPages(t, out.Bytes())
		assert.Equal(t, []int{3}, xobjects)
	})

	t.Run("odd trailing page takes the first slot only", func(t *testing.T) {
		doc := loadDoc(t, sizeA, sizeB, sizeC)

		out, err := ImposeNUp(doc, 2)
		require.NoError(t, err)
		_, xobjects := readerPages(t, out.Bytes())
		assert.Equal(t, []int{2, 1}, xobjects)
	})

	t.Run("page count is the ceiling of pages over n", func(t *testing.T) {
		for _, pages := range []int{1, 2, 5, 8, 9} {
			for _, n := range []int{2, 4} {
				doc := loadDoc(t, pagesOf(pages, sizeA)...)
				out, err := ImposeNUp(doc, n)
				require.NoError(t, err)
				assert.Equal(t, (pages+n-1)/n, out.PageCount(), "pages=%d n=%d", pages, n)
			}
		}
	})

	t.Run("mixed orientations are imposed", func(t *testing.T) {
		doc := loadDoc(t, a4Landscape, a4Portrait, a4Landscape, a4Portrait)
		out, err := ImposeNUp(doc, 4)
		require.NoError(t, err)
		assert.Equal(t, 1, out.PageCount())
	})

	t.Run("imposed output can be imposed again", func(t *testing.T) {
		doc := loadDoc(t, pagesOf(4, a4Portrait)...)
		once, err := ImposeNUp(doc, 2)
		require.NoError(t, err)
		twice, err := ImposeNUp(once, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, twice.PageCount())
	})

	t.Run("unsupported factor", func(t *testing.T) {
		doc := loadDoc(t, sizeA)
		_, err := ImposeNUp(doc, 3)
		assert.Error(t, err)
	})
}

func TestMultiplyWholeDocument(t *testing.T) {
	t.Run("repeats the whole sequence", func(t *testing.T) {
		doc := loadDoc(t, sizeA, sizeB)

		out, err := MultiplyWholeDocument(doc, 3)
		require.NoError(t, err)
		assert.Equal(t, [][2]float64{sizeA, sizeB, sizeA, sizeB, sizeA, sizeB}, sizesOf(out))
	})

	t.Run("page limit carries the actual count", func(t *testing.T) {
		doc := loadDoc(t, pagesOf(34, sizeA)...)

		out, err := MultiplyWholeDocument(doc, 3)
		assert.Nil(t, out)
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodePageLimitExceeded))
		assert.Equal(t, 102, PageLimitPages(err))
	})

	t.Run("exactly at the limit is allowed", func(t *testing.T) {
		doc := loadDoc(t, pagesOf(25, sizeA)...)

		out, err := MultiplyWholeDocument(doc, 4)
		require.NoError(t, err)
		assert.Equal(t, MaxPages, out.PageCount())
	})
}

// cm operands are written with five decimals.
const cmTolerance = 1e-3

var cmOperator = regexp.MustCompile(`((?:-?[0-9.]+\s+){6})cm`)

// formExtent maps the corners of a w x h page through every cm operator of
// the form's content and returns the covered rectangle.
func formExtent(t *testing.T, content []byte, w, h float64) (minX, minY, maxX, maxY float64) {
	t.Helper()
	var matrices [][6]float64
	for _, m := range cmOperator.FindAllSubmatch(content, -1) {
		fields := strings.Fields(string(m[1]))
		require.Len(t, fields, 6)
		var mat [6]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			require.NoError(t, err)
			mat[i] = v
		}
		matrices = append(matrices, mat)
	}
	require.NotEmpty(t, matrices)

	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, c := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x, y := c[0], c[1]
		// The last cm applies first.
		for i := len(matrices) - 1; i >= 0; i-- {
			m := matrices[i]
			x, y = m[0]*x+m[2]*y+m[4], m[1]*x+m[3]*y+m[5]
		}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return minX, minY, maxX, maxY
}

func TestFormForPage_Rotation(t *testing.T) {
	tests := []struct {
		rotate        int
		width, height float64
	}{
		{0, A4Width, A4Height},
		{90, A4Height, A4Width},
		{180, A4Width, A4Height},
		{270, A4Height, A4Width},
		{-90, A4Height, A4Width},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.rotate), func(t *testing.T) {
			ctx, err := readContext(pdftest.BuildPages(pdftest.Page{Size: a4Portrait, Rotate: tt.rotate}))
			require.NoError(t, err)

			form, err := formForPage(ctx, 1)
			require.NoError(t, err)
			assert.InDelta(t, tt.width, form.width, cmTolerance)
			assert.InDelta(t, tt.height, form.height, cmTolerance)

			sd, _, err := ctx.DereferenceStreamDict(form.ref)
			require.NoError(t, err)
			require.NotNil(t, sd)

			minX, minY, maxX, maxY := formExtent(t, sd.Content, A4Width, A4Height)
			assert.InDelta(t, 0, minX, cmTolerance)
			assert.InDelta(t, 0, minY, cmTolerance)
			assert.InDelta(t, form.width, maxX, cmTolerance)
			assert.InDelta(t, form.height, maxY, cmTolerance)
		})
	}
}

func TestImposeNUp_RotatedPages(t *testing.T) {
	doc, err := LoadDocument(pdftest.BuildPages(
		pdftest.Page{Size: a4Portrait, Rotate: 90},
		pdftest.Page{Size: a4Portrait, Rotate: 270},
	))
	require.NoError(t, err)

	out, err := ImposeNUp(doc, 2)
	require.NoError(t, err)
	require.Equal(t, 1, out.PageCount())
	assert.Equal(t, [][2]float64{a4Landscape}, sizesOf(out))
}
