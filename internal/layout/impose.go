package layout

import (
	"bytes"
	"fmt"

	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Duplicate repeats every page copies times before moving on to the next
// one: A,B becomes A,A,B,B. The page ceiling is not enforced here.
func Duplicate(doc *Document, copies int) (*Document, error) {
	if copies <= 1 {
		return doc.clone(), nil
	}

	ctx, err := readContext(doc.data)
	if err != nil {
		return nil, err
	}

	segments := make([][]byte, 0, ctx.PageCount*copies)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		page, err := extractPage(ctx, pageNr)
		if err != nil {
			return nil, err
		}
		for i := 0; i < copies; i++ {
			segments = append(segments, page)
		}
	}

	merged, err := mergeRaw(segments)
	if err != nil {
		return nil, err
	}
	return LoadDocument(merged)
}

// ImposeNUp lays out n source pages per A4 sheet, n being 2 or 4. A trailing
// partial group only fills the slots it has pages for.
func ImposeNUp(doc *Document, n int) (*Document, error) {
	grid, ok := GridFor(n)
	if !ok {
		return nil, fmt.Errorf("unsupported pages per sheet: %d", n)
	}

	ctx, err := readContext(doc.data)
	if err != nil {
		return nil, err
	}

	// Every source page must be captured before the first sheet overwrites
	// its page dictionary.
	forms := make([]pageForm, ctx.PageCount)
	for i := range forms {
		form, err := formForPage(ctx, i+1)
		if err != nil {
			return nil, err
		}
		forms[i] = form
	}

	sheets := SheetsFor(len(forms), n)
	pageNrs := make([]int, sheets)
	for s := 0; s < sheets; s++ {
		end := min((s+1)*n, len(forms))
		if err := composeSheet(ctx, s+1, grid, forms[s*n:end]); err != nil {
			return nil, err
		}
		pageNrs[s] = s + 1
	}

	ctxOut, err := pdfcpu.ExtractPages(ctx, pageNrs, false)
	if err != nil {
		return nil, err
	}
	data, err := writeContext(ctxOut)
	if err != nil {
		return nil, err
	}
	return LoadDocument(data)
}

// pageForm is a source page wrapped as a Form XObject.
type pageForm struct {
	ref    types.IndirectRef
	width  float64
	height float64
}

func formForPage(ctx *model.Context, pageNr int) (pageForm, error) {
	pageDict, _, inh, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return pageForm{}, err
	}
	if pageDict == nil {
		return pageForm{}, fmt.Errorf("page %d not found", pageNr)
	}

	box, err := visibleBox(inh, pageNr)
	if err != nil {
		return pageForm{}, err
	}

	var content []byte
	if _, found := pageDict.Find("Contents"); found {
		content, err = ctx.PageContent(pageDict, pageNr)
		if err != nil {
			return pageForm{}, err
		}
	}

	// The form is sized like the page as displayed, and the rotation
	// translation expects those rotated dimensions.
	w, h := box.Width(), box.Height()
	if quarterTurn(inh.Rotate) {
		w, h = h, w
	}

	var buf bytes.Buffer
	buf.WriteString("q ")
	if rot := normalizeRotation(inh.Rotate); rot != 0 {
		buf.Write(model.ContentBytesForPageRotation(rot, w, h))
		buf.WriteString(" ")
	}
	fmt.Fprintf(&buf, "1 0 0 1 %.5f %.5f cm ", -box.LL.X, -box.LL.Y)
	buf.Write(content)
	buf.WriteString(" Q")

	sd, err := ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return pageForm{}, err
	}
	sd.InsertName("Type", "XObject")
	sd.InsertName("Subtype", "Form")
	sd.Insert("BBox", types.RectForWidthAndHeight(0, 0, w, h).Array())
	if res, found := pageDict.Find("Resources"); found {
		sd.Insert("Resources", res)
	} else if inh.Resources != nil {
		sd.Insert("Resources", inh.Resources)
	}
	if err := sd.Encode(); err != nil {
		return pageForm{}, err
	}

	indRef, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return pageForm{}, err
	}

	return pageForm{ref: *indRef, width: w, height: h}, nil
}

// composeSheet turns page pageNr into an imposed sheet drawing forms into
// the grid slots in order.
func composeSheet(ctx *model.Context, pageNr int, grid Grid, forms []pageForm) error {
	pageDict, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if pageDict == nil {
		return fmt.Errorf("page %d not found", pageNr)
	}

	xobjects := types.Dict{}
	var buf bytes.Buffer
	for i, form := range forms {
		name := fmt.Sprintf("Pg%d", i)
		xobjects.Insert(name, form.ref)

		m := PlaceInSlot(form.width, form.height, grid.Slots[i]).Matrix
		fmt.Fprintf(&buf, "q %.5f %.5f %.5f %.5f %.5f %.5f cm /%s Do Q ",
			m[0], m[1], m[2], m[3], m[4], m[5], name)
	}

	sd, err := ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return err
	}
	indRef, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}

	box := types.RectForWidthAndHeight(0, 0, grid.Width, grid.Height)
	pageDict["MediaBox"] = box.Array()
	pageDict["CropBox"] = box.Array()
	pageDict["Rotate"] = types.Integer(0)
	pageDict["Resources"] = types.Dict{"XObject": xobjects}
	pageDict["Contents"] = *indRef

	// Annotations and boxes belong to the page that used to live here.
	for _, key := range []string{"Annots", "TrimBox", "BleedBox", "ArtBox", "Thumb", "StructParents", "Group"} {
		pageDict.Delete(key)
	}

	return nil
}

func extractPage(ctx *model.Context, pageNr int) ([]byte, error) {
	ctxPage, err := pdfcpu.ExtractPages(ctx, []int{pageNr}, false)
	if err != nil {
		return nil, err
	}
	return writeContext(ctxPage)
}
