package layout

// MultiplyWholeDocument appends copies full repetitions of the document:
// A,B becomes A,B,A,B for two copies. Results above MaxPages fail with
// PAGE_LIMIT_EXCEEDED and no document.
func MultiplyWholeDocument(doc *Document, copies int) (*Document, error) {
	if copies <= 1 {
		return doc.clone(), nil
	}

	if err := checkPageLimit(doc.PageCount() * copies); err != nil {
		return nil, err
	}

	segments := make([][]byte, copies)
	for i := range segments {
		segments[i] = doc.data
	}

	merged, err := mergeRaw(segments)
	if err != nil {
		return nil, err
	}

	out, err := LoadDocument(merged)
	if err != nil {
		return nil, err
	}
	if err := checkPageLimit(out.PageCount()); err != nil {
		return nil, err
	}
	return out, nil
}
