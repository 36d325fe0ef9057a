package layout

// Options are the print settings applied by one pipeline run.
type Options struct {
	// PagesPerSheet is the N-up factor: 1, 2 or 4.
	PagesPerSheet int
	// CopiesPerPage repeats every source page before imposition.
	CopiesPerPage int
	Grayscale     bool
	// TotalCopies repeats the finished document.
	TotalCopies int
	// SourcePaths, when set, rebuild the document from the original images
	// instead of the cached bytes.
	SourcePaths []string
	// FileName is only used to infer the source format.
	FileName string
}

// DefaultOptions returns single-sided, one-up, color, one copy.
func DefaultOptions() Options {
	return Options{
		PagesPerSheet: 1,
		CopiesPerPage: 1,
		TotalCopies:   1,
	}
}

// Normalize clamps out-of-range values. Unknown N-up factors fall back to
// no imposition.
func (o Options) Normalize() Options {
	n := o
	if n.PagesPerSheet != 2 && n.PagesPerSheet != 4 {
		n.PagesPerSheet = 1
	}
	if n.CopiesPerPage < 1 {
		n.CopiesPerPage = 1
	}
	if n.TotalCopies < 1 {
		n.TotalCopies = 1
	}
	if len(o.SourcePaths) > 0 {
		n.SourcePaths = append([]string(nil), o.SourcePaths...)
	}
	return n
}

// FromSource reports whether the document is rebuilt from original images.
func (o Options) FromSource() bool {
	return len(o.SourcePaths) > 0
}
