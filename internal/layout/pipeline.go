package layout

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ProcessorConfig wires the external capabilities used by the pipeline.
// Any of them may be nil.
type ProcessorConfig struct {
	Office     OfficeConverter
	Rasterizer Rasterizer
	Transcoder ImageTranscoder
	Logger     *zap.Logger
}

// Processor runs the print pipeline. It holds no per-request state and is
// safe for concurrent use.
type Processor struct {
	converter  *Converter
	rasterizer Rasterizer
	logger     *zap.Logger
}

// Result is the print-ready output of one pipeline run.
type Result struct {
	PDF   []byte
	Pages int
}

// Intake is what the first receipt of a file produces.
type Intake struct {
	PDF     []byte
	Preview []byte
	Pages   int
}

// NewProcessor creates a Processor.
func NewProcessor(cfg *ProcessorConfig) *Processor {
	if cfg == nil {
		cfg = &ProcessorConfig{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		converter:  NewConverter(cfg.Office, cfg.Transcoder, logger),
		rasterizer: cfg.Rasterizer,
		logger:     logger,
	}
}

// ValidateAndPreview converts a freshly received file, enforces the page
// ceiling and renders a thumbnail of its first page.
func (p *Processor) ValidateAndPreview(ctx context.Context, data []byte, fileName string) (*Intake, error) {
	doc, err := p.converter.Convert(ctx, data, fileName, false, nil)
	if err != nil {
		return nil, err
	}
	return p.intake(ctx, doc)
}

// MergeImages builds one document out of several images, one page each.
func (p *Processor) MergeImages(ctx context.Context, paths []string, grayscale bool) (*Intake, error) {
	doc, err := p.converter.Convert(ctx, nil, "", grayscale, paths)
	if err != nil {
		return nil, err
	}
	return p.intake(ctx, doc)
}

func (p *Processor) intake(ctx context.Context, doc *Document) (*Intake, error) {
	if err := checkPageLimit(doc.PageCount()); err != nil {
		p.logger.Info("document rejected", zap.Int("pages", doc.PageCount()))
		return nil, err
	}
	data := doc.Bytes()
	return &Intake{
		PDF:     data,
		Preview: p.Preview(ctx, data),
		Pages:   doc.PageCount(),
	}, nil
}

// ApplyOptions converts data and applies opts. Failures never return
// partial output.
func (p *Processor) ApplyOptions(ctx context.Context, data []byte, opts Options) (*Result, error) {
	opts = opts.Normalize()
	doc, err := p.converter.Convert(ctx, data, opts.FileName, opts.Grayscale, opts.SourcePaths)
	if err != nil {
		return nil, err
	}
	return p.Apply(ctx, doc, opts)
}

// Apply runs every stage after conversion on an already loaded document:
// duplication, imposition, page check, grayscale, whole-document copies.
func (p *Processor) Apply(ctx context.Context, doc *Document, opts Options) (*Result, error) {
	opts = opts.Normalize()
	start := time.Now()

	// Reject before building an oversized intermediate document.
	if err := checkPageLimit(SheetsFor(doc.PageCount()*opts.CopiesPerPage, opts.PagesPerSheet)); err != nil {
		p.logger.Info("page limit exceeded", zap.Int("pages", PageLimitPages(err)), zap.String("stage", "duplicate"))
		return nil, err
	}

	var err error
	if opts.CopiesPerPage > 1 {
		if doc, err = Duplicate(doc, opts.CopiesPerPage); err != nil {
			return nil, err
		}
	}

	if opts.PagesPerSheet > 1 {
		if doc, err = ImposeNUp(doc, opts.PagesPerSheet); err != nil {
			return nil, err
		}
	}

	if err := checkPageLimit(doc.PageCount()); err != nil {
		p.logger.Info("page limit exceeded", zap.Int("pages", doc.PageCount()), zap.String("stage", "impose"))
		return nil, err
	}

	// Images rebuilt from source were already desaturated by the converter.
	if opts.Grayscale && !opts.FromSource() {
		doc = p.grayscale(ctx, doc)
	}

	if opts.TotalCopies > 1 {
		if doc, err = MultiplyWholeDocument(doc, opts.TotalCopies); err != nil {
			if IsCode(err, ErrCodePageLimitExceeded) {
				p.logger.Info("page limit exceeded", zap.Int("pages", PageLimitPages(err)), zap.String("stage", "copies"))
			}
			return nil, err
		}
	}

	p.logger.Debug("pipeline finished",
		zap.Int("pages", doc.PageCount()),
		zap.Int("pages_per_sheet", opts.PagesPerSheet),
		zap.Int("copies_per_page", opts.CopiesPerPage),
		zap.Int("total_copies", opts.TotalCopies),
		zap.Bool("grayscale", opts.Grayscale),
		zap.Duration("duration", time.Since(start)))

	return &Result{
		PDF:   doc.Bytes(),
		Pages: doc.PageCount(),
	}, nil
}

// grayscale desaturates the whole document. Failure keeps the color
// document: printing in color beats not printing.
func (p *Processor) grayscale(ctx context.Context, doc *Document) *Document {
	if p.rasterizer == nil {
		p.logger.Warn("grayscale requested but no rasterizer is configured")
		return doc
	}

	out, err := p.rasterizer.Grayscale(ctx, doc.Bytes())
	if err != nil {
		p.logger.Warn("grayscale pass failed, keeping color output",
			zap.Error(NewError(ErrCodeRenderingDegraded, "grayscale conversion failed", err)))
		return doc
	}

	gray, err := LoadDocument(out)
	if err != nil {
		p.logger.Warn("grayscale output unreadable, keeping color output", zap.Error(err))
		return doc
	}
	if gray.PageCount() != doc.PageCount() {
		p.logger.Warn("grayscale output changed page count, keeping color output",
			zap.Int("expected", doc.PageCount()),
			zap.Int("actual", gray.PageCount()))
		return doc
	}
	return gray
}
