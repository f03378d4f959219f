package service

import (
	"context"
	"time"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/spf13/afero"
)

// Recognizer turns classified inputs into pages and joins them.
type Recognizer interface {
	PageJoiner
	Recognize(ctx context.Context, item domain.InputItem) ([]domain.PageMarkdown, []string, error)
	// Release drops pages that will not be joined.
	Release(ctx context.Context, pages []domain.PageMarkdown)
}

// Extractor turns markdown into a candidate Question array.
type Extractor interface {
	Extract(ctx context.Context, markdown string) (string, error)
}

// RunResult is the output of a successful pipeline run.
type RunResult struct {
	JSON     string
	Warnings []string
}

// Pipeline runs inputs through recognition, aggregation, extraction and asset
// inlining. Every failure is reported as a *domain.StageError.
type Pipeline struct {
	fs         afero.Fs
	recognizer Recognizer
	aggregator *MarkdownAggregator
	extractor  Extractor
	normalizer *SchemaNormalizer
	inliner    *AssetInliner
	logger     domain.Logger
}

// NewPipeline creates a pipeline working on fs.
func NewPipeline(fs afero.Fs, recognizer Recognizer, extractor Extractor, normalizer *SchemaNormalizer, logger domain.Logger) *Pipeline {
	return &Pipeline{
		fs:         fs,
		recognizer: recognizer,
		aggregator: NewMarkdownAggregator(fs, recognizer, logger),
		extractor:  extractor,
		normalizer: normalizer,
		inliner:    NewAssetInliner(fs, logger),
		logger:     logger,
	}
}

// Run processes inputs with outputDir as the working directory for markdown and
// page assets. The markdown file never survives the run.
func (p *Pipeline) Run(ctx context.Context, inputs []string, outputDir string) (*RunResult, error) {
	start := time.Now()
	reqID := domain.RequestIDFrom(ctx)

	items, warnings, err := ClassifyInputs(p.fs, inputs)
	for _, w := range warnings {
		p.logger.Warn("Input skipped", "request_id", reqID, "reason", w)
	}
	if err != nil {
		return nil, p.fail(ctx, domain.StageClassified, err)
	}
	p.transition(ctx, domain.StageClassified, "items", len(items))

	var pages []domain.PageMarkdown
	for _, item := range items {
		got, itemWarnings, err := p.recognizer.Recognize(ctx, item)
		warnings = append(warnings, itemWarnings...)
		if err != nil {
			p.recognizer.Release(ctx, pages)
			return nil, p.fail(ctx, domain.StageRecognized, err)
		}
		pages = append(pages, got...)
	}
	if len(pages) == 0 {
		return nil, p.fail(ctx, domain.StageRecognized, apperrors.NewNoContentError(domain.ErrNoPages.Error()))
	}
	p.transition(ctx, domain.StageRecognized, "pages", len(pages))

	doc, err := p.aggregator.Aggregate(ctx, pages, outputDir, MarkdownName(len(inputs), items))
	if err != nil {
		// Release tolerates pages the engine already joined.
		p.recognizer.Release(ctx, pages)
		p.discard(ctx, doc)
		return nil, p.fail(ctx, domain.StageAggregated, err)
	}
	p.transition(ctx, domain.StageAggregated, "markdown", doc.MarkdownPath, "assets", len(doc.AssetPaths))

	candidate, err := p.extractor.Extract(ctx, doc.Text)
	if rmErr := p.aggregator.RemoveMarkdown(doc); rmErr != nil {
		p.logger.Error("Failed to remove intermediate markdown", rmErr, "request_id", reqID, "path", doc.MarkdownPath)
	}
	if err != nil {
		p.discard(ctx, doc)
		return nil, p.fail(ctx, domain.StageExtracted, err)
	}
	p.transition(ctx, domain.StageExtracted, "chars", len(candidate))

	if p.normalizer != nil {
		candidate = p.normalizer.Normalize(candidate)
	}
	res := p.inliner.Inline(candidate, outputDir)
	p.transition(ctx, domain.StageInlined, "structured", res.Structured, "assets_inlined", res.Pending.Len())

	if err := res.Pending.Purge(p.fs); err != nil {
		p.logger.Error("Failed to remove inlined assets", err, "request_id", reqID)
	}
	p.transition(ctx, domain.StageCleanedUp, "duration_ms", time.Since(start).Milliseconds())

	return &RunResult{JSON: res.JSON, Warnings: warnings}, nil
}

// discard removes everything aggregation wrote for a run that will not finish.
func (p *Pipeline) discard(ctx context.Context, doc *domain.AggregatedDocument) {
	if doc == nil {
		return
	}
	if err := p.aggregator.RemoveMarkdown(doc); err != nil {
		p.logger.Error("Failed to remove intermediate markdown", err, "request_id", domain.RequestIDFrom(ctx))
	}
	if err := p.aggregator.PurgeAssets(doc); err != nil {
		p.logger.Error("Failed to remove page assets", err, "request_id", domain.RequestIDFrom(ctx))
	}
}

func (p *Pipeline) transition(ctx context.Context, stage domain.Stage, fields ...interface{}) {
	fields = append([]interface{}{"request_id", domain.RequestIDFrom(ctx), "stage", string(stage)}, fields...)
	p.logger.Info("Pipeline stage reached", fields...)
}

func (p *Pipeline) fail(ctx context.Context, stage domain.Stage, err error) error {
	p.logger.Error("Pipeline failed", err, "request_id", domain.RequestIDFrom(ctx), "stage", string(stage))
	return &domain.StageError{Stage: stage, Err: err}
}
