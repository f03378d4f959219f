package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/spf13/afero"
)

// PageJoiner concatenates recognized pages with the engine's join convention.
type PageJoiner interface {
	JoinPages(ctx context.Context, pages []domain.PageMarkdown) (string, error)
}

// MarkdownAggregator writes the pages of one run as a single markdown file plus
// the page images it references.
type MarkdownAggregator struct {
	fs     afero.Fs
	joiner PageJoiner
	logger domain.Logger
}

// NewMarkdownAggregator creates an aggregator writing to fs.
func NewMarkdownAggregator(fs afero.Fs, joiner PageJoiner, logger domain.Logger) *MarkdownAggregator {
	return &MarkdownAggregator{fs: fs, joiner: joiner, logger: logger}
}

// Aggregate joins pages in order, writes every page asset under targetDir and
// writes the markdown to targetDir/markdownName. When two pages declare the same
// asset path the later page wins.
func (a *MarkdownAggregator) Aggregate(ctx context.Context, pages []domain.PageMarkdown, targetDir, markdownName string) (*domain.AggregatedDocument, error) {
	if len(pages) == 0 {
		return nil, apperrors.NewNoContentError(domain.ErrNoPages.Error())
	}

	markdown, err := a.joiner.JoinPages(ctx, pages)
	if err != nil {
		return nil, apperrors.NewRecognitionError("failed to join pages", err)
	}

	if err := a.fs.MkdirAll(targetDir, 0o755); err != nil {
		return nil, apperrors.NewInternalError("failed to create output directory", err)
	}

	doc := &domain.AggregatedDocument{Text: markdown}
	written := make(map[string]bool)
	for _, page := range pages {
		rels := make([]string, 0, len(page.Assets))
		for rel := range page.Assets {
			rels = append(rels, rel)
		}
		sort.Strings(rels)

		for _, rel := range rels {
			full, ok := assetTarget(targetDir, rel)
			if !ok {
				a.logger.Warn("Skipping asset outside output directory", "path", rel)
				continue
			}
			if err := a.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return doc, apperrors.NewInternalError("failed to create asset directory", err)
			}
			if err := afero.WriteFile(a.fs, full, page.Assets[rel], 0o644); err != nil {
				return doc, apperrors.NewInternalError(fmt.Sprintf("failed to write asset %s", rel), err)
			}
			if !written[full] {
				written[full] = true
				doc.AssetPaths = append(doc.AssetPaths, full)
			}
		}
	}

	doc.MarkdownPath = filepath.Join(targetDir, markdownName)
	if err := afero.WriteFile(a.fs, doc.MarkdownPath, []byte(markdown), 0o644); err != nil {
		return doc, apperrors.NewInternalError("failed to write markdown", err)
	}

	for _, ref := range ScanImageRefs(markdown) {
		if hasScheme(ref) {
			continue
		}
		full := ref
		if !filepath.IsAbs(full) {
			full = filepath.Join(targetDir, ref)
		}
		if !written[full] {
			doc.DanglingRefs = append(doc.DanglingRefs, ref)
		}
	}
	if len(doc.DanglingRefs) > 0 {
		a.logger.Warn("Markdown references images that no page provided",
			"request_id", domain.RequestIDFrom(ctx), "refs", strings.Join(doc.DanglingRefs, ","))
	}

	a.logger.Debug("Markdown aggregated",
		"request_id", domain.RequestIDFrom(ctx), "pages", len(pages), "assets", len(doc.AssetPaths), "path", doc.MarkdownPath)
	return doc, nil
}

// RemoveMarkdown deletes the intermediate markdown file of doc.
func (a *MarkdownAggregator) RemoveMarkdown(doc *domain.AggregatedDocument) error {
	if doc == nil || doc.MarkdownPath == "" {
		return nil
	}
	if err := a.fs.Remove(doc.MarkdownPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PurgeAssets deletes every asset written for doc.
func (a *MarkdownAggregator) PurgeAssets(doc *domain.AggregatedDocument) error {
	if doc == nil {
		return nil
	}
	set := NewPendingDeletionSet()
	for _, p := range doc.AssetPaths {
		set.Add(p)
	}
	return set.Purge(a.fs)
}

func assetTarget(targetDir, rel string) (string, bool) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(targetDir, clean), true
}
