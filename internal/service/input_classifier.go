package service

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/spf13/afero"
)

// ClassifyInputs turns raw input paths into classified items. Paths that do not
// exist and files of unsupported type are reported as warnings and skipped.
func ClassifyInputs(fs afero.Fs, paths []string) ([]domain.InputItem, []string, error) {
	if len(paths) == 0 {
		return nil, nil, apperrors.NewInputError(domain.ErrNoInputs.Error())
	}

	var items []domain.InputItem
	var warnings []string
	pdfs := 0
	for _, p := range paths {
		info, err := fs.Stat(p)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("input not found: %s", p))
			continue
		}

		var item domain.InputItem
		switch {
		case info.IsDir():
			images, err := ListImages(fs, p)
			if err != nil {
				return nil, warnings, apperrors.NewInputError("failed to read directory", p)
			}
			item = domain.InputItem{Path: p, Kind: domain.InputDirectory, Images: images}
		case domain.IsPDFPath(p):
			pdfs++
			item = domain.InputItem{Path: p, Kind: domain.InputPDF}
		case domain.IsImagePath(p):
			item = domain.InputItem{Path: p, Kind: domain.InputImage}
		default:
			warnings = append(warnings, fmt.Sprintf("unsupported file type: %s", filepath.Base(p)))
			continue
		}

		if err := item.Validate(); err != nil {
			return nil, warnings, apperrors.NewInputError(err.Error(), p)
		}
		items = append(items, item)
	}

	if pdfs > 1 {
		return nil, warnings, apperrors.NewInputError(domain.ErrTooManyPDFs.Error())
	}
	if len(items) == 0 {
		return nil, warnings, apperrors.NewInputError(domain.ErrNoUsableInputs.Error())
	}
	return items, warnings, nil
}

// ListImages returns the page images directly inside dir in lexicographic order.
func ListImages(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() || !domain.IsImagePath(e.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, e.Name()))
	}
	sort.Strings(images)
	return images, nil
}

// MarkdownName picks the file name of the aggregated markdown for a run of
// inputCount raw inputs that classified into items.
func MarkdownName(inputCount int, items []domain.InputItem) string {
	if inputCount > 1 || len(items) != 1 {
		return "combined.md"
	}
	item := items[0]
	if item.Kind == domain.InputDirectory {
		if len(item.Images) > 1 {
			return filepath.Base(filepath.Clean(item.Path)) + ".md"
		}
		return stem(item.Images[0]) + ".md"
	}
	return stem(item.Path) + ".md"
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
