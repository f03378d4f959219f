package domain

import (
	"path/filepath"
	"strings"
)

// InputKind tags what an input path points at.
type InputKind string

const (
	InputImage     InputKind = "image"
	InputPDF       InputKind = "pdf"
	InputDirectory InputKind = "directory"
)

// ImageExtensions are the page image formats accepted as input.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImagePath reports whether the file extension is an accepted page image format.
func IsImagePath(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsPDFPath reports whether the file extension is .pdf.
func IsPDFPath(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

// InputItem is one classified input of a pipeline run.
type InputItem struct {
	Path string    `json:"path"`
	Kind InputKind `json:"kind"`
	// Images holds the sorted, non-recursive image listing of a directory input.
	Images []string `json:"images,omitempty"`
}

// Validate checks the invariants of a classified input.
func (i *InputItem) Validate() error {
	if i.Path == "" {
		return &ValidationError{Field: "path", Message: "input path is required"}
	}
	switch i.Kind {
	case InputImage, InputPDF:
		if len(i.Images) > 0 {
			return &ValidationError{Field: "images", Message: "only directory inputs carry an image listing"}
		}
	case InputDirectory:
		if len(i.Images) == 0 {
			return &ValidationError{Field: "images", Message: ErrEmptyDirectory.Error()}
		}
	default:
		return &ValidationError{Field: "kind", Message: "unknown input kind " + string(i.Kind)}
	}
	return nil
}

// PageMarkdown is the markdown bundle recognized for one page.
type PageMarkdown struct {
	Text string
	// Assets maps a relative path referenced by Text to the page image bytes.
	Assets map[string][]byte
	// Ref is an engine-side page handle, empty for engines that join plain text.
	Ref string
}

// AggregatedDocument is the concatenated markdown of one run and the assets written for it.
type AggregatedDocument struct {
	Text         string
	MarkdownPath string
	AssetPaths   []string
	// DanglingRefs lists local image references in Text that no page asset provides.
	DanglingRefs []string
}
