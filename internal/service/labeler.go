package service

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"exam-parser/internal/domain"
	"exam-parser/internal/jsontree"
	apperrors "exam-parser/pkg/errors"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

var gradeByDir = map[string]string{
	"七年级": "7",
	"八年级": "8",
	"九年级": "9",
}

var (
	chapterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^第.+单元.*`),
		regexp.MustCompile(`^第.+章.*`),
		regexp.MustCompile(`(?i)^Unit\s+.+`),
	}
	sectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d+\s*.*`),
		regexp.MustCompile(`(?i)^Section\s+.+`),
	}
	subjects = map[string]bool{"数学": true, "语文": true, "英语": true, "物理": true, "化学": true, "生物": true}
)

// PathMetadata is the catalogue position of a question file, read from its
// directory names.
type PathMetadata struct {
	Grade   string
	Volume  string
	Chapter string
	Section string
	Subject string
}

func (m PathMetadata) fields() [][2]string {
	return [][2]string{
		{domain.KeyGrade, m.Grade},
		{domain.KeyVolume, m.Volume},
		{domain.KeyChapter, m.Chapter},
		{domain.KeySection, m.Section},
		{domain.KeySubject, m.Subject},
	}
}

// MetadataFromPath derives metadata from the directory parts of path. The file
// name is ignored; for every part the first matching rule applies and deeper
// parts win.
func MetadataFromPath(path string) PathMetadata {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	var meta PathMetadata
	for _, part := range strings.Split(filepath.Dir(path), string(os.PathSeparator)) {
		switch {
		case part == "":
		case gradeByDir[part] != "":
			meta.Grade = gradeByDir[part]
		case part == "上册" || part == "下册":
			meta.Volume = part
		case matchesAny(chapterPatterns, part):
			meta.Chapter = part
		case matchesAny(sectionPatterns, part):
			meta.Section = part
		case subjects[part]:
			meta.Subject = part
		}
	}
	return meta
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// MetadataLabeler fills catalogue fields of saved question files.
type MetadataLabeler struct {
	fs     afero.Fs
	logger domain.Logger
}

// NewMetadataLabeler creates a labeler working on fs.
func NewMetadataLabeler(fs afero.Fs, logger domain.Logger) *MetadataLabeler {
	return &MetadataLabeler{fs: fs, logger: logger}
}

// LabelFile overwrites the non-empty path metadata on every object of the JSON
// array stored at path.
func (l *MetadataLabeler) LabelFile(path string) error {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	root, err := jsontree.Parse(data)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s is not valid JSON", path), err.Error())
	}
	if root.Kind() != jsontree.List {
		return apperrors.NewValidationError(fmt.Sprintf("%s must be a JSON array", path), domain.ErrNotJSONArray.Error())
	}

	meta := MetadataFromPath(path)
	for _, item := range root.Items() {
		if item.Kind() != jsontree.Object {
			continue
		}
		for _, kv := range meta.fields() {
			if kv[1] != "" {
				item.Set(kv[0], jsontree.NewString(kv[1]))
			}
		}
	}

	out, err := jsontree.MarshalIndent(root, "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := afero.WriteFile(l.fs, path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	l.logger.Info("Metadata labeled", "path", path, "grade", meta.Grade, "chapter", meta.Chapter, "section", meta.Section)
	return nil
}

// LabelPath labels one .json file or every .json file below a directory. It
// keeps going after a failed file and returns the number labeled.
func (l *MetadataLabeler) LabelPath(path string) (int, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("path not found: %s", path))
	}
	if !info.IsDir() {
		if !isJSONFile(path) {
			return 0, apperrors.NewInputError(fmt.Sprintf("not a JSON file: %s", path))
		}
		if err := l.LabelFile(path); err != nil {
			return 0, err
		}
		return 1, nil
	}

	var result *multierror.Error
	count := 0
	walkErr := afero.Walk(l.fs, path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !isJSONFile(p) {
			return nil
		}
		if err := l.LabelFile(p); err != nil {
			l.logger.Error("Failed to label file", err, "path", p)
			result = multierror.Append(result, err)
			return nil
		}
		count++
		return nil
	})
	if walkErr != nil {
		result = multierror.Append(result, walkErr)
	}
	return count, result.ErrorOrNil()
}

func isJSONFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
