package service

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var renameExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true}

// RenameOptions controls the names produced by ImageRenamer.
type RenameOptions struct {
	Prefix string
	Start  int
	Digits int
}

// DefaultRenameOptions yields img_0001.png, img_0002.jpg, ...
func DefaultRenameOptions() RenameOptions {
	return RenameOptions{Prefix: "img", Start: 1, Digits: 4}
}

// ImageRenamer gives the images of a directory sequential names.
type ImageRenamer struct {
	fs     afero.Fs
	logger domain.Logger
}

// NewImageRenamer creates a renamer working on fs.
func NewImageRenamer(fs afero.Fs, logger domain.Logger) *ImageRenamer {
	return &ImageRenamer{fs: fs, logger: logger}
}

type renameStep struct {
	from, tmp, to string
}

// Rename renames the images of dir in lexicographic order to
// <prefix>_<index><ext> and returns how many images it found. Targets that
// already hold another image of the set are moved out of the way first.
func (r *ImageRenamer) Rename(dir string, opts RenameOptions) (int, error) {
	if !isDir(r.fs, dir) {
		return 0, apperrors.NewInputError(fmt.Sprintf("not a directory: %s", dir))
	}
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && renameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var steps []renameStep
	for i, name := range names {
		target := fmt.Sprintf("%s_%0*d%s", opts.Prefix, opts.Digits, opts.Start+i, filepath.Ext(name))
		if target == name {
			continue
		}
		steps = append(steps, renameStep{
			from: filepath.Join(dir, name),
			tmp:  filepath.Join(dir, ".rename-"+uuid.NewString()),
			to:   filepath.Join(dir, target),
		})
	}

	for i, s := range steps {
		if err := r.fs.Rename(s.from, s.tmp); err != nil {
			r.rollback(steps[:i])
			return 0, fmt.Errorf("failed to move %s aside: %w", s.from, err)
		}
	}
	for _, s := range steps {
		if err := r.fs.Rename(s.tmp, s.to); err != nil {
			return 0, fmt.Errorf("failed to rename %s to %s: %w", s.from, s.to, err)
		}
	}

	r.logger.Info("Images renamed", "dir", dir, "found", len(names), "renamed", len(steps))
	return len(names), nil
}

func (r *ImageRenamer) rollback(done []renameStep) {
	for _, s := range done {
		if err := r.fs.Rename(s.tmp, s.from); err != nil {
			r.logger.Error("Failed to restore image name", err, "path", s.from)
		}
	}
}
