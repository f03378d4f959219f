package service

import (
	"context"
	"fmt"
	"path/filepath"

	"exam-parser/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// RunInWorkDir runs inputs inside a fresh root/<run id> directory and removes it
// afterwards, so concurrent runs sharing root never see each other's assets.
func RunInWorkDir(ctx context.Context, fs afero.Fs, runner Runner, inputs []string, root string, logger domain.Logger) (*RunResult, error) {
	runID := domain.RequestIDFrom(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = domain.WithRequestID(ctx, runID)
	}
	workDir := filepath.Join(root, runID)
	defer func() {
		if err := fs.RemoveAll(workDir); err != nil {
			logger.Warn("Failed to remove work dir", "path", workDir, "error", err)
		}
	}()
	return runner.Run(ctx, inputs, workDir)
}

// ResultPath returns where the CLI stores the JSON of a run over inputs:
// combined.json in the first directory input (or the first input's parent) for
// several inputs, <dir>/<dirname>.json for one directory and <stem>.json next
// to one file.
func ResultPath(fs afero.Fs, inputs []string) string {
	if len(inputs) == 0 {
		return ""
	}
	if len(inputs) > 1 {
		for _, p := range inputs {
			if isDir(fs, p) {
				return filepath.Join(p, "combined.json")
			}
		}
		return filepath.Join(filepath.Dir(inputs[0]), "combined.json")
	}

	p := filepath.Clean(inputs[0])
	if isDir(fs, p) {
		return filepath.Join(p, filepath.Base(p)+".json")
	}
	return filepath.Join(filepath.Dir(p), stem(p)+".json")
}

// SaveResult writes data to path, creating parent directories.
func SaveResult(fs afero.Fs, path, data string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func isDir(fs afero.Fs, path string) bool {
	ok, err := afero.IsDir(fs, path)
	return err == nil && ok
}
