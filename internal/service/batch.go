package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// ErrBatchLocked is returned when another batch holds the directory.
var ErrBatchLocked = errors.New("directory is being processed by another batch")

// Runner runs the full pipeline over a set of inputs.
type Runner interface {
	Run(ctx context.Context, inputs []string, outputDir string) (*RunResult, error)
}

// BatchReport summarizes a batch over one directory.
type BatchReport struct {
	Saved  []string
	Failed map[string]error
}

// BatchProcessor runs every image of a directory through the pipeline on its
// own and stores <stem>.json next to the image.
type BatchProcessor struct {
	fs       afero.Fs
	runner   Runner
	workers  int
	lockRoot string
	logger   domain.Logger
}

// NewBatchProcessor creates a processor running at most workers images at once.
func NewBatchProcessor(fs afero.Fs, runner Runner, workers int, logger domain.Logger) *BatchProcessor {
	if workers < 1 {
		workers = 1
	}
	return &BatchProcessor{
		fs:       fs,
		runner:   runner,
		workers:  workers,
		lockRoot: os.TempDir(),
		logger:   logger,
	}
}

// ProcessDir processes the images of dir. Per-image failures are reported in
// the result, not returned.
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) (*BatchReport, error) {
	if !isDir(b.fs, dir) {
		return nil, apperrors.NewInputError(fmt.Sprintf("input dir not exists or not a directory: %s", dir))
	}
	images, err := ListImages(b.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) == 0 {
		return nil, apperrors.NewInputError(domain.ErrEmptyDirectory.Error())
	}

	unlock, err := b.lock(dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &BatchReport{Failed: map[string]error{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, img := range images {
		img := img
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			saved, err := b.processOne(gctx, img)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				b.logger.Error("Batch item failed", err, "path", img)
				report.Failed[img] = err
				return nil
			}
			report.Saved = append(report.Saved, saved)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	b.logger.Info("Batch finished", "dir", dir, "saved", len(report.Saved), "failed", len(report.Failed))
	return report, nil
}

// ProcessImage processes a single image and returns the saved JSON path.
func (b *BatchProcessor) ProcessImage(ctx context.Context, path string) (string, error) {
	info, err := b.fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", apperrors.NewInputError(fmt.Sprintf("image not exists or not a file: %s", path))
	}
	return b.processOne(ctx, path)
}

func (b *BatchProcessor) processOne(ctx context.Context, img string) (string, error) {
	workDir, err := afero.TempDir(b.fs, "", "examparse-batch-")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer func() {
		if err := b.fs.RemoveAll(workDir); err != nil {
			b.logger.Warn("Failed to remove work dir", "path", workDir, "error", err)
		}
	}()

	ctx = domain.WithRequestID(ctx, uuid.NewString())
	res, err := b.runner.Run(ctx, []string{img}, workDir)
	if err != nil {
		return "", err
	}

	out := filepath.Join(filepath.Dir(img), stem(img)+".json")
	if err := SaveResult(b.fs, out, res.JSON); err != nil {
		return "", err
	}
	b.logger.Info("Result saved", "path", out)
	return out, nil
}

// lock takes an exclusive, non-blocking lock keyed by the directory path.
func (b *BatchProcessor) lock(dir string) (func(), error) {
	fl := flock.New(b.lockPath(dir))

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrBatchLocked)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			b.logger.Warn("Failed to release batch lock", "dir", dir, "error", err)
		}
	}, nil
}

func (b *BatchProcessor) lockPath(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return filepath.Join(b.lockRoot, "examparse-"+uuid.NewSHA1(uuid.NameSpaceURL, []byte(abs)).String()+".lock")
}
