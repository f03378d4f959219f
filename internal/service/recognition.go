package service

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"sync/atomic"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// EngineFactory builds the recognition engine. It is called at most once per
// successful initialization.
type EngineFactory func(ctx context.Context) (domain.RecognitionEngine, error)

// ConcurrencySafe is implemented by engines that accept parallel calls.
type ConcurrencySafe interface {
	ConcurrencySafe() bool
}

// Liveness is implemented by engines backed by a process that can die.
type Liveness interface {
	Alive() bool
}

type engineHandle struct {
	engine    domain.RecognitionEngine
	serialize bool
}

// RecognitionAdapter owns the process-wide recognition engine and turns inputs
// into ordered markdown pages.
type RecognitionAdapter struct {
	factory EngineFactory
	fs      afero.Fs
	logger  domain.Logger

	handle atomic.Pointer[engineHandle]
	initMu sync.Mutex
	callMu sync.Mutex
}

// NewRecognitionAdapter creates an adapter. The engine is built on first use.
func NewRecognitionAdapter(factory EngineFactory, fs afero.Fs, logger domain.Logger) *RecognitionAdapter {
	return &RecognitionAdapter{factory: factory, fs: fs, logger: logger}
}

// Warmup builds the engine ahead of the first request.
func (r *RecognitionAdapter) Warmup(ctx context.Context) error {
	_, err := r.engine(ctx)
	return err
}

func (r *RecognitionAdapter) engine(ctx context.Context) (*engineHandle, error) {
	if h := r.handle.Load(); h != nil {
		return h, nil
	}
	r.initMu.Lock()
	defer r.initMu.Unlock()
	if h := r.handle.Load(); h != nil {
		return h, nil
	}

	r.logger.Info("Initializing recognition engine")
	e, err := r.factory(ctx)
	if err != nil {
		return nil, apperrors.NewRecognitionError("failed to initialize recognition engine",
			fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err))
	}
	h := &engineHandle{engine: e, serialize: true}
	if cs, ok := e.(ConcurrencySafe); ok && cs.ConcurrencySafe() {
		h.serialize = false
	}
	r.handle.Store(h)
	r.logger.Info("Recognition engine ready", "serialized", h.serialize)
	return h, nil
}

// Recognize returns the pages of one classified input in order. Images that
// cannot be decoded are skipped and reported as warnings.
func (r *RecognitionAdapter) Recognize(ctx context.Context, item domain.InputItem) ([]domain.PageMarkdown, []string, error) {
	h, err := r.engine(ctx)
	if err != nil {
		return nil, nil, err
	}

	switch item.Kind {
	case domain.InputPDF:
		pages, err := r.predict(ctx, h, domain.EngineInput{Path: item.Path, Kind: domain.InputPDF})
		return pages, nil, err
	case domain.InputImage:
		return r.recognizeImages(ctx, h, []string{item.Path})
	case domain.InputDirectory:
		return r.recognizeImages(ctx, h, item.Images)
	}
	return nil, nil, apperrors.NewInputError(fmt.Sprintf("unknown input kind %s", item.Kind), item.Path)
}

func (r *RecognitionAdapter) recognizeImages(ctx context.Context, h *engineHandle, paths []string) ([]domain.PageMarkdown, []string, error) {
	var pages []domain.PageMarkdown
	var warnings []string
	for _, p := range paths {
		if err := r.checkImage(p); err != nil {
			r.logger.Warn("Skipping unreadable image", "path", p, "error", err)
			warnings = append(warnings, fmt.Sprintf("unreadable image skipped: %s", p))
			continue
		}
		got, err := r.predict(ctx, h, domain.EngineInput{Path: p, Kind: domain.InputImage})
		if err != nil {
			r.release(ctx, h, pages)
			return nil, warnings, err
		}
		pages = append(pages, got...)
	}
	return pages, warnings, nil
}

func (r *RecognitionAdapter) checkImage(path string) error {
	f, err := r.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, _, err = image.DecodeConfig(f)
	return err
}

func (r *RecognitionAdapter) predict(ctx context.Context, h *engineHandle, in domain.EngineInput) ([]domain.PageMarkdown, error) {
	if h.serialize {
		r.callMu.Lock()
		defer r.callMu.Unlock()
	}
	pages, err := h.engine.Predict(ctx, in)
	if err != nil {
		r.dropIfDead(h)
		return nil, apperrors.NewRecognitionError(fmt.Sprintf("recognition failed for %s", in.Path), err)
	}
	r.logger.Debug("Recognized input", "path", in.Path, "pages", len(pages))
	return pages, nil
}

// JoinPages concatenates pages with the engine's join convention.
func (r *RecognitionAdapter) JoinPages(ctx context.Context, pages []domain.PageMarkdown) (string, error) {
	h, err := r.engine(ctx)
	if err != nil {
		return "", err
	}
	if h.serialize {
		r.callMu.Lock()
		defer r.callMu.Unlock()
	}
	text, err := h.engine.JoinPages(ctx, pages)
	if err != nil {
		r.dropIfDead(h)
	}
	return text, err
}

// Release drops engine-side state of pages a failed run will never join.
// Failures are logged.
func (r *RecognitionAdapter) Release(ctx context.Context, pages []domain.PageMarkdown) {
	if len(pages) == 0 {
		return
	}
	h := r.handle.Load()
	if h == nil {
		return
	}
	r.release(ctx, h, pages)
}

func (r *RecognitionAdapter) release(ctx context.Context, h *engineHandle, pages []domain.PageMarkdown) {
	if len(pages) == 0 {
		return
	}
	if h.serialize {
		r.callMu.Lock()
		defer r.callMu.Unlock()
	}
	if err := h.engine.Release(ctx, pages); err != nil {
		r.logger.Warn("Failed to release recognized pages", "pages", len(pages), "error", err)
	}
}

// dropIfDead forgets an engine whose backing process has exited so the next
// call builds a fresh one.
func (r *RecognitionAdapter) dropIfDead(h *engineHandle) {
	l, ok := h.engine.(Liveness)
	if !ok || l.Alive() {
		return
	}
	if !r.handle.CompareAndSwap(h, nil) {
		return
	}
	r.logger.Error("Recognition engine exited; it will be restarted on the next request", domain.ErrEngineUnavailable)
	if err := h.engine.Close(); err != nil {
		r.logger.Warn("Failed to close exited recognition engine", "error", err)
	}
}

// Close releases the engine if it was built.
func (r *RecognitionAdapter) Close() error {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	h := r.handle.Swap(nil)
	if h == nil {
		return nil
	}
	return h.engine.Close()
}
