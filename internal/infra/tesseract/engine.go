// Package tesseract is an in-process recognition engine built on Tesseract OCR.
// It produces plain-text pages without layout or figure extraction.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"time"

	"exam-parser/internal/domain"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

const pageTimeout = 90 * time.Second

// OCRClient is the subset of *gosseract.Client the engine uses.
type OCRClient interface {
	SetImageFromBytes(data []byte) error
	SetLanguage(langs ...string) error
	Text() (string, error)
	Close() error
}

// Engine implements domain.RecognitionEngine. Every page gets its own OCR client,
// so calls may run in parallel.
type Engine struct {
	languages     []string
	clientFactory func() OCRClient
	logger        domain.Logger
}

// NewEngine creates an engine recognizing the given Tesseract languages.
func NewEngine(languages []string, logger domain.Logger) *Engine {
	return &Engine{
		languages:     languages,
		clientFactory: func() OCRClient { return gosseract.NewClient() },
		logger:        logger,
	}
}

func (e *Engine) ConcurrencySafe() bool { return true }

// Predict recognizes an image file or every page of a PDF.
func (e *Engine) Predict(ctx context.Context, in domain.EngineInput) ([]domain.PageMarkdown, error) {
	if in.Kind == domain.InputPDF {
		return e.predictPDF(ctx, in.Path)
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	text, err := e.recognize(data)
	if err != nil {
		return nil, err
	}
	return []domain.PageMarkdown{{Text: text}}, nil
}

func (e *Engine) predictPDF(ctx context.Context, path string) ([]domain.PageMarkdown, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	type pageResult struct {
		img image.Image
		err error
	}

	numPages := doc.NumPage()
	pages := make([]domain.PageMarkdown, 0, numPages)
	for pageNum := 0; pageNum < numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.logger.Debug("Rasterizing PDF page", "page", pageNum+1, "total", numPages)

		resultCh := make(chan pageResult, 1)
		go func(idx int) {
			img, err := doc.Image(idx)
			resultCh <- pageResult{img: img, err: err}
		}(pageNum)

		var res pageResult
		select {
		case res = <-resultCh:
		case <-time.After(pageTimeout):
			res.err = fmt.Errorf("timeout after %v", pageTimeout)
			go func() { <-resultCh }()
		}
		if res.err != nil {
			e.logger.Warn("Failed to rasterize PDF page; using empty page", "page", pageNum+1, "error", res.err)
			pages = append(pages, domain.PageMarkdown{})
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, res.img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", pageNum+1, err)
		}
		text, err := e.recognize(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNum+1, err)
		}
		pages = append(pages, domain.PageMarkdown{Text: text})
	}
	return pages, nil
}

func (e *Engine) recognize(data []byte) (string, error) {
	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// JoinPages separates pages with a blank line.
func (e *Engine) JoinPages(_ context.Context, pages []domain.PageMarkdown) (string, error) {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

// Release is a no-op: pages hold no engine-side state.
func (e *Engine) Release(context.Context, []domain.PageMarkdown) error { return nil }

func (e *Engine) Close() error { return nil }
