package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"
)

var codeFenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractionAdapter asks the completion endpoint to turn markdown into a
// candidate Question array. It never parses the response.
type ExtractionAdapter struct {
	completer domain.Completer
	timeout   time.Duration
	logger    domain.Logger
}

// NewExtractionAdapter creates an adapter. A zero timeout leaves the call unbounded.
func NewExtractionAdapter(completer domain.Completer, timeout time.Duration, logger domain.Logger) *ExtractionAdapter {
	return &ExtractionAdapter{completer: completer, timeout: timeout, logger: logger}
}

// Extract returns the endpoint response with surrounding code fences removed.
func (e *ExtractionAdapter) Extract(ctx context.Context, markdown string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := e.completer.Complete(ctx, SystemPrompt(), UserPrompt(markdown))
	if err != nil {
		return "", apperrors.NewExtractionError("completion request failed", err)
	}
	e.logger.Info("Extraction completed",
		"request_id", domain.RequestIDFrom(ctx),
		"prompt_version", PromptVersion,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_chars", len(content))
	return StripCodeFence(content), nil
}

// StripCodeFence returns the body of the first fenced block, or the trimmed text
// when there is none.
func StripCodeFence(content string) string {
	if m := codeFenceRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}
