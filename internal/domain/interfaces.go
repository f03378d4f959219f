package domain

import (
	"context"
	"io"
	"time"
)

// RecognitionEngine is the document-recognition black box: layout detection plus
// vision-language recognition producing markdown pages and page images.
type RecognitionEngine interface {
	// Predict recognizes one image or one PDF and returns its pages in order.
	Predict(ctx context.Context, input EngineInput) ([]PageMarkdown, error)
	// JoinPages concatenates pages using the engine's own page-join convention.
	JoinPages(ctx context.Context, pages []PageMarkdown) (string, error)
	// Release drops engine-side state of pages that will not be joined.
	Release(ctx context.Context, pages []PageMarkdown) error
	Close() error
}

// EngineInput is a single document handed to a RecognitionEngine.
type EngineInput struct {
	Path string
	Kind InputKind
}

// Completer is the language-model completion endpoint.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// ObjectStore stores published assets and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetUploadPath() string
	GetOutputPath() string
	GetMaxFileSize() int64
	GetMaxConcurrentJobs() int64
	GetLogLevel() string

	GetLLMAPIKey() string
	GetLLMBaseURL() string
	GetLLMModel() string
	GetExtractionTimeout() time.Duration

	GetRecognitionEngine() string
	GetPaddlePython() string
	GetPaddleLayoutModelDir() string
	GetPaddleVLModelDir() string
	GetTesseractLanguages() []string

	GetSupabaseURL() string
	GetSupabaseKey() string
	GetSupabaseBucket() string
	GetPublishRatePerSecond() float64
	GetBatchWorkers() int
}
