package config

import (
	"context"
	"fmt"
	"io"

	"exam-parser/internal/domain"
	"exam-parser/internal/infra/llm"
	"exam-parser/internal/infra/paddle"
	"exam-parser/internal/infra/supabase"
	"exam-parser/internal/infra/tesseract"
	"exam-parser/internal/service"
	"exam-parser/pkg/logger"

	"github.com/spf13/afero"
)

// Container holds all application dependencies
type Container struct {
	Config domain.Config
	Logger domain.Logger
	Fs     afero.Fs

	Recognition *service.RecognitionAdapter
	Pipeline    *service.Pipeline
}

// NewContainer creates a new dependency injection container logging to stdout
func NewContainer() *Container {
	config := NewConfig()
	return &Container{
		Config: config,
		Logger: logger.NewLogger(config.GetLogLevel()),
		Fs:     afero.NewOsFs(),
	}
}

// NewContainerWithLogOutput is NewContainer with logs written to out.
func NewContainerWithLogOutput(out io.Writer) *Container {
	config := NewConfig()
	return &Container{
		Config: config,
		Logger: logger.NewLoggerWithOutput(config.GetLogLevel(), out),
		Fs:     afero.NewOsFs(),
	}
}

// EngineFactory selects the recognition engine named by RECOGNITION_ENGINE.
func (c *Container) EngineFactory() (service.EngineFactory, error) {
	switch c.Config.GetRecognitionEngine() {
	case "paddle":
		cfg := paddle.Config{
			Python:         c.Config.GetPaddlePython(),
			LayoutModelDir: c.Config.GetPaddleLayoutModelDir(),
			VLModelDir:     c.Config.GetPaddleVLModelDir(),
		}
		return func(ctx context.Context) (domain.RecognitionEngine, error) {
			e, err := paddle.Start(ctx, cfg, c.Logger)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case "tesseract":
		langs := c.Config.GetTesseractLanguages()
		return func(context.Context) (domain.RecognitionEngine, error) {
			return tesseract.NewEngine(langs, c.Logger), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown recognition engine %q", c.Config.GetRecognitionEngine())
	}
}

// BuildPipeline wires recognition, extraction and inlining. The engine itself is
// created on first use.
func (c *Container) BuildPipeline() (*service.Pipeline, error) {
	if c.Pipeline != nil {
		return c.Pipeline, nil
	}

	factory, err := c.EngineFactory()
	if err != nil {
		return nil, err
	}
	completer, err := llm.NewClient(c.Config.GetLLMAPIKey(), c.Config.GetLLMBaseURL(), c.Config.GetLLMModel(), c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	normalizer, err := service.NewSchemaNormalizer(c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to compile question schema: %w", err)
	}

	c.Recognition = service.NewRecognitionAdapter(factory, c.Fs, c.Logger)
	extraction := service.NewExtractionAdapter(completer, c.Config.GetExtractionTimeout(), c.Logger)
	c.Pipeline = service.NewPipeline(c.Fs, c.Recognition, extraction, normalizer, c.Logger)
	return c.Pipeline, nil
}

// BuildBatchProcessor wires the per-image batch runner.
func (c *Container) BuildBatchProcessor() (*service.BatchProcessor, error) {
	pipeline, err := c.BuildPipeline()
	if err != nil {
		return nil, err
	}
	return service.NewBatchProcessor(c.Fs, pipeline, c.Config.GetBatchWorkers(), c.Logger), nil
}

// BuildPublisher wires the asset publisher to Supabase Storage.
func (c *Container) BuildPublisher() (*service.AssetPublisher, error) {
	store, err := supabase.NewObjectStore(c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	return service.NewAssetPublisher(c.Fs, store, c.Config.GetPublishRatePerSecond(), c.Logger), nil
}

// Close releases the recognition engine if one was started.
func (c *Container) Close() error {
	if c.Recognition == nil {
		return nil
	}
	return c.Recognition.Close()
}
