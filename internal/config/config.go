package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"exam-parser/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort        string
	UploadPath        string
	OutputPath        string
	MaxFileSize       int64
	MaxConcurrentJobs int64
	LogLevel          string

	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	ExtractionTimeout time.Duration

	RecognitionEngine    string
	PaddlePython         string
	PaddleLayoutModelDir string
	PaddleVLModelDir     string
	TesseractLanguages   []string

	SupabaseURL          string
	SupabaseKey          string
	SupabaseBucket       string
	PublishRatePerSecond float64
	BatchWorkers         int
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:        getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		UploadPath:        getEnvOrDefault("UPLOAD_PATH", "./uploads"),
		OutputPath:        getEnvOrDefault("OUTPUT_PATH", "./output/api"),
		MaxFileSize:       getEnvInt64OrDefault("MAX_FILE_SIZE", 50*1024*1024), // 50MB default
		MaxConcurrentJobs: getEnvInt64OrDefault("MAX_CONCURRENT_JOBS", 2),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),

		LLMAPIKey:         getEnvOrDefault("OPENAI_API_KEY", ""),
		LLMBaseURL:        getEnvOrDefault("LLM_MODEL_URL", ""),
		LLMModel:          getEnvOrDefault("LLM_MODEL_NAME", ""),
		ExtractionTimeout: getEnvDurationOrDefault("EXTRACTION_TIMEOUT", 300*time.Second),

		RecognitionEngine:    strings.ToLower(getEnvOrDefault("RECOGNITION_ENGINE", "paddle")),
		PaddlePython:         getEnvOrDefault("PADDLE_PYTHON", "python3"),
		PaddleLayoutModelDir: getEnvOrDefault("PADDLE_LAYOUT_MODEL_DIR", "models/PaddlePaddle/PP-DocLayoutV2"),
		PaddleVLModelDir:     getEnvOrDefault("PADDLE_VL_MODEL_DIR", "models/PaddlePaddle/PaddleOCR-VL"),
		TesseractLanguages:   getEnvListOrDefault("TESSERACT_LANGUAGES", []string{"chi_sim", "eng"}),

		SupabaseURL:          getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:          getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		SupabaseBucket:       getEnvOrDefault("SUPABASE_BUCKET", "exam-assets"),
		PublishRatePerSecond: getEnvFloatOrDefault("PUBLISH_RATE_PER_SECOND", 5),
		BatchWorkers:         int(getEnvInt64OrDefault("BATCH_WORKERS", 2)),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetUploadPath returns the upload directory path
func (c *AppConfig) GetUploadPath() string {
	return c.UploadPath
}

// GetOutputPath returns the root of per-request working directories
func (c *AppConfig) GetOutputPath() string {
	return c.OutputPath
}

// GetMaxFileSize returns the maximum allowed upload size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetMaxConcurrentJobs returns how many pipeline runs may execute at once
func (c *AppConfig) GetMaxConcurrentJobs() int64 {
	return c.MaxConcurrentJobs
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

func (c *AppConfig) GetLLMAPIKey() string {
	return c.LLMAPIKey
}

func (c *AppConfig) GetLLMBaseURL() string {
	return c.LLMBaseURL
}

func (c *AppConfig) GetLLMModel() string {
	return c.LLMModel
}

// GetExtractionTimeout bounds one completion request
func (c *AppConfig) GetExtractionTimeout() time.Duration {
	return c.ExtractionTimeout
}

// GetRecognitionEngine returns "paddle" or "tesseract"
func (c *AppConfig) GetRecognitionEngine() string {
	return c.RecognitionEngine
}

func (c *AppConfig) GetPaddlePython() string {
	return c.PaddlePython
}

func (c *AppConfig) GetPaddleLayoutModelDir() string {
	return c.PaddleLayoutModelDir
}

func (c *AppConfig) GetPaddleVLModelDir() string {
	return c.PaddleVLModelDir
}

func (c *AppConfig) GetTesseractLanguages() []string {
	return c.TesseractLanguages
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetSupabaseBucket returns the public bucket for published assets
func (c *AppConfig) GetSupabaseBucket() string {
	return c.SupabaseBucket
}

func (c *AppConfig) GetPublishRatePerSecond() float64 {
	return c.PublishRatePerSecond
}

func (c *AppConfig) GetBatchWorkers() int {
	return c.BatchWorkers
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("90s") and plain seconds ("300").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
