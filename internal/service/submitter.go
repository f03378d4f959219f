package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"exam-parser/internal/domain"
	"exam-parser/internal/jsontree"
	apperrors "exam-parser/pkg/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

const (
	submitTimeout    = 60 * time.Second
	submitMaxRetries = 3
	parseDocsPath    = "/parse-docs"
)

// Submitter sends images one by one to a running parse service and stores
// each response next to its image.
type Submitter struct {
	fs         afero.Fs
	client     *http.Client
	endpoint   string
	newBackOff func() backoff.BackOff
	logger     domain.Logger
}

// NewSubmitter creates a client for the service at baseURL.
func NewSubmitter(fs afero.Fs, baseURL string, logger domain.Logger) *Submitter {
	return &Submitter{
		fs:       fs,
		client:   &http.Client{Timeout: submitTimeout},
		endpoint: strings.TrimRight(baseURL, "/") + parseDocsPath,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			return b
		},
		logger: logger,
	}
}

// SubmitDir submits every image below dir. Per-image failures are reported in
// the result, not returned.
func (s *Submitter) SubmitDir(ctx context.Context, dir string) (*BatchReport, error) {
	if !isDir(s.fs, dir) {
		return nil, apperrors.NewInputError(fmt.Sprintf("not a directory: %s", dir))
	}

	report := &BatchReport{Failed: map[string]error{}}
	err := afero.Walk(s.fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !domain.IsImagePath(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		saved, err := s.SubmitImage(ctx, path)
		if err != nil {
			s.logger.Error("Submit failed", err, "path", path)
			report.Failed[path] = err
			return nil
		}
		report.Saved = append(report.Saved, saved)
		return nil
	})
	return report, err
}

// SubmitImage posts one image and writes the response data to <stem>.json.
func (s *Submitter) SubmitImage(ctx context.Context, path string) (string, error) {
	s.logger.Info("Submitting image", "path", path, "endpoint", s.endpoint)

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	body, contentType, err := multipartBody(filepath.Base(path), data)
	if err != nil {
		return "", err
	}

	var respBody []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.Warn("Request failed, retrying", "path", path, "error", err)
			return apperrors.NewNetworkError("parse service unreachable", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperrors.NewNetworkError("failed to read response", err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			msg := gjson.GetBytes(b, "errors.0").String()
			return backoff.Permanent(fmt.Errorf("parse service returned %d: %s", resp.StatusCode, msg))
		}
		respBody = b
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), submitMaxRetries), ctx)); err != nil {
		return "", err
	}

	result := gjson.GetBytes(respBody, "data")
	if !result.Exists() {
		return "", fmt.Errorf("response has no data field")
	}
	node, err := jsontree.ParseString(result.Raw)
	if err != nil {
		return "", fmt.Errorf("invalid data field: %w", err)
	}
	out, err := jsontree.MarshalIndent(node, "    ")
	if err != nil {
		return "", err
	}

	jsonPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	if err := SaveResult(s.fs, jsonPath, string(out)); err != nil {
		return "", err
	}
	s.logger.Info("Result saved", "path", jsonPath)
	return jsonPath, nil
}

func multipartBody(filename string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
