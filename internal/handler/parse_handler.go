// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"exam-parser/internal/domain"
	"exam-parser/internal/service"
	apperrors "exam-parser/pkg/errors"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"
)

const multipartMemory = 32 << 20

// ParseResponse is the envelope of every /parse-docs response.
type ParseResponse struct {
	Success   bool     `json:"success"`
	RequestID string   `json:"request_id"`
	Data      any      `json:"data"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
}

// ParseHandler handles document parsing requests
type ParseHandler struct {
	runner     service.Runner
	fs         afero.Fs
	jobs       *semaphore.Weighted
	uploadRoot string
	outputRoot string
	maxBody    int64
	logger     domain.Logger
}

// NewParseHandler creates a new parse handler
func NewParseHandler(runner service.Runner, fs afero.Fs, config domain.Config, logger domain.Logger) *ParseHandler {
	jobs := config.GetMaxConcurrentJobs()
	if jobs < 1 {
		jobs = 1
	}
	return &ParseHandler{
		runner:     runner,
		fs:         fs,
		jobs:       semaphore.NewWeighted(jobs),
		uploadRoot: config.GetUploadPath(),
		outputRoot: config.GetOutputPath(),
		maxBody:    config.GetMaxFileSize(),
		logger:     logger,
	}
}

// ParseDocs accepts images and at most one PDF in the multipart field "files"
// and answers with the extracted questions.
func (h *ParseHandler) ParseDocs(w http.ResponseWriter, r *http.Request) {
	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")
	resp := &ParseResponse{RequestID: requestID, Errors: []string{}, Warnings: []string{}}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.fail(w, resp, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", h.maxBody))
			return
		}
		h.fail(w, resp, http.StatusBadRequest, apperrors.NewInputError(domain.ErrNoInputs.Error(), err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.fail(w, resp, http.StatusBadRequest, apperrors.NewInputError(domain.ErrNoInputs.Error()))
		return
	}

	var images, pdfs []*multipart.FileHeader
	for _, f := range files {
		switch {
		case domain.IsImagePath(f.Filename):
			images = append(images, f)
		case domain.IsPDFPath(f.Filename):
			pdfs = append(pdfs, f)
		default:
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("unsupported file type: %s", f.Filename))
		}
	}
	if len(images) == 0 && len(pdfs) == 0 {
		h.fail(w, resp, http.StatusBadRequest, apperrors.NewInputError(domain.ErrNoUsableInputs.Error()))
		return
	}
	if len(pdfs) > 1 {
		h.fail(w, resp, http.StatusBadRequest, apperrors.NewInputError(domain.ErrTooManyPDFs.Error()))
		return
	}
	h.logger.Info("Files received", "request_id", requestID, "images", len(images), "pdfs", len(pdfs))

	if err := h.jobs.Acquire(r.Context(), 1); err != nil {
		h.fail(w, resp, http.StatusServiceUnavailable, fmt.Errorf("request cancelled while queued: %w", err))
		return
	}
	defer h.jobs.Release(1)

	uploadDir := filepath.Join(h.uploadRoot, requestID)
	outputDir := filepath.Join(h.outputRoot, requestID)
	defer h.removeDir(requestID, uploadDir)
	defer h.removeDir(requestID, outputDir)

	paths, err := h.saveUploads(uploadDir, append(images, pdfs...))
	if err != nil {
		h.fail(w, resp, http.StatusInternalServerError, err)
		return
	}

	// Recognition is not interrupted when the client goes away.
	ctx := domain.WithRequestID(context.WithoutCancel(r.Context()), requestID)
	result, err := h.runner.Run(ctx, paths, outputDir)
	if err != nil {
		h.fail(w, resp, apperrors.GetStatusCode(err), err)
		return
	}

	resp.Success = true
	resp.Warnings = append(resp.Warnings, result.Warnings...)
	if json.Valid([]byte(result.JSON)) {
		resp.Data = json.RawMessage(result.JSON)
	} else {
		resp.Data = result.JSON
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports liveness.
func (h *ParseHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ParseHandler) saveUploads(dir string, files []*multipart.FileHeader) ([]string, error) {
	if err := h.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	paths := make([]string, 0, len(files))
	seen := map[string]bool{}
	for idx, fh := range files {
		// Strip any path components from the client-supplied name.
		name := strings.TrimSpace(filepath.Base(fh.Filename))
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = fmt.Sprintf("file_%d%s", idx, filepath.Ext(fh.Filename))
		}
		for base, n := name, idx; seen[name]; n++ {
			name = fmt.Sprintf("%d_%s", n, base)
		}
		seen[name] = true

		path := filepath.Join(dir, name)
		if err := h.saveUpload(fh, path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (h *ParseHandler) saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	dst, err := h.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to store upload %s: %w", fh.Filename, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to store upload %s: %w", fh.Filename, err)
	}
	return dst.Close()
}

func (h *ParseHandler) removeDir(requestID, dir string) {
	if err := h.fs.RemoveAll(dir); err != nil {
		h.logger.Error("Failed to remove request directory", err, "request_id", requestID, "path", dir)
	}
}

func (h *ParseHandler) fail(w http.ResponseWriter, resp *ParseResponse, status int, err error) {
	h.logger.Error("Parse request failed", err, "request_id", resp.RequestID, "status", status)
	resp.Success = false
	resp.Data = nil
	resp.Errors = append(resp.Errors, err.Error())
	writeJSON(w, status, resp)
}
