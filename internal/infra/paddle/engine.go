// Package paddle drives PaddleOCR-VL through a long-lived Python worker process.
package paddle

import (
	"bufio"
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"exam-parser/internal/domain"
)

//go:embed python/*.py
var embeddedScripts embed.FS

const workerScript = "paddle_worker.py"

var (
	extractedScript string
	extractOnce     sync.Once
	extractErr      error
)

// ErrWorkerExited is returned once the worker process has gone away.
var ErrWorkerExited = errors.New("paddle worker exited")

// Config locates the interpreter and the model directories.
type Config struct {
	Python         string
	LayoutModelDir string
	VLModelDir     string
}

// scriptPath extracts the worker script once per process.
func scriptPath() (string, error) {
	extractOnce.Do(func() {
		dir, err := os.MkdirTemp("", "exam-parser-paddle-*")
		if err != nil {
			extractErr = fmt.Errorf("failed to create temporary directory: %w", err)
			return
		}
		content, err := embeddedScripts.ReadFile("python/" + workerScript)
		if err != nil {
			extractErr = fmt.Errorf("failed to read embedded worker: %w", err)
			return
		}
		path := filepath.Join(dir, workerScript)
		if err := os.WriteFile(path, content, 0o700); err != nil {
			extractErr = fmt.Errorf("failed to write worker script: %w", err)
			return
		}
		extractedScript = path
	})
	return extractedScript, extractErr
}

type request struct {
	ID   int64    `json:"id"`
	Op   string   `json:"op"`
	Path string   `json:"path,omitempty"`
	Kind string   `json:"kind,omitempty"`
	Refs []string `json:"refs,omitempty"`
}

type response struct {
	ID    int64        `json:"id"`
	Ready bool         `json:"ready"`
	Error string       `json:"error"`
	Pages []workerPage `json:"pages"`
	Text  string       `json:"text"`
}

type workerPage struct {
	Ref      string            `json:"ref"`
	Markdown string            `json:"markdown"`
	Images   map[string]string `json:"images"`
}

// Engine implements domain.RecognitionEngine. Requests are serialized over the
// worker's stdin/stdout; page records stay in the worker until joined.
type Engine struct {
	mu     sync.Mutex
	in     io.WriteCloser
	out    *bufio.Reader
	wait   func() error
	nextID int64
	dead   bool
	logger domain.Logger
}

// Start launches the worker and waits until its models are loaded.
func Start(ctx context.Context, cfg Config, logger domain.Logger) (*Engine, error) {
	script, err := scriptPath()
	if err != nil {
		return nil, err
	}

	// The worker serves every request of the process, so it is not bound to ctx.
	cmd := exec.Command(cfg.Python, script,
		"--layout-model-dir", cfg.LayoutModelDir,
		"--vl-model-dir", cfg.VLModelDir)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start paddle worker: %w", err)
	}
	logger.Info("Paddle worker started", "pid", cmd.Process.Pid, "python", cfg.Python)

	e := newEngine(stdin, stdout, cmd.Wait, logger)
	if err := e.handshake(ctx); err != nil {
		_ = cmd.Process.Kill()
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func newEngine(in io.WriteCloser, out io.Reader, wait func() error, logger domain.Logger) *Engine {
	return &Engine{
		in:     in,
		out:    bufio.NewReaderSize(out, 1<<20),
		wait:   wait,
		logger: logger,
	}
}

func (e *Engine) handshake(ctx context.Context) error {
	type result struct {
		resp *response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := e.readResponse()
		done <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("paddle worker did not become ready: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		if r.resp.Error != "" {
			return fmt.Errorf("paddle worker: %s", r.resp.Error)
		}
		if !r.resp.Ready {
			return fmt.Errorf("paddle worker sent unexpected greeting")
		}
		return nil
	}
}

// Predict recognizes one image or PDF.
func (e *Engine) Predict(ctx context.Context, in domain.EngineInput) ([]domain.PageMarkdown, error) {
	resp, err := e.roundTrip(ctx, request{Op: "predict", Path: in.Path, Kind: string(in.Kind)})
	if err != nil {
		return nil, err
	}

	pages := make([]domain.PageMarkdown, 0, len(resp.Pages))
	for _, p := range resp.Pages {
		assets := make(map[string][]byte, len(p.Images))
		for rel, encoded := range p.Images {
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				e.release(ctx, resp.Pages)
				return nil, fmt.Errorf("invalid image payload for %s: %w", rel, err)
			}
			assets[rel] = data
		}
		pages = append(pages, domain.PageMarkdown{Text: p.Markdown, Assets: assets, Ref: p.Ref})
	}
	return pages, nil
}

// JoinPages asks the worker to concatenate its page records and drops them.
func (e *Engine) JoinPages(ctx context.Context, pages []domain.PageMarkdown) (string, error) {
	refs := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Ref == "" {
			return "", fmt.Errorf("page has no worker reference")
		}
		refs = append(refs, p.Ref)
	}
	resp, err := e.roundTrip(ctx, request{Op: "join", Refs: refs})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Release drops page records that will never be joined. Pages without a worker
// reference are ignored.
func (e *Engine) Release(ctx context.Context, pages []domain.PageMarkdown) error {
	refs := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Ref != "" {
			refs = append(refs, p.Ref)
		}
	}
	return e.releaseRefs(ctx, refs)
}

// Alive reports whether the worker can still serve requests.
func (e *Engine) Alive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.dead
}

func (e *Engine) release(ctx context.Context, pages []workerPage) {
	refs := make([]string, 0, len(pages))
	for _, p := range pages {
		refs = append(refs, p.Ref)
	}
	if err := e.releaseRefs(ctx, refs); err != nil {
		e.logger.Warn("Failed to release worker pages", "error", err)
	}
}

func (e *Engine) releaseRefs(ctx context.Context, refs []string) error {
	if len(refs) == 0 {
		return nil
	}
	// Failure paths may carry a cancelled context.
	_, err := e.roundTrip(context.WithoutCancel(ctx), request{Op: "release", Refs: refs})
	return err
}

func (e *Engine) roundTrip(ctx context.Context, req request) (*response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return nil, ErrWorkerExited
	}

	e.nextID++
	req.ID = e.nextID
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode worker request: %w", err)
	}
	if _, err := e.in.Write(append(line, '\n')); err != nil {
		e.dead = true
		return nil, fmt.Errorf("%w: %v", ErrWorkerExited, err)
	}

	resp, err := e.readResponse()
	if err != nil {
		e.dead = true
		return nil, err
	}
	if resp.ID != req.ID {
		e.dead = true
		return nil, fmt.Errorf("paddle worker answered request %d, expected %d", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("paddle worker: %s", resp.Error)
	}
	return resp, nil
}

func (e *Engine) readResponse() (*response, error) {
	line, err := e.out.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrWorkerExited
		}
		return nil, fmt.Errorf("failed to read worker response: %w", err)
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("invalid worker response: %w", err)
	}
	return &resp, nil
}

// Close stops the worker by closing its stdin.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dead = true
	err := e.in.Close()
	if e.wait != nil {
		if werr := e.wait(); werr != nil && err == nil {
			err = werr
		}
		e.wait = nil
	}
	return err
}
