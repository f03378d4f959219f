package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"exam-parser/internal/domain"
	"exam-parser/internal/jsontree"
	apperrors "exam-parser/pkg/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

const publishMaxRetries = 3

var (
	dataURIImageRe   = regexp.MustCompile(`(?i)^data:image/(png|jpe?g|gif|webp);base64,`)
	dataURIPrefixRe  = regexp.MustCompile(`(?i)^data:image/.+;base64,`)
	pureBase64Re     = regexp.MustCompile(`^[A-Za-z0-9+/=\s]{200,}$`)
	imgBase64SrcRe   = regexp.MustCompile(`(?i)(<img[^>]+src=["'])(data:image/[^"']+|/9[^"']+)(["'])`)
	base64SpaceStrip = strings.NewReplacer(" ", "", "\n", "", "\r", "", "\t", "")
)

// PublishStats counts what a publish run did.
type PublishStats struct {
	Files    int
	Uploaded int
	Reused   int
	Failed   int
}

// AssetPublisher replaces inlined base64 images in saved question files with
// URLs of uploaded objects.
type AssetPublisher struct {
	fs         afero.Fs
	store      domain.ObjectStore
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
	logger     domain.Logger
}

// NewAssetPublisher creates a publisher uploading at most ratePerSecond
// objects per second. A non-positive rate disables limiting.
func NewAssetPublisher(fs afero.Fs, store domain.ObjectStore, ratePerSecond float64, logger domain.Logger) *AssetPublisher {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &AssetPublisher{
		fs:      fs,
		store:   store,
		limiter: rate.NewLimiter(limit, 1),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
		logger: logger,
	}
}

// IsBase64Image reports whether s as a whole is an inlined image: a data URI
// or a bare JPEG payload.
func IsBase64Image(s string) bool {
	if dataURIImageRe.MatchString(s) {
		return true
	}
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "/9") && pureBase64Re.MatchString(t)
}

// PublishPath publishes one file to out, or every .json file below in to the
// same relative path below out. A payload is uploaded once per call.
func (p *AssetPublisher) PublishPath(ctx context.Context, in, out string) (*PublishStats, error) {
	info, err := p.fs.Stat(in)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("path not found: %s", in))
	}

	run := &publishRun{publisher: p, cache: map[string]string{}, stats: &PublishStats{}}
	if !info.IsDir() {
		if err := run.file(ctx, in, out); err != nil {
			return run.stats, err
		}
		return run.stats, nil
	}

	err = afero.Walk(p.fs, in, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		rel, err := filepath.Rel(in, path)
		if err != nil {
			return err
		}
		p.logger.Info("Publishing file", "path", path)
		return run.file(ctx, path, filepath.Join(out, rel))
	})
	return run.stats, err
}

type publishRun struct {
	publisher *AssetPublisher
	cache     map[string]string
	stats     *PublishStats
}

func (r *publishRun) file(ctx context.Context, in, out string) error {
	fs := r.publisher.fs
	data, err := afero.ReadFile(fs, in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", in, err)
	}
	root, err := jsontree.Parse(data)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s is not valid JSON", in), err.Error())
	}

	root.RewriteStrings(func(s string) string { return r.rewrite(ctx, s) })

	encoded, err := jsontree.MarshalIndent(root, "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", in, err)
	}
	if err := SaveResult(fs, out, string(encoded)); err != nil {
		return err
	}
	r.stats.Files++
	return nil
}

func (r *publishRun) rewrite(ctx context.Context, s string) string {
	if strings.Contains(s, "<img") && (strings.Contains(s, "base64") || strings.HasPrefix(strings.TrimSpace(s), "/9")) {
		s = imgBase64SrcRe.ReplaceAllStringFunc(s, func(m string) string {
			g := imgBase64SrcRe.FindStringSubmatch(m)
			url, ok := r.publish(ctx, g[2])
			if !ok {
				return m
			}
			return g[1] + url + g[3]
		})
	}
	if IsBase64Image(s) {
		if url, ok := r.publish(ctx, s); ok {
			return url
		}
	}
	return s
}

func (r *publishRun) publish(ctx context.Context, payload string) (string, bool) {
	if url, ok := r.cache[payload]; ok {
		r.stats.Reused++
		return url, true
	}
	url, err := r.publisher.upload(ctx, payload)
	if err != nil {
		r.stats.Failed++
		r.publisher.logger.Warn("Image upload failed; keeping inline payload", "error", err)
		return "", false
	}
	r.cache[payload] = url
	r.stats.Uploaded++
	return url, true
}

func (p *AssetPublisher) upload(ctx context.Context, payload string) (string, error) {
	raw := base64SpaceStrip.Replace(dataURIPrefixRe.ReplaceAllString(payload, ""))
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("invalid base64 payload: %w", err)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("payload is %s, not an image", mt.String())
	}
	name := uuid.NewString() + mt.Extension()

	var url string
	op := func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		u, err := p.store.Upload(ctx, name, mt.String(), bytes.NewReader(data))
		if err != nil {
			p.logger.Debug("Upload attempt failed", "name", name, "error", err)
			return err
		}
		url = u
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), publishMaxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return "", err
	}
	p.logger.Debug("Image published", "name", name, "url", url)
	return url, nil
}
