package supabase

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"exam-parser/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, fields ...interface{})             {}
func (nopLogger) Error(msg string, err error, fields ...interface{}) {}
func (nopLogger) Debug(msg string, fields ...interface{})            {}
func (nopLogger) Warn(msg string, fields ...interface{})             {}

type stubConfig struct {
	domain.Config
	url, key, bucket string
}

func (c stubConfig) GetSupabaseURL() string    { return c.url }
func (c stubConfig) GetSupabaseKey() string    { return c.key }
func (c stubConfig) GetSupabaseBucket() string { return c.bucket }

func TestObjectStore_Upload(t *testing.T) {
	var gotMethod, gotPath, gotType, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Key":"exam-assets/abc.png"}`))
	}))
	defer srv.Close()

	store, err := NewObjectStore(stubConfig{url: srv.URL, key: "service-key", bucket: "exam-assets"}, nopLogger{})
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "abc.png", "image/png", strings.NewReader("png bytes"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/storage/v1/object/exam-assets/abc.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "png bytes", gotBody)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/exam-assets/abc.png", url)
}

func TestObjectStore_UploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"statusCode":"409","message":"The resource already exists"}`))
	}))
	defer srv.Close()

	store, err := NewObjectStore(stubConfig{url: srv.URL, key: "k", bucket: "b"}, nopLogger{})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "dup.png", "image/png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "failed to upload dup.png")
}

func TestNewObjectStore_RequiresSettings(t *testing.T) {
	_, err := NewObjectStore(stubConfig{key: "k", bucket: "b"}, nopLogger{})
	assert.Error(t, err)

	_, err = NewObjectStore(stubConfig{url: "http://localhost", key: "k"}, nopLogger{})
	assert.Error(t, err)
}

func TestObjectStore_CanceledContext(t *testing.T) {
	store, err := NewObjectStore(stubConfig{url: "http://127.0.0.1:1", key: "k", bucket: "b"}, nopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, "a.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
