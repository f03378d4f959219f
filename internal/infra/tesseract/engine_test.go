package tesseract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
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

type stubClient struct {
	langs  []string
	image  []byte
	text   string
	err    error
	closed bool
}

func (c *stubClient) SetImageFromBytes(data []byte) error { c.image = data; return nil }
func (c *stubClient) SetLanguage(langs ...string) error   { c.langs = langs; return nil }
func (c *stubClient) Text() (string, error)               { return c.text, c.err }
func (c *stubClient) Close() error                        { c.closed = true; return nil }

func newStubEngine(client *stubClient) *Engine {
	e := NewEngine([]string{"chi_sim", "eng"}, nopLogger{})
	e.clientFactory = func() OCRClient { return client }
	return e
}

func TestPredict_Image(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p1.png")
	require.NoError(t, os.WriteFile(path, []byte("image bytes"), 0o644))

	client := &stubClient{text: "  1. 计算 1+1  \n"}
	pages, err := newStubEngine(client).Predict(context.Background(), domain.EngineInput{Path: path, Kind: domain.InputImage})
	require.NoError(t, err)

	require.Len(t, pages, 1)
	assert.Equal(t, "1. 计算 1+1", pages[0].Text)
	assert.Equal(t, []string{"chi_sim", "eng"}, client.langs)
	assert.Equal(t, []byte("image bytes"), client.image)
	assert.True(t, client.closed)
}

func TestPredict_Errors(t *testing.T) {
	e := newStubEngine(&stubClient{err: errors.New("tessdata missing")})

	_, err := e.Predict(context.Background(), domain.EngineInput{Path: "/nonexistent.png", Kind: domain.InputImage})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "p1.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err = e.Predict(context.Background(), domain.EngineInput{Path: path, Kind: domain.InputImage})
	assert.ErrorContains(t, err, "tessdata missing")

	_, err = e.Predict(context.Background(), domain.EngineInput{Path: "/nonexistent.pdf", Kind: domain.InputPDF})
	assert.ErrorContains(t, err, "failed to open PDF")
}

func TestJoinPages(t *testing.T) {
	e := newStubEngine(&stubClient{})
	text, err := e.JoinPages(context.Background(), []domain.PageMarkdown{{Text: "a"}, {}, {Text: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb", text)
	assert.True(t, e.ConcurrencySafe())
	assert.NoError(t, e.Release(context.Background(), []domain.PageMarkdown{{Text: "a"}}))
}
