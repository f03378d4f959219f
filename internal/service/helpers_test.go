package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"

	"exam-parser/internal/domain"

	"github.com/spf13/afero"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, fields ...interface{})             {}
func (nopLogger) Error(msg string, err error, fields ...interface{}) {}
func (nopLogger) Debug(msg string, fields ...interface{})            {}
func (nopLogger) Warn(msg string, fields ...interface{})             {}

var _ domain.Logger = nopLogger{}

// countingFs counts how often each file is opened.
type countingFs struct {
	afero.Fs
	mu    sync.Mutex
	opens map[string]int
}

func newCountingFs(fs afero.Fs) *countingFs {
	return &countingFs{Fs: fs, opens: make(map[string]int)}
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag == os.O_RDONLY {
		c.mu.Lock()
		c.opens[name]++
		c.mu.Unlock()
	}
	return c.Fs.OpenFile(name, flag, perm)
}

func (c *countingFs) Opens(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

func writeFile(fs afero.Fs, path string, data []byte) {
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		panic(err)
	}
}

// tinyPNG returns a decodable 2x2 PNG.
func tinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
