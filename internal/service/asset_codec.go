package service

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// MimeType maps a file extension to its image MIME type.
func MimeType(path string) string {
	if m, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}

// DataURI builds a data URI from a MIME type and a base64 payload.
func DataURI(mime, payload string) string {
	return "data:" + mime + ";base64," + payload
}

// AssetCodec reads local asset files and encodes them as base64 text.
type AssetCodec struct {
	fs afero.Fs
}

// NewAssetCodec creates a codec reading from fs.
func NewAssetCodec(fs afero.Fs) *AssetCodec {
	return &AssetCodec{fs: fs}
}

// IsFile reports whether path exists and is a regular file.
func (c *AssetCodec) IsFile(path string) bool {
	info, err := c.fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Encode returns the standard base64 encoding of the file at path.
func (c *AssetCodec) Encode(path string) (string, error) {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read asset %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
