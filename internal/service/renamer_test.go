package service

import (
	"sort"
	"testing"

	apperrors "exam-parser/pkg/errors"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirNames(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestImageRenamer_Rename(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(fs, "/imgs/b.PNG", []byte("b"))
	writeFile(fs, "/imgs/a.jpg", []byte("a"))
	writeFile(fs, "/imgs/c.webp", []byte("c"))
	writeFile(fs, "/imgs/notes.txt", []byte("n"))

	n, err := NewImageRenamer(fs, nopLogger{}).Rename("/imgs", DefaultRenameOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []string{"img_0001.jpg", "img_0002.PNG", "img_0003.webp", "notes.txt"}, dirNames(t, fs, "/imgs"))
	got, err := afero.ReadFile(fs, "/imgs/img_0002.PNG")
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))
}

func TestImageRenamer_CollisionSafe(t *testing.T) {
	fs := afero.NewMemMapFs()
	// Sorted order is b, img_1, img_2: every image moves onto the next one's name.
	writeFile(fs, "/imgs/b.png", []byte("one"))
	writeFile(fs, "/imgs/img_1.png", []byte("two"))
	writeFile(fs, "/imgs/img_2.png", []byte("three"))

	n, err := NewImageRenamer(fs, nopLogger{}).Rename("/imgs", RenameOptions{Prefix: "img", Start: 1, Digits: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := map[string]string{"img_1.png": "one", "img_2.png": "two", "img_3.png": "three"}
	assert.Equal(t, []string{"img_1.png", "img_2.png", "img_3.png"}, dirNames(t, fs, "/imgs"))
	for name, content := range want {
		got, err := afero.ReadFile(fs, "/imgs/"+name)
		require.NoError(t, err)
		assert.Equal(t, content, string(got), name)
	}
}

func TestImageRenamer_AlreadyNamed(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(fs, "/imgs/img_0001.png", []byte("1"))

	n, err := NewImageRenamer(fs, nopLogger{}).Rename("/imgs", DefaultRenameOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"img_0001.png"}, dirNames(t, fs, "/imgs"))

	_, err = NewImageRenamer(fs, nopLogger{}).Rename("/missing", DefaultRenameOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInput))
}
