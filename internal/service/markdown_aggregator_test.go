package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type concatJoiner struct {
	err error
}

func (j concatJoiner) JoinPages(_ context.Context, pages []domain.PageMarkdown) (string, error) {
	if j.err != nil {
		return "", j.err
	}
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

func TestAggregate_WritesMarkdownAndAssets(t *testing.T) {
	fs := afero.NewMemMapFs()
	agg := NewMarkdownAggregator(fs, concatJoiner{}, nopLogger{})

	pages := []domain.PageMarkdown{
		{Text: "# 1\n![](imgs/p1.png)\n\n", Assets: map[string][]byte{"imgs/p1.png": []byte("one"), "imgs/shared.png": []byte("first")}},
		{Text: "<div><img src=\"imgs/shared.png\"></div>\n\n", Assets: map[string][]byte{"imgs/shared.png": []byte("second")}},
		{Text: "![](imgs/lost.png) ![](https://x/y.png)\n"},
	}

	doc, err := agg.Aggregate(context.Background(), pages, "/out/req", "combined.md")
	require.NoError(t, err)

	assert.Equal(t, "/out/req/combined.md", doc.MarkdownPath)
	md, err := afero.ReadFile(fs, doc.MarkdownPath)
	require.NoError(t, err)
	assert.Equal(t, pages[0].Text+pages[1].Text+pages[2].Text, string(md))

	shared, err := afero.ReadFile(fs, "/out/req/imgs/shared.png")
	require.NoError(t, err)
	assert.Equal(t, "second", string(shared))

	assert.Equal(t, []string{"/out/req/imgs/p1.png", "/out/req/imgs/shared.png"}, doc.AssetPaths)
	assert.Equal(t, []string{"imgs/lost.png"}, doc.DanglingRefs)
}

func TestAggregate_EmptyPagesIsNoContent(t *testing.T) {
	agg := NewMarkdownAggregator(afero.NewMemMapFs(), concatJoiner{}, nopLogger{})

	_, err := agg.Aggregate(context.Background(), nil, "/out", "x.md")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNoContent))
}

func TestAggregate_JoinFailure(t *testing.T) {
	agg := NewMarkdownAggregator(afero.NewMemMapFs(), concatJoiner{err: errors.New("worker gone")}, nopLogger{})

	_, err := agg.Aggregate(context.Background(), []domain.PageMarkdown{{Text: "x"}}, "/out", "x.md")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRecognition))
}

func TestAggregate_SkipsEscapingAssets(t *testing.T) {
	fs := afero.NewMemMapFs()
	agg := NewMarkdownAggregator(fs, concatJoiner{}, nopLogger{})

	pages := []domain.PageMarkdown{{Text: "x", Assets: map[string][]byte{"../evil.png": []byte("x"), "imgs/ok.png": []byte("y")}}}
	doc, err := agg.Aggregate(context.Background(), pages, "/out/req", "x.md")
	require.NoError(t, err)

	assert.Equal(t, []string{"/out/req/imgs/ok.png"}, doc.AssetPaths)
	exists, _ := afero.Exists(fs, "/out/evil.png")
	assert.False(t, exists)
}

func TestAggregate_RemoveAndPurge(t *testing.T) {
	fs := afero.NewMemMapFs()
	agg := NewMarkdownAggregator(fs, concatJoiner{}, nopLogger{})

	doc, err := agg.Aggregate(context.Background(),
		[]domain.PageMarkdown{{Text: "![](imgs/a.png)", Assets: map[string][]byte{"imgs/a.png": []byte("a")}}},
		"/out/req", "a.md")
	require.NoError(t, err)

	require.NoError(t, agg.RemoveMarkdown(doc))
	require.NoError(t, agg.RemoveMarkdown(doc))
	require.NoError(t, agg.PurgeAssets(doc))

	for _, p := range []string{"/out/req/a.md", "/out/req/imgs/a.png"} {
		exists, _ := afero.Exists(fs, p)
		assert.False(t, exists, p)
	}
}

func TestScanImageRefs(t *testing.T) {
	md := "Intro ![fig](imgs/a.png) text\n\n" +
		"<div style=\"text-align: center;\"><img src=\"imgs/b.jpg\" alt=\"b\" /></div>\n\n" +
		"inline <img src='imgs/c.png'> and again ![](imgs/a.png)\n"

	assert.Equal(t, []string{"imgs/a.png", "imgs/b.jpg", "imgs/c.png"}, ScanImageRefs(md))
	assert.Empty(t, ScanImageRefs("plain text only"))
}
