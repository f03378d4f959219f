package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, fs afero.Fs, completer *fakeCompleter) *Pipeline {
	t.Helper()
	return newEnginePipeline(t, fs, &fakeEngine{}, completer)
}

func newEnginePipeline(t *testing.T, fs afero.Fs, engine *fakeEngine, completer *fakeCompleter) *Pipeline {
	t.Helper()
	var calls int32
	recognizer := NewRecognitionAdapter(countingFactory(engine, &calls), fs, nopLogger{})
	extractor := NewExtractionAdapter(completer, 0, nopLogger{})
	return NewPipeline(fs, recognizer, extractor, newNormalizer(t), nopLogger{})
}

func assertGone(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.False(t, exists, "%s should have been removed", p)
	}
}

func TestPipeline_Success(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(fs, "/in/unit1/p2.png", tinyPNG())
	writeFile(fs, "/in/unit1/p1.png", tinyPNG())

	completer := &fakeCompleter{response: "```json\n" +
		`[{"question_id":"1","question_content":"<img src=\"imgs/p1_fig.png\">","question_images":["imgs/p2_fig.png"]}]` +
		"\n```"}
	p := newTestPipeline(t, fs, completer)

	ctx := domain.WithRequestID(context.Background(), "req1")
	res, err := p.Run(ctx, []string{"/in/unit1"}, "/out/req1")
	require.NoError(t, err)

	assert.Equal(t, 1, completer.calls)
	assert.Less(t, strings.Index(completer.user, "p1.png"), strings.Index(completer.user, "p2.png"))

	fig1 := base64.StdEncoding.EncodeToString([]byte("fig of p1.png"))
	fig2 := base64.StdEncoding.EncodeToString([]byte("fig of p2.png"))
	assert.Contains(t, res.JSON, `data:image/png;base64,`+fig1)
	assert.Contains(t, res.JSON, `"question_images":["`+fig2+`"]`)
	assert.Contains(t, res.JSON, `"sub_questions":[]`)
	assert.Empty(t, res.Warnings)

	assertGone(t, fs, "/out/req1/unit1.md", "/out/req1/imgs/p1_fig.png", "/out/req1/imgs/p2_fig.png")
}

func TestPipeline_ExtractionFailureCleansUp(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(fs, "/in/a.png", tinyPNG())

	p := newTestPipeline(t, fs, &fakeCompleter{err: errors.New("connection refused")})

	_, err := p.Run(context.Background(), []string{"/in/a.png"}, "/out/r")
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageExtracted, stageErr.Stage)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExtraction))
	assert.Equal(t, 500, apperrors.GetStatusCode(err))

	assertGone(t, fs, "/out/r/a.md", "/out/r/imgs/a_fig.png")
}

func TestPipeline_RejectsBeforeExtraction(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/in/empty", 0o755))
	writeFile(fs, "/in/x.pdf", []byte("%PDF"))
	writeFile(fs, "/in/y.pdf", []byte("%PDF"))
	writeFile(fs, "/in/broken.png", []byte("nope"))

	tests := []struct {
		name    string
		inputs  []string
		stage   domain.Stage
		errType apperrors.ErrorType
		status  int
	}{
		{name: "empty directory", inputs: []string{"/in/empty"}, stage: domain.StageClassified, errType: apperrors.ErrorTypeInput, status: 400},
		{name: "two pdfs", inputs: []string{"/in/x.pdf", "/in/y.pdf"}, stage: domain.StageClassified, errType: apperrors.ErrorTypeInput, status: 400},
		{name: "no inputs", inputs: nil, stage: domain.StageClassified, errType: apperrors.ErrorTypeInput, status: 400},
		{name: "no pages", inputs: []string{"/in/broken.png"}, stage: domain.StageRecognized, errType: apperrors.ErrorTypeNoContent, status: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{response: "[]"}
			p := newTestPipeline(t, fs, completer)

			_, err := p.Run(context.Background(), tt.inputs, "/out/r")
			require.Error(t, err)

			var stageErr *domain.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.stage, stageErr.Stage)
			assert.True(t, apperrors.IsType(err, tt.errType))
			assert.Equal(t, tt.status, apperrors.GetStatusCode(err))
			assert.Equal(t, 0, completer.calls)
		})
	}
}

func TestPipeline_MalformedExtractionStillInlines(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(fs, "/in/a.png", tinyPNG())

	p := newTestPipeline(t, fs, &fakeCompleter{response: `[{"question_images": ["imgs/a_fig.png"]`})

	res, err := p.Run(context.Background(), []string{"/in/a.png", "/in/missing.png"}, "/out/r")
	require.NoError(t, err)

	fig := base64.StdEncoding.EncodeToString([]byte("fig of a.png"))
	assert.Equal(t, `[{"question_images": ["`+fig+`"]`, res.JSON)
	assert.Equal(t, []string{"input not found: /in/missing.png"}, res.Warnings)
	assertGone(t, fs, "/out/r/combined.md", "/out/r/imgs/a_fig.png")
}

func TestPipeline_ReleasesPagesOfFailedRuns(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(fs, "/in/a.png", tinyPNG())
	writeFile(fs, "/in/x.pdf", []byte("%PDF"))

	t.Run("later item fails recognition", func(t *testing.T) {
		engine := &fakeEngine{failOn: "x.pdf"}
		completer := &fakeCompleter{response: "[]"}
		p := newEnginePipeline(t, fs, engine, completer)

		for i := 0; i < 3; i++ {
			_, err := p.Run(context.Background(), []string{"/in/a.png", "/in/x.pdf"}, "/out/r")
			var stageErr *domain.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, domain.StageRecognized, stageErr.Stage)
		}
		assert.Equal(t, 0, engine.Held())
		assert.Equal(t, 0, completer.calls)
	})

	t.Run("join fails", func(t *testing.T) {
		engine := &fakeEngine{joinErr: errors.New("worker lost page records")}
		p := newEnginePipeline(t, fs, engine, &fakeCompleter{response: "[]"})

		_, err := p.Run(context.Background(), []string{"/in/a.png", "/in/x.pdf"}, "/out/r")
		var stageErr *domain.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, domain.StageAggregated, stageErr.Stage)
		assert.Equal(t, 0, engine.Held())
	})

	t.Run("successful run leaves nothing behind", func(t *testing.T) {
		engine := &fakeEngine{}
		p := newEnginePipeline(t, fs, engine, &fakeCompleter{response: "[]"})

		_, err := p.Run(context.Background(), []string{"/in/a.png", "/in/x.pdf"}, "/out/r")
		require.NoError(t, err)
		assert.Equal(t, 0, engine.Held())
	})
}

func TestPipeline_KeepsFilesOutsideWorkDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(fs, "/in/a.png", tinyPNG())
	writeFile(fs, "/home/user/notes/keep.png", []byte("user figure"))

	completer := &fakeCompleter{response: `[{"question_images":["/home/user/notes/keep.png","../../in/a.png","imgs/a_fig.png"]}]`}
	p := newTestPipeline(t, fs, completer)

	res, err := p.Run(context.Background(), []string{"/in/a.png"}, "/out/r")
	require.NoError(t, err)

	assert.Contains(t, res.JSON, base64.StdEncoding.EncodeToString([]byte("user figure")))
	assert.Contains(t, res.JSON, base64.StdEncoding.EncodeToString([]byte("fig of a.png")))
	assert.Contains(t, res.JSON, base64.StdEncoding.EncodeToString(tinyPNG()))
	for _, kept := range []string{"/home/user/notes/keep.png", "/in/a.png"} {
		exists, err := afero.Exists(fs, kept)
		require.NoError(t, err)
		assert.True(t, exists, "%s must survive the run", kept)
	}
	assertGone(t, fs, "/out/r/imgs/a_fig.png")
}
