package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"exam-parser/internal/domain"
	apperrors "exam-parser/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	respond  func(userText string) (string, error)
	wait     bool
	calls    int
	system   string
	user     string
}

func (c *fakeCompleter) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.system, c.user = systemPrompt, userText
	c.mu.Unlock()
	if c.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if c.respond != nil {
		return c.respond(userText)
	}
	return c.response, c.err
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "json fence", in: "Here:\n```json\n[{\"a\":1}]\n```\nbye", want: `[{"a":1}]`},
		{name: "bare fence", in: "```\n[]\n```", want: "[]"},
		{name: "first block wins", in: "```json\n[1]\n```\n```json\n[2]\n```", want: "[1]"},
		{name: "no fence", in: "  \n[{\"a\":1}]\n ", want: `[{"a":1}]`},
		{name: "unterminated fence", in: "```json\n[1]", want: "```json\n[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}

func TestExtract_SendsPromptAndStripsFence(t *testing.T) {
	c := &fakeCompleter{response: "```json\n[{\"question_id\":\"1\"}]\n```"}
	adapter := NewExtractionAdapter(c, time.Second, nopLogger{})

	out, err := adapter.Extract(context.Background(), "# 第1题")
	require.NoError(t, err)

	assert.Equal(t, `[{"question_id":"1"}]`, out)
	assert.Equal(t, UserPromptPrefix+"# 第1题", c.user)
	assert.Contains(t, c.system, `"question_images": []`)
	assert.Contains(t, c.system, `"sub_questions": [`)
}

func TestExtract_Failures(t *testing.T) {
	t.Run("endpoint error", func(t *testing.T) {
		adapter := NewExtractionAdapter(&fakeCompleter{err: errors.New("502 bad gateway")}, time.Second, nopLogger{})
		_, err := adapter.Extract(context.Background(), "x")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExtraction))
	})

	t.Run("timeout", func(t *testing.T) {
		adapter := NewExtractionAdapter(&fakeCompleter{wait: true}, 10*time.Millisecond, nopLogger{})
		_, err := adapter.Extract(context.Background(), "x")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExtraction))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSystemPrompt_TemplateHasEveryKeyInOrder(t *testing.T) {
	prompt := SystemPrompt()
	tmpl := prompt[strings.Index(prompt, "[\n"):]

	last := -1
	for _, f := range domain.QuestionKeys {
		idx := strings.Index(tmpl, `"`+f.Key+`":`)
		require.GreaterOrEqual(t, idx, 0, f.Key)
		assert.Greater(t, idx, last, f.Key)
		last = idx
	}
}
