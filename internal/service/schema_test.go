package service

import (
	"strings"
	"testing"

	"exam-parser/internal/domain"
	"exam-parser/internal/jsontree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNormalizer(t *testing.T) *SchemaNormalizer {
	t.Helper()
	n, err := NewSchemaNormalizer(nopLogger{})
	require.NoError(t, err)
	return n
}

func TestNormalize_CompletesEveryKey(t *testing.T) {
	s := newNormalizer(t)

	candidate := `[{"answer":"A","question_content":"1+1=?","extra":"kept","grade":null,` +
		`"sub_questions":[{"question":"(1) x","sub_questions":[{"option":["A. 1"]}]}]},` +
		`{"question_id":"2"}]`

	out := s.Normalize(candidate)
	require.NoError(t, s.Validate([]byte(out)))

	root, err := jsontree.ParseString(out)
	require.NoError(t, err)
	require.Equal(t, 2, root.Len())

	first := root.Items()[0]
	keys := first.Keys()
	require.Len(t, keys, len(domain.QuestionKeys)+1)
	for i, f := range domain.QuestionKeys {
		assert.Equal(t, f.Key, keys[i])
	}
	assert.Equal(t, "extra", keys[len(keys)-1])

	grade, _ := first.Get("grade")
	assert.Equal(t, jsontree.String, grade.Kind())

	subs, _ := first.Get(domain.KeySubQuestions)
	sub := subs.Items()[0]
	subKeys := sub.Keys()
	for i, f := range domain.SubQuestionKeys {
		assert.Equal(t, f.Key, subKeys[i])
	}
	nested, ok := sub.Get(domain.KeySubQuestions)
	require.True(t, ok)
	assert.Equal(t, len(domain.SubQuestionKeys), nested.Items()[0].Len())

	assert.True(t, strings.HasPrefix(root.Items()[1].String(), `{"question_id":"2","grade":"",`))
}

func TestNormalize_SingleObject(t *testing.T) {
	s := newNormalizer(t)

	out := s.Normalize(`{"question_id":"7"}`)
	require.NoError(t, s.Validate([]byte(out)))
	assert.Contains(t, out, `"question_images":[]`)
}

func TestNormalize_PassThrough(t *testing.T) {
	s := newNormalizer(t)

	for _, in := range []string{"not json", `[{"a":1}`, `"just a string"`, `42`} {
		assert.Equal(t, in, s.Normalize(in))
	}
}

func TestValidate_RejectsWrongTypes(t *testing.T) {
	s := newNormalizer(t)

	out := s.Normalize(`[{"question_id":3,"question_images":"imgs/a.png"}]`)
	assert.Error(t, s.Validate([]byte(out)))
}
