package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

// The typed mirror and the ordered key lists must describe the same schema.
func TestQuestion_KeysMatchStruct(t *testing.T) {
	data, err := json.Marshal(NewQuestion())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	assertKeyOrder(t, string(data), QuestionKeys)

	sub, err := json.Marshal(SubQuestion{Option: []string{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	assertKeyOrder(t, string(sub), SubQuestionKeys)
}

func TestNewQuestion_EmptyListsNotNull(t *testing.T) {
	data, _ := json.Marshal(NewQuestion())
	if strings.Contains(string(data), "null") {
		t.Fatalf("expected no null values, got %s", data)
	}
}

func assertKeyOrder(t *testing.T, doc string, keys []SchemaField) {
	t.Helper()
	last := -1
	for _, f := range keys {
		idx := strings.Index(doc, `"`+f.Key+`":`)
		if idx < 0 {
			t.Fatalf("key %s missing from %s", f.Key, doc)
		}
		if idx < last {
			t.Fatalf("key %s out of order in %s", f.Key, doc)
		}
		last = idx
		want := `"`
		if f.Kind == FieldList {
			want = `[`
		}
		if !strings.HasPrefix(doc[idx+len(f.Key)+3:], want) {
			t.Fatalf("key %s has unexpected empty value in %s", f.Key, doc)
		}
	}
}
