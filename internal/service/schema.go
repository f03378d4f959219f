package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"exam-parser/internal/domain"
	"exam-parser/internal/jsontree"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaNormalizer completes extraction results so that every question and
// sub-question carries the full key set in template order.
type SchemaNormalizer struct {
	schema *jsonschema.Schema
	logger domain.Logger
}

// NewSchemaNormalizer compiles the Question schema.
func NewSchemaNormalizer(logger domain.Logger) (*SchemaNormalizer, error) {
	b, err := json.Marshal(questionSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("question.schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("question.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &SchemaNormalizer{schema: schema, logger: logger}, nil
}

// Normalize fills missing keys of every question object with "" or [] and moves
// template keys to template order, keeping unknown keys after them. Candidates
// that do not parse are returned unchanged. Remaining schema violations are
// logged, not fixed.
func (s *SchemaNormalizer) Normalize(candidate string) string {
	root, err := jsontree.ParseString(candidate)
	if err != nil {
		return candidate
	}

	switch root.Kind() {
	case jsontree.List:
		items := root.Items()
		for i, item := range items {
			items[i] = normalizeObject(item, domain.QuestionKeys)
		}
	case jsontree.Object:
		root = normalizeObject(root, domain.QuestionKeys)
	default:
		return candidate
	}

	out, err := jsontree.Marshal(root)
	if err != nil {
		return candidate
	}
	if err := s.Validate(out); err != nil {
		s.logger.Warn("Extraction result does not match the question schema", "error", err)
	}
	return string(out)
}

// Validate checks a serialized result against the Question schema.
func (s *SchemaNormalizer) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func normalizeObject(n *jsontree.Node, keys []domain.SchemaField) *jsontree.Node {
	if n.Kind() != jsontree.Object {
		return n
	}

	out := jsontree.NewObject()
	known := make(map[string]bool, len(keys))
	for _, f := range keys {
		known[f.Key] = true
		v, ok := n.Get(f.Key)
		if !ok || (v.Kind() == jsontree.Scalar && v.Raw() == "null") {
			v = emptyValue(f.Kind)
		}
		out.Set(f.Key, v)
	}
	n.Each(func(key string, value *jsontree.Node) {
		if !known[key] {
			out.Set(key, value)
		}
	})

	if subs, ok := out.Get(domain.KeySubQuestions); ok && subs.Kind() == jsontree.List {
		items := subs.Items()
		for i, item := range items {
			items[i] = normalizeObject(item, domain.SubQuestionKeys)
		}
	}
	return out
}

func emptyValue(kind domain.FieldKind) *jsontree.Node {
	if kind == domain.FieldList {
		return jsontree.NewList()
	}
	return jsontree.NewString("")
}

func questionSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"$defs": map[string]any{
			"question":    objectSchema(domain.QuestionKeys, "#/$defs/subQuestion"),
			"subQuestion": objectSchema(domain.SubQuestionKeys, "#/$defs/subQuestion"),
		},
		"oneOf": []any{
			map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/question"}},
			map[string]any{"$ref": "#/$defs/question"},
		},
	}
}

func objectSchema(keys []domain.SchemaField, subRef string) map[string]any {
	props := map[string]any{}
	required := make([]string, 0, len(keys))
	for _, f := range keys {
		required = append(required, f.Key)
		switch {
		case f.Key == domain.KeySubQuestions:
			props[f.Key] = map[string]any{"type": "array", "items": map[string]any{"$ref": subRef}}
		case f.Kind == domain.FieldList:
			props[f.Key] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
		default:
			props[f.Key] = map[string]any{"type": "string"}
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
