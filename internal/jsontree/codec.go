package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrTrailingData is returned when a document holds more than one value.
var ErrTrailingData = errors.New("jsontree: trailing data after top-level value")

// Parse strictly decodes a single JSON document.
func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := parseValue(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("jsontree: empty document: %w", err)
		}
		return nil, fmt.Errorf("jsontree: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return n, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (*Node, error) {
	return Parse([]byte(s))
}

func parseValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return parseObject(dec)
		case '[':
			return parseList(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return NewString(v), nil
	case json.Number:
		return NewScalar(v.String()), nil
	case bool:
		if v {
			return NewScalar("true"), nil
		}
		return NewScalar("false"), nil
	case nil:
		return Null(), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseObject(dec *json.Decoder) (*Node, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, not string", tok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseList(dec *json.Decoder) (*Node, error) {
	items := []*Node{}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		items = append(items, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

// Marshal serializes n compactly. HTML characters and non-ASCII text are
// written as-is.
func Marshal(n *Node) ([]byte, error) {
	return MarshalIndent(n, "")
}

// MarshalIndent serializes n with one indent per nesting level and ": "
// between keys and values. An empty indent yields the compact form.
func MarshalIndent(n *Node, indent string) ([]byte, error) {
	e := &encoder{indent: indent}
	e.enc = json.NewEncoder(&e.scratch)
	e.enc.SetEscapeHTML(false)
	if err := e.write(n, 0); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// String returns the compact serialization, or "" if it fails.
func (n *Node) String() string {
	b, err := Marshal(n)
	if err != nil {
		return ""
	}
	return string(b)
}

type encoder struct {
	buf     bytes.Buffer
	scratch bytes.Buffer
	enc     *json.Encoder
	indent  string
}

func (e *encoder) write(n *Node, depth int) error {
	switch n.kind {
	case String:
		return e.writeString(n.str)
	case Scalar:
		e.buf.WriteString(n.raw)
		return nil
	case List:
		if len(n.items) == 0 {
			e.buf.WriteString("[]")
			return nil
		}
		e.buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.newline(depth + 1)
			if err := e.write(item, depth+1); err != nil {
				return err
			}
		}
		e.newline(depth)
		e.buf.WriteByte(']')
		return nil
	case Object:
		if n.fields.Len() == 0 {
			e.buf.WriteString("{}")
			return nil
		}
		e.buf.WriteByte('{')
		i := 0
		for pair := n.fields.Oldest(); pair != nil; pair = pair.Next() {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			i++
			e.newline(depth + 1)
			if err := e.writeString(pair.Key); err != nil {
				return err
			}
			e.buf.WriteByte(':')
			if e.indent != "" {
				e.buf.WriteByte(' ')
			}
			if err := e.write(pair.Value, depth+1); err != nil {
				return err
			}
		}
		e.newline(depth)
		e.buf.WriteByte('}')
		return nil
	}
	return fmt.Errorf("jsontree: unknown node kind %d", n.kind)
}

func (e *encoder) writeString(s string) error {
	e.scratch.Reset()
	if err := e.enc.Encode(s); err != nil {
		return err
	}
	e.buf.Write(bytes.TrimSuffix(e.scratch.Bytes(), []byte{'\n'}))
	return nil
}

func (e *encoder) newline(depth int) {
	if e.indent == "" {
		return
	}
	e.buf.WriteByte('\n')
	e.buf.WriteString(strings.Repeat(e.indent, depth))
}
