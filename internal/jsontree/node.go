// Package jsontree is an order-preserving JSON value tree.
//
// A Node is a tagged variant over object, list, string and other scalars
// (numbers, booleans, null). Objects keep their keys in document order so
// that a parse/serialize round trip only changes what a caller rewrote.
package jsontree

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	Object Kind = iota
	List
	String
	Scalar
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case List:
		return "list"
	case String:
		return "string"
	default:
		return "scalar"
	}
}

// Node is one JSON value.
type Node struct {
	kind   Kind
	fields *orderedmap.OrderedMap[string, *Node]
	items  []*Node
	str    string
	// raw is the literal text of a scalar: a number, true, false or null.
	raw string
}

// NewObject returns an empty object node.
func NewObject() *Node {
	return &Node{kind: Object, fields: orderedmap.New[string, *Node]()}
}

// NewList returns a list node holding items.
func NewList(items ...*Node) *Node {
	if items == nil {
		items = []*Node{}
	}
	return &Node{kind: List, items: items}
}

// NewString returns a string node.
func NewString(s string) *Node {
	return &Node{kind: String, str: s}
}

// NewScalar returns a scalar node from its JSON literal.
func NewScalar(raw string) *Node {
	return &Node{kind: Scalar, raw: raw}
}

// Null returns a null scalar.
func Null() *Node {
	return NewScalar("null")
}

func (n *Node) Kind() Kind { return n.kind }

// Str returns the value of a string node and "" for other kinds.
func (n *Node) Str() string { return n.str }

// Raw returns the literal of a scalar node.
func (n *Node) Raw() string { return n.raw }

// Items returns the elements of a list node.
func (n *Node) Items() []*Node { return n.items }

// SetItems replaces the elements of a list node.
func (n *Node) SetItems(items []*Node) { n.items = items }

// Len is the number of fields or items.
func (n *Node) Len() int {
	switch n.kind {
	case Object:
		return n.fields.Len()
	case List:
		return len(n.items)
	}
	return 0
}

// Get returns the value stored under key of an object node.
func (n *Node) Get(key string) (*Node, bool) {
	if n.kind != Object {
		return nil, false
	}
	return n.fields.Get(key)
}

// Set stores value under key. An existing key keeps its position.
func (n *Node) Set(key string, value *Node) {
	if n.kind != Object {
		return
	}
	n.fields.Set(key, value)
}

// Keys returns the object keys in order.
func (n *Node) Keys() []string {
	if n.kind != Object {
		return nil
	}
	keys := make([]string, 0, n.fields.Len())
	for pair := n.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each calls fn for every field of an object node in order.
func (n *Node) Each(fn func(key string, value *Node)) {
	if n.kind != Object {
		return
	}
	for pair := n.fields.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}
