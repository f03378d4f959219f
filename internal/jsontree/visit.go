package jsontree

// Walk visits n and its descendants depth-first in document order. When fn
// returns false the children of that node are skipped.
func Walk(n *Node, fn func(n *Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n.kind {
	case Object:
		for pair := n.fields.Oldest(); pair != nil; pair = pair.Next() {
			Walk(pair.Value, fn)
		}
	case List:
		for _, item := range n.items {
			Walk(item, fn)
		}
	}
}

// RewriteStrings replaces every string value under n with fn(value).
// Object keys are left alone.
func (n *Node) RewriteStrings(fn func(string) string) {
	Walk(n, func(c *Node) bool {
		if c.kind == String {
			c.str = fn(c.str)
		}
		return true
	})
}

// SetStr replaces the value of a string node.
func (n *Node) SetStr(s string) {
	if n.kind == String {
		n.str = s
	}
}
