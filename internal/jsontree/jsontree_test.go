package jsontree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTripKeepsKeyOrder(t *testing.T) {
	in := `{"z":1,"a":[true,null,"x"],"m":{"b":2.50,"a":"<b>&"}}`

	n, err := ParseString(in)
	require.NoError(t, err)

	out, err := Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
	assert.Equal(t, []string{"z", "a", "m"}, n.Keys())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "whitespace only", in: "   \n"},
		{name: "truncated", in: `{"a":`},
		{name: "trailing value", in: `[1] [2]`},
		{name: "trailing garbage", in: `{"a":1} x`},
		{name: "prose", in: "here is your json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestParse_TrailingWhitespaceAllowed(t *testing.T) {
	n, err := ParseString("  [\"a\"]\n\n")
	require.NoError(t, err)
	assert.Equal(t, List, n.Kind())
	assert.Equal(t, 1, n.Len())
}

func TestMarshalIndent(t *testing.T) {
	n, err := ParseString(`[{"a":"中文","b":[],"c":{}},1]`)
	require.NoError(t, err)

	out, err := MarshalIndent(n, "    ")
	require.NoError(t, err)

	want := "[\n" +
		"    {\n" +
		"        \"a\": \"中文\",\n" +
		"        \"b\": [],\n" +
		"        \"c\": {}\n" +
		"    },\n" +
		"    1\n" +
		"]"
	assert.Equal(t, want, string(out))
}

func TestSet_ExistingKeyKeepsPosition(t *testing.T) {
	n := NewObject()
	n.Set("a", NewString("1"))
	n.Set("b", NewString("2"))
	n.Set("a", NewString("3"))

	assert.Equal(t, `{"a":"3","b":"2"}`, n.String())
}

func TestRewriteStrings_LeavesKeysAndScalars(t *testing.T) {
	n, err := ParseString(`{"imgs/a.png":"imgs/a.png","n":3,"l":["imgs/b.png",{"k":"v"}]}`)
	require.NoError(t, err)

	n.RewriteStrings(func(s string) string { return "<" + s + ">" })

	assert.Equal(t, `{"imgs/a.png":"<imgs/a.png>","n":3,"l":["<imgs/b.png>",{"k":"<v>"}]}`, n.String())
}

func TestWalk_SkipsChildren(t *testing.T) {
	n, err := ParseString(`{"skip":{"x":"1"},"keep":{"y":"2"}}`)
	require.NoError(t, err)
	skip, _ := n.Get("skip")

	var seen []string
	Walk(n, func(c *Node) bool {
		if c.Kind() == String {
			seen = append(seen, c.Str())
		}
		return c != skip
	})
	assert.Equal(t, []string{"2"}, seen)
}
