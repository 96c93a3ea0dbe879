package phlex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDotAttributes_String renders comma-separated attributes inside
// brackets, skipping empty fields.
func TestDotAttributes_String(t *testing.T) {
	assert.Equal(t, "[]", DotAttributes{}.String())

	assert.Equal(t, "[color=red]", DotAttributes{Color: "red"}.String())

	full := DotAttributes{
		Color:     "red",
		Fontcolor: "black",
		Fontsize:  "12",
		Label:     "plus_one",
		Shape:     "ellipse",
		Style:     "dashed",
	}
	assert.Equal(t,
		`[color=red, fontcolor=black, fontsize=12, label=" plus_one", shape=ellipse, style=dashed]`,
		full.String())

	// No leading comma when the first attributes are empty.
	assert.Equal(t, "[shape=box, style=bold]",
		DotAttributes{Shape: "box", Style: "bold"}.String())
}

// TestCompiledGraph_Dot emits every node and edge of the topology.
func TestCompiledGraph_Dot(t *testing.T) {
	g := NewGraph()
	g.Source("gen", emptySource).Provides("a")
	g.With("plus_one", Apply1(func(a int) int { return a + 1 }), Unlimited).
		Transform("a").To("b")
	g.Observe("verify", Observe1(func(int) {}), Serial).InputFamily("b")

	cg, err := g.Compile()
	require.NoError(t, err)

	dot := cg.Dot()
	assert.Contains(t, dot, "digraph phlex {")
	assert.Contains(t, dot, `"gen"`)
	assert.Contains(t, dot, `"plus_one"`)
	assert.Contains(t, dot, `"verify"`)
	assert.Contains(t, dot, `"gen" -> "plus_one" [label="a"];`)
	assert.Contains(t, dot, `"plus_one" -> "verify" [label="b"];`)
}
