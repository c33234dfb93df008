package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/ir"
)

func TestParseAnnotation(t *testing.T) {
	classes := map[string]bool{"Node": true}
	tests := []struct {
		src  string
		want ir.Type
	}{
		{"int", ir.IntType},
		{"None", ir.UnitType},
		{"list[int]", ir.Seq{Elem: ir.IntType}},
		{"List[str]", ir.Seq{Elem: ir.StrType}},
		{"dict[str, float]", ir.Map{Key: ir.StrType, Value: ir.FloatType}},
		{"typing.Dict[str, int]", ir.Map{Key: ir.StrType, Value: ir.IntType}},
		{"set[int]", ir.Set{Elem: ir.IntType}},
		{"tuple[int, str]", ir.Tuple{Elems: []ir.Type{ir.IntType, ir.StrType}}},
		{"tuple[int, ...]", ir.Seq{Elem: ir.IntType}},
		{"Optional[Node]", ir.Optional{Inner: ir.Generic{Name: "Node"}}},
		{"Node | None", ir.Optional{Inner: ir.Generic{Name: "Node"}}},
		{"Union[int, None]", ir.Optional{Inner: ir.IntType}},
		{"Union[int, str]", ir.AnyType},
		{"'Node'", ir.Generic{Name: "Node"}},
		{"Callable[[int, int], bool]", ir.Func{Params: []ir.Type{ir.IntType, ir.IntType}, Result: ir.BoolType}},
		{"list", ir.Seq{Elem: ir.Unresolved}},
		{"Unknown", ir.AnyType},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := ParseAnnotation(tt.src, classes)
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseAnnotationSyntaxError(t *testing.T) {
	_, err := ParseAnnotation("list[", nil)
	assert.Error(t, err)
}
