package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElement_UnmarshalVariants(t *testing.T) {
	raw := `[
		{"type":"path","id":"p1","tool":"pen","points":[{"x":1,"y":2},{"x":3,"y":4}],"color":"#000","strokeWidth":2,"timestamp":10},
		{"type":"shape","id":"s1","kind":"circle","startPoint":{"x":0,"y":0},"endPoint":{"x":5,"y":5},"color":"#f00","strokeWidth":1,"filled":true,"timestamp":11},
		{"type":"text","id":"t1","position":{"x":7,"y":8},"text":"hi","color":"#00f","fontSize":16,"timestamp":12}
	]`

	var els []Element
	require.NoError(t, json.Unmarshal([]byte(raw), &els))
	require.Len(t, els, 3)

	require.Equal(t, ElementPath, els[0].Type)
	require.Equal(t, "p1", els[0].ID())
	require.Len(t, els[0].Path.Points, 2)
	require.Equal(t, ToolPen, els[0].Path.Tool)

	require.Equal(t, ElementShape, els[1].Type)
	require.Equal(t, ShapeCircle, els[1].Shape.Kind)
	require.True(t, els[1].Shape.Filled)
	require.Equal(t, int64(11), els[1].Timestamp())

	require.Equal(t, ElementText, els[2].Type)
	require.Equal(t, "hi", els[2].Text.Text)
	require.Nil(t, els[2].Path)
}

func TestElement_UnknownType(t *testing.T) {
	var el Element
	err := json.Unmarshal([]byte(`{"id":"x","points":[]}`), &el)
	require.ErrorIs(t, err, ErrUnknownElementType)

	_, err = json.Marshal(Element{Type: "blob"})
	require.ErrorIs(t, err, ErrUnknownElementType)
}

func TestElement_MarshalCarriesDiscriminant(t *testing.T) {
	el := NewShapeElement(Shape{ID: "s1", Kind: ShapeRectangle, Timestamp: 5})
	data, err := json.Marshal(el)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Equal(t, "shape", fields["type"])
	require.Equal(t, "rectangle", fields["kind"])
	require.Equal(t, "s1", fields["id"])
}

func TestElement_Clone(t *testing.T) {
	orig := NewPathElement(Path{ID: "p1", Points: []Point{{X: 1, Y: 1}}})
	cp := orig.Clone()

	cp.Path.Points[0].X = 99
	cp.Path.Points = append(cp.Path.Points, Point{X: 2, Y: 2})

	require.Equal(t, float64(1), orig.Path.Points[0].X)
	require.Len(t, orig.Path.Points, 1)
}

func TestRoom_CanEdit(t *testing.T) {
	require.True(t, (&Room{Permissions: PermissionEdit}).CanEdit())
	require.False(t, (&Room{Permissions: PermissionView}).CanEdit())
}
