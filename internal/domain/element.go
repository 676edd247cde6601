package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ElementType is the discriminant of the Element union.
type ElementType string

const (
	ElementPath  ElementType = "path"
	ElementShape ElementType = "shape"
	ElementText  ElementType = "text"
)

type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
)

type Path struct {
	ID          string  `json:"id"`
	Tool        Tool    `json:"tool"`
	Points      []Point `json:"points"`
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
	Timestamp   int64   `json:"timestamp"`
}

type Shape struct {
	ID          string    `json:"id"`
	Kind        ShapeKind `json:"kind"`
	StartPoint  Point     `json:"startPoint"`
	EndPoint    Point     `json:"endPoint"`
	Color       string    `json:"color"`
	StrokeWidth float64   `json:"strokeWidth"`
	Filled      bool      `json:"filled"`
	Timestamp   int64     `json:"timestamp"`
}

type Text struct {
	ID        string  `json:"id"`
	Position  Point   `json:"position"`
	Text      string  `json:"text"`
	Color     string  `json:"color"`
	FontSize  float64 `json:"fontSize"`
	Timestamp int64   `json:"timestamp"`
}

var ErrUnknownElementType = errors.New("unknown element type")

// Element is one drawable unit. Exactly one of Path, Shape or Text is set,
// selected by Type.
type Element struct {
	Type  ElementType
	Path  *Path
	Shape *Shape
	Text  *Text
}

func NewPathElement(p Path) Element   { return Element{Type: ElementPath, Path: &p} }
func NewShapeElement(s Shape) Element { return Element{Type: ElementShape, Shape: &s} }
func NewTextElement(t Text) Element   { return Element{Type: ElementText, Text: &t} }

// ID returns the room-unique identifier of the wrapped variant.
func (e Element) ID() string {
	switch e.Type {
	case ElementPath:
		if e.Path != nil {
			return e.Path.ID
		}
	case ElementShape:
		if e.Shape != nil {
			return e.Shape.ID
		}
	case ElementText:
		if e.Text != nil {
			return e.Text.ID
		}
	}
	return ""
}

// Timestamp returns the creation timestamp (unix millis) carried by the variant.
func (e Element) Timestamp() int64 {
	switch e.Type {
	case ElementPath:
		if e.Path != nil {
			return e.Path.Timestamp
		}
	case ElementShape:
		if e.Shape != nil {
			return e.Shape.Timestamp
		}
	case ElementText:
		if e.Text != nil {
			return e.Text.Timestamp
		}
	}
	return 0
}

func (e Element) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case ElementPath:
		if e.Path == nil {
			break
		}
		return json.Marshal(struct {
			Type ElementType `json:"type"`
			*Path
		}{e.Type, e.Path})
	case ElementShape:
		if e.Shape == nil {
			break
		}
		return json.Marshal(struct {
			Type ElementType `json:"type"`
			*Shape
		}{e.Type, e.Shape})
	case ElementText:
		if e.Text == nil {
			break
		}
		return json.Marshal(struct {
			Type ElementType `json:"type"`
			*Text
		}{e.Type, e.Text})
	}
	return nil, fmt.Errorf("marshal element %q: %w", e.Type, ErrUnknownElementType)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ElementType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Type {
	case ElementPath:
		var p Path
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*e = NewPathElement(p)
	case ElementShape:
		var s Shape
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = NewShapeElement(s)
	case ElementText:
		var t Text
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*e = NewTextElement(t)
	default:
		return fmt.Errorf("unmarshal element %q: %w", head.Type, ErrUnknownElementType)
	}
	return nil
}

// Clone returns a deep copy so stored elements never alias caller memory.
func (e Element) Clone() Element {
	out := Element{Type: e.Type}
	if e.Path != nil {
		p := *e.Path
		p.Points = append([]Point(nil), e.Path.Points...)
		out.Path = &p
	}
	if e.Shape != nil {
		s := *e.Shape
		out.Shape = &s
	}
	if e.Text != nil {
		t := *e.Text
		out.Text = &t
	}
	return out
}
