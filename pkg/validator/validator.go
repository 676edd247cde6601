package validator

import (
	"strings"

	"github.com/vedran77/whiteboard/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// First returns one message for callers that can only surface a single string.
func (v ValidationErrors) First() string {
	for _, field := range []string{"name", "password", "permissions", "roomId", "userName", "element"} {
		if msg, ok := v[field]; ok {
			return msg
		}
	}
	for _, msg := range v {
		return msg
	}
	return ""
}

func ValidateRoom(name string, isPrivate bool, password string, permissions string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Room name is required")
	} else if len(name) > 100 {
		errs.Add("name", "Room name is too long")
	}

	if isPrivate && password == "" {
		errs.Add("password", "Password is required for private rooms")
	}

	if permissions != "" && permissions != string(domain.PermissionEdit) && permissions != string(domain.PermissionView) {
		errs.Add("permissions", "Permissions must be edit or view")
	}

	return errs
}

func ValidateJoin(roomID, userName string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(roomID) == "" {
		errs.Add("roomId", "Room ID is required")
	}

	userName = strings.TrimSpace(userName)
	if userName == "" {
		errs.Add("userName", "User name is required")
	} else if len(userName) > 50 {
		errs.Add("userName", "User name is too long")
	}

	return errs
}

func ValidateElement(el domain.Element) ValidationErrors {
	errs := make(ValidationErrors)

	switch el.Type {
	case domain.ElementPath:
		if el.Path == nil {
			errs.Add("element", "Path element is empty")
			break
		}
		if el.Path.Tool != domain.ToolPen && el.Path.Tool != domain.ToolEraser {
			errs.Add("tool", "Path tool must be pen or eraser")
		}
		if el.Path.StrokeWidth < 0 {
			errs.Add("strokeWidth", "Stroke width cannot be negative")
		}
	case domain.ElementShape:
		if el.Shape == nil {
			errs.Add("element", "Shape element is empty")
			break
		}
		if el.Shape.Kind != domain.ShapeRectangle && el.Shape.Kind != domain.ShapeCircle {
			errs.Add("kind", "Shape kind must be rectangle or circle")
		}
		if el.Shape.StrokeWidth < 0 {
			errs.Add("strokeWidth", "Stroke width cannot be negative")
		}
	case domain.ElementText:
		if el.Text == nil {
			errs.Add("element", "Text element is empty")
			break
		}
		if el.Text.FontSize < 0 {
			errs.Add("fontSize", "Font size cannot be negative")
		}
	default:
		errs.Add("element", "Element type must be path, shape or text")
		return errs
	}

	if strings.TrimSpace(el.ID()) == "" {
		errs.Add("id", "Element ID is required")
	}

	return errs
}
