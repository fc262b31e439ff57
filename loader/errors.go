package loader

import (
	"fmt"

	"github.com/nathoo/storyscript/types"
)

// ParseError reports a malformed construct in a chapter document.
type ParseError struct {
	Section string
	Line    int // 1-based within the section body, 0 when unknown
	Msg     string
	Err     error
}

func (e *ParseError) Error() string {
	where := fmt.Sprintf("section <<%s>>", e.Section)
	if e.Section == "" {
		where = "document"
	}
	if e.Line > 0 {
		where += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReferenceError reports an id that did not resolve to the expected kind of
// entity once the whole document was parsed.
type ReferenceError struct {
	Kind       RefKind
	ID         string
	ActionType types.ActionType // empty when no action demanded the reference
	Section    string
	Reason     string
}

func (e *ReferenceError) Error() string {
	msg := fmt.Sprintf("%s %q %s", e.Kind, e.ID, e.Reason)
	if e.ActionType != "" {
		msg += fmt.Sprintf(" (referenced by %s)", e.ActionType)
	}
	if e.Section != "" {
		msg += fmt.Sprintf(" in <<%s>>", e.Section)
	}
	return msg
}
