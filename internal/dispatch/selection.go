package dispatch

import (
	"fmt"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/outline"
)

// Selection is the operand of a contextual command: the cursor, or the
// range between an anchor and the cursor in visual mode.
type Selection struct {
	Anchor outline.Cursor
	Cursor outline.Cursor
	Visual bool
}

// Shape is what a selection resolves to.
type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeCursor
	ShapeLines
	ShapeSections
)

func (s Shape) String() string {
	switch s {
	case ShapeCursor:
		return "cursor"
	case ShapeLines:
		return "lines"
	case ShapeSections:
		return "sections"
	default:
		return "invalid"
	}
}

// Target is a classified selection. Lines targets cover hunk lines From..To
// of the single section in Sections.
type Target struct {
	Shape    Shape
	Kind     outline.Kind
	Sections []outline.Address
	From, To int
}

// Classify resolves a selection against the tree. A visual range is valid
// when both ends lie in one hunk, or when it covers sections of one kind;
// group headers at either end are ignored when the other end is not a group.
func Classify(t *outline.Tree, sel Selection) (Target, error) {
	if t == nil {
		return Target{}, diff.ErrInvalidSelection
	}
	if !sel.Visual {
		if _, ok := t.Lookup(sel.Cursor.Addr); !ok {
			return Target{}, fmt.Errorf("cursor on %s: %w", sel.Cursor.Addr, diff.ErrInvalidSelection)
		}
		return Target{Shape: ShapeCursor, Kind: sel.Cursor.Addr.Kind, Sections: []outline.Address{sel.Cursor.Addr}}, nil
	}

	a, c := sel.Anchor, sel.Cursor
	ai, ok := t.RowIndex(a)
	if !ok {
		return Target{}, fmt.Errorf("selection anchor is hidden: %w", diff.ErrInvalidSelection)
	}
	ci, ok := t.RowIndex(c)
	if !ok {
		return Target{}, fmt.Errorf("selection cursor is hidden: %w", diff.ErrInvalidSelection)
	}
	if ai > ci {
		a, c, ai, ci = c, a, ci, ai
	}

	if a.Line > 0 || c.Line > 0 {
		if a.Addr != c.Addr || !a.Addr.Kind.IsHunk() {
			return Target{}, fmt.Errorf("line range spans %s and %s: %w", a.Addr, c.Addr, diff.ErrInvalidSelection)
		}
		return Target{Shape: ShapeLines, Kind: a.Addr.Kind, Sections: []outline.Address{a.Addr}, From: max(a.Line, 1), To: c.Line}, nil
	}

	kind := a.Addr.Kind
	if kc := c.Addr.Kind; kc != kind {
		switch {
		case kind.IsGroup() && !kc.IsGroup():
			kind = kc
		case kc.IsGroup() && !kind.IsGroup():
		default:
			return Target{}, fmt.Errorf("selection mixes %s and %s: %w", kind, kc, diff.ErrInvalidSelection)
		}
	}
	var addrs []outline.Address
	for _, r := range t.Rows()[ai : ci+1] {
		if !r.IsLine() && r.Addr.Kind == kind {
			addrs = append(addrs, r.Addr)
		}
	}
	return Target{Shape: ShapeSections, Kind: kind, Sections: addrs}, nil
}
