// Package outline turns a repository snapshot into a collapsible tree of
// sections with stable addresses, and flattens it into visible rows.
package outline

import (
	"strconv"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/gitx"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
)

// Address identifies a section across refreshes. Key is a path, stash
// index, commit hash or tag name; Index is the hunk index within its file.
type Address struct {
	Kind  Kind
	Key   string
	Index int
}

func (a Address) String() string {
	s := a.Kind.String()
	if a.Key != "" {
		s += ":" + a.Key
	}
	if a.Kind.IsHunk() {
		s += "#" + strconv.Itoa(a.Index)
	}
	return s
}

// Section is one node of the outline. Children are owned exclusively.
type Section struct {
	Addr      Address
	Title     string
	Collapsed bool
	Children  []*Section

	// File is set on file and hunk sections that have a diff.
	File  *diff.FileDiff
	Entry gitx.StatusEntry
	// Detail is the full ref or hash a commit, stash or tag section refers to.
	Detail string
}

// Hunk returns the hunk of a hunk section.
func (s *Section) Hunk() (diff.Hunk, bool) {
	if !s.Addr.Kind.IsHunk() || s.File == nil {
		return diff.Hunk{}, false
	}
	return s.File.Hunk(s.Addr.Index)
}

// Foldable reports whether collapsing the section hides anything.
func (s *Section) Foldable() bool {
	if len(s.Children) > 0 {
		return true
	}
	h, ok := s.Hunk()
	return ok && len(h.Lines) > 0
}

// Row is one visible line of the flattened tree. Line is 0 for a section
// header and the 1-based hunk line position otherwise.
type Row struct {
	Addr      Address
	Line      int
	Depth     int
	Text      string
	Origin    diff.Origin
	Collapsed bool
	Foldable  bool
}

// IsLine reports whether the row is a diff line rather than a header.
func (r Row) IsLine() bool { return r.Line > 0 }

// Cursor is a position in the tree.
type Cursor struct {
	Addr Address
	Line int
}

// Tree is an outline built from one snapshot. Only the interaction loop
// changes it, and only its collapse flags.
type Tree struct {
	Root  *Section
	State *snapshot.State

	index  map[Address]*Section
	hunks  map[hunkID]*Section
	parent map[Address]Address
	rows   []Row
	rowIdx map[Cursor]int
}

func newTree(root *Section, st *snapshot.State) *Tree {
	t := &Tree{
		Root:   root,
		State:  st,
		index:  make(map[Address]*Section),
		hunks:  make(map[hunkID]*Section),
		parent: make(map[Address]Address),
	}
	var walk func(s *Section)
	walk = func(s *Section) {
		t.index[s.Addr] = s
		if h, ok := s.Hunk(); ok {
			t.hunks[hunkIDOf(s.Addr, h)] = s
		}
		for _, c := range s.Children {
			t.parent[c.Addr] = s.Addr
			walk(c)
		}
	}
	walk(root)
	t.flatten()
	return t
}

// hunkID names a hunk by a start line that staging other hunks of the same
// file does not move: the work tree side for unstaged hunks and the HEAD
// side for staged ones.
type hunkID struct {
	Kind  Kind
	Path  string
	Start int
}

func hunkIDOf(a Address, h diff.Hunk) hunkID {
	start := h.NewStart
	if a.Kind == KindStagedHunk {
		start = h.OldStart
	}
	return hunkID{Kind: a.Kind, Path: a.Key, Start: start}
}

// Lookup finds the section at a.
func (t *Tree) Lookup(a Address) (*Section, bool) {
	s, ok := t.index[a]
	return s, ok
}

// Parent returns the address of a's parent. The root has none.
func (t *Tree) Parent(a Address) (Address, bool) {
	p, ok := t.parent[a]
	return p, ok
}

// Siblings returns the sections sharing a's parent, a included.
func (t *Tree) Siblings(a Address) []*Section {
	p, ok := t.parent[a]
	if !ok {
		return nil
	}
	return t.index[p].Children
}

func (t *Tree) sibling(a Address, delta int) (Address, bool) {
	sibs := t.Siblings(a)
	for i, s := range sibs {
		if s.Addr == a {
			if j := i + delta; j >= 0 && j < len(sibs) {
				return sibs[j].Addr, true
			}
			return Address{}, false
		}
	}
	return Address{}, false
}

// NextSibling returns the section after a under the same parent.
func (t *Tree) NextSibling(a Address) (Address, bool) { return t.sibling(a, 1) }

// PrevSibling returns the section before a under the same parent.
func (t *Tree) PrevSibling(a Address) (Address, bool) { return t.sibling(a, -1) }

// Rows returns the visible rows.
func (t *Tree) Rows() []Row { return t.rows }

// RowIndex returns the row of c, if visible.
func (t *Tree) RowIndex(c Cursor) (int, bool) {
	i, ok := t.rowIdx[c]
	return i, ok
}

// CursorAt returns the cursor for row i, clamped to the row range.
func (t *Tree) CursorAt(i int) Cursor {
	if len(t.rows) == 0 {
		return Cursor{}
	}
	i = max(0, min(i, len(t.rows)-1))
	return Cursor{Addr: t.rows[i].Addr, Line: t.rows[i].Line}
}

// SetCollapsed changes one section's collapsed flag.
func (t *Tree) SetCollapsed(a Address, collapsed bool) bool {
	s, ok := t.index[a]
	if !ok || s.Collapsed == collapsed {
		return false
	}
	s.Collapsed = collapsed
	t.flatten()
	return true
}

// Toggle flips a's collapsed flag.
func (t *Tree) Toggle(a Address) bool {
	s, ok := t.index[a]
	if !ok || !s.Foldable() {
		return false
	}
	return t.SetCollapsed(a, !s.Collapsed)
}

// ExpandAll expands every section.
func (t *Tree) ExpandAll() {
	for _, s := range t.index {
		s.Collapsed = false
	}
	t.flatten()
}

// Visible returns the address of the row that shows a: a itself, or its
// outermost collapsed ancestor.
func (t *Tree) Visible(a Address) Address {
	out := a
	for p, ok := t.parent[a]; ok; p, ok = t.parent[p] {
		if t.index[p].Collapsed {
			out = p
		}
	}
	return out
}

func (t *Tree) flatten() {
	t.rows = t.rows[:0]
	t.rowIdx = make(map[Cursor]int, len(t.rowIdx))
	var walk func(s *Section, depth int)
	walk = func(s *Section, depth int) {
		t.rowIdx[Cursor{Addr: s.Addr}] = len(t.rows)
		t.rows = append(t.rows, Row{
			Addr:      s.Addr,
			Depth:     depth,
			Text:      s.Title,
			Collapsed: s.Collapsed,
			Foldable:  s.Foldable(),
		})
		if s.Collapsed {
			return
		}
		if h, ok := s.Hunk(); ok {
			for _, l := range h.Lines {
				c := Cursor{Addr: s.Addr, Line: l.Position}
				t.rowIdx[c] = len(t.rows)
				t.rows = append(t.rows, Row{Addr: s.Addr, Line: l.Position, Depth: depth + 1, Text: l.Raw(), Origin: l.Origin})
			}
		}
		for _, c := range s.Children {
			walk(c, depth+1)
		}
	}
	for _, c := range t.Root.Children {
		walk(c, 0)
	}
}
