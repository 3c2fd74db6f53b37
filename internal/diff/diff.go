// Package diff models unified diffs as files, hunks and lines, and builds
// patches from whole files, whole hunks, or line ranges inside one hunk.
package diff

import (
	"fmt"
	"io/fs"
	"strings"
)

// Origin identifies what a diff line represents.
type Origin int

const (
	OriginContext Origin = iota
	OriginAddition
	OriginDeletion
	// OriginNoNewline is the "\ No newline at end of file" marker. It
	// belongs to the line immediately before it.
	OriginNoNewline
)

// Prefix returns the byte that introduces a line of this origin in a patch.
func (o Origin) Prefix() byte {
	switch o {
	case OriginAddition:
		return '+'
	case OriginDeletion:
		return '-'
	case OriginNoNewline:
		return '\\'
	default:
		return ' '
	}
}

// IsChange reports whether the line adds or deletes content.
func (o Origin) IsChange() bool {
	return o == OriginAddition || o == OriginDeletion
}

func (o Origin) String() string {
	switch o {
	case OriginContext:
		return "context"
	case OriginAddition:
		return "addition"
	case OriginDeletion:
		return "deletion"
	case OriginNoNewline:
		return "no-newline"
	default:
		return "unknown"
	}
}

// Line is one line of a hunk body. Position is 1-based within the hunk.
type Line struct {
	Origin   Origin
	Text     string
	Position int
}

// Raw returns the line as it appears in a patch, without the trailing newline.
func (l Line) Raw() string {
	if l.Origin == OriginNoNewline {
		return `\` + l.Text
	}
	return string(l.Origin.Prefix()) + l.Text
}

// Hunk is a contiguous change region of one file.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	// Section is the optional text after the closing "@@", usually the
	// enclosing function.
	Section string
	Lines   []Line
}

// Header formats the hunk header the way git does: a length of one is
// omitted.
func (h Hunk) Header() string {
	s := fmt.Sprintf("@@ -%s +%s @@", rangeSpec(h.OldStart, h.OldLines), rangeSpec(h.NewStart, h.NewLines))
	if h.Section != "" {
		s += " " + h.Section
	}
	return s
}

func rangeSpec(start, length int) string {
	if length == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, length)
}

// Counts returns the number of old-side and new-side lines in the body.
func (h Hunk) Counts() (old, new int) {
	for _, l := range h.Lines {
		switch l.Origin {
		case OriginContext:
			old++
			new++
		case OriginDeletion:
			old++
		case OriginAddition:
			new++
		}
	}
	return old, new
}

// Validate checks that the header lengths agree with the body.
func (h Hunk) Validate() error {
	old, new := h.Counts()
	if old != h.OldLines || new != h.NewLines {
		return fmt.Errorf("hunk %s counts -%d +%d in body: %w", h.Header(), old, new, ErrMalformedDiff)
	}
	return nil
}

// Changes returns the number of added and deleted lines.
func (h Hunk) Changes() (added, deleted int) {
	for _, l := range h.Lines {
		switch l.Origin {
		case OriginAddition:
			added++
		case OriginDeletion:
			deleted++
		}
	}
	return added, deleted
}

// Line returns the line at 1-based position pos.
func (h Hunk) Line(pos int) (Line, bool) {
	if pos < 1 || pos > len(h.Lines) {
		return Line{}, false
	}
	return h.Lines[pos-1], true
}

func (h Hunk) write(b *strings.Builder) {
	b.WriteString(h.Header())
	b.WriteByte('\n')
	for _, l := range h.Lines {
		b.WriteString(l.Raw())
		b.WriteByte('\n')
	}
}

// ChangeKind is the kind of change a FileDiff records.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota
	ChangeAdded
	ChangeDeleted
	ChangeRenamed
	ChangeCopied
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "new file"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	case ChangeCopied:
		return "copied"
	default:
		return "modified"
	}
}

// FileDiff is one file's section of a unified diff.
type FileDiff struct {
	Path    string
	OldPath string
	Kind    ChangeKind
	Binary  bool
	OldMode fs.FileMode
	NewMode fs.FileMode
	// Header holds the raw header lines ("diff --git", "index", "---",
	// "+++", ...) used verbatim when building patches.
	Header []string
	Hunks  []Hunk
	// Err is set when this file's diff could not be parsed. The file is
	// still listed so it can be shown as "diff unavailable".
	Err error
}

// ModeOnly reports whether the file diff changes only the file mode.
func (f FileDiff) ModeOnly() bool {
	return !f.Binary && len(f.Hunks) == 0 && f.OldMode != 0 && f.NewMode != 0 && f.OldMode != f.NewMode
}

// Available reports whether the diff parsed successfully.
func (f FileDiff) Available() bool {
	return f.Err == nil
}

// Hunk returns the hunk at index i.
func (f FileDiff) Hunk(i int) (Hunk, bool) {
	if i < 0 || i >= len(f.Hunks) {
		return Hunk{}, false
	}
	return f.Hunks[i], true
}

func (f FileDiff) writeHeader(b *strings.Builder) {
	for _, h := range f.Header {
		b.WriteString(h)
		b.WriteByte('\n')
	}
}

// String renders the file diff back to unified-diff text.
func (f FileDiff) String() string {
	var b strings.Builder
	f.writeHeader(&b)
	for _, h := range f.Hunks {
		h.write(&b)
	}
	return b.String()
}
