package diff

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// DefaultContextLines is the context kept on each side of a selection when
// building a line patch.
const DefaultContextLines = 3

// Intent is what a patch is for. It decides how unselected lines are
// treated and how the patch is applied.
type Intent int

const (
	// IntentStage applies the patch forward to the index.
	IntentStage Intent = iota
	// IntentUnstage applies the patch in reverse to the index.
	IntentUnstage
	// IntentDiscard applies the patch in reverse to the working tree.
	IntentDiscard
)

// Reverse reports whether the patch is applied with --reverse.
func (i Intent) Reverse() bool { return i != IntentStage }

// Cached reports whether the patch targets the index.
func (i Intent) Cached() bool { return i != IntentDiscard }

func (i Intent) String() string {
	switch i {
	case IntentStage:
		return "stage"
	case IntentUnstage:
		return "unstage"
	case IntentDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Patch is a self-contained unified diff for one file, ready for git apply.
type Patch struct {
	Path   string
	Intent Intent
	Text   string
	// UnidiffZero is set when the patch carries no context and must be
	// applied with --unidiff-zero.
	UnidiffZero bool
}

// PatchBuilder builds patches from parsed file diffs.
type PatchBuilder struct {
	ContextLines int
}

// NewPatchBuilder returns a builder keeping n context lines around line
// selections. Negative values are treated as zero.
func NewPatchBuilder(n int) PatchBuilder {
	return PatchBuilder{ContextLines: max(n, 0)}
}

// FilePatch returns the whole file diff verbatim.
func (b PatchBuilder) FilePatch(f FileDiff, intent Intent) (Patch, error) {
	if f.Err != nil {
		return Patch{}, f.Err
	}
	if len(f.Hunks) == 0 && !f.Binary && !f.ModeOnly() && f.Kind == ChangeModified {
		return Patch{}, fmt.Errorf("%s: %w", f.Path, ErrEmptySelection)
	}
	return b.check(Patch{Path: f.Path, Intent: intent, Text: f.String()})
}

// HunkPatch returns a patch holding hunk i of f verbatim.
func (b PatchBuilder) HunkPatch(f FileDiff, i int, intent Intent) (Patch, error) {
	return b.HunksPatch(f, []int{i}, intent)
}

// HunksPatch returns a patch holding the given hunks of f verbatim. The
// positions of the side that is not matched against are shifted so the
// patch stays self-consistent when hunks are skipped.
func (b PatchBuilder) HunksPatch(f FileDiff, idx []int, intent Intent) (Patch, error) {
	if f.Err != nil {
		return Patch{}, f.Err
	}
	if f.Binary {
		return Patch{}, fmt.Errorf("%s: binary file: %w", f.Path, ErrInvalidSelection)
	}
	if len(idx) == 0 {
		return Patch{}, fmt.Errorf("%s: %w", f.Path, ErrEmptySelection)
	}
	sel := slices.Clone(idx)
	slices.Sort(sel)
	sel = slices.Compact(sel)
	for _, i := range sel {
		if i < 0 || i >= len(f.Hunks) {
			return Patch{}, fmt.Errorf("%s: no hunk %d: %w", f.Path, i, ErrInvalidSelection)
		}
	}
	if len(sel) == len(f.Hunks) {
		return b.check(Patch{Path: f.Path, Intent: intent, Text: f.String()})
	}

	var sb strings.Builder
	writeLines(&sb, f.partialHeader())
	skipped, next := 0, 0
	for _, i := range sel {
		for ; next < i; next++ {
			skipped += f.Hunks[next].NewLines - f.Hunks[next].OldLines
		}
		next = i + 1
		h := f.Hunks[i]
		if intent.Reverse() {
			h.OldStart += skipped
		} else {
			h.NewStart -= skipped
		}
		h.write(&sb)
	}
	return b.check(Patch{Path: f.Path, Intent: intent, Text: sb.String()})
}

type entry struct {
	idx    int
	origin Origin
}

// LinesPatch builds a patch from the lines at 1-based positions from..to of
// hunk i. Selected changes are kept. Unselected changes are dropped or
// turned into context depending on intent, so the result applies to the
// side of the diff the intent operates on.
func (b PatchBuilder) LinesPatch(f FileDiff, i, from, to int, intent Intent) (Patch, error) {
	if f.Err != nil {
		return Patch{}, f.Err
	}
	if f.Binary {
		return Patch{}, fmt.Errorf("%s: binary file: %w", f.Path, ErrInvalidSelection)
	}
	h, ok := f.Hunk(i)
	if !ok {
		return Patch{}, fmt.Errorf("%s: no hunk %d: %w", f.Path, i, ErrInvalidSelection)
	}
	if from > to {
		from, to = to, from
	}
	if from < 1 || to > len(h.Lines) {
		return Patch{}, fmt.Errorf("%s: lines %d-%d outside hunk of %d lines: %w", f.Path, from, to, len(h.Lines), ErrInvalidSelection)
	}

	var entries []entry
	selected := 0
	prevKept := false
	for j, l := range h.Lines {
		in := j+1 >= from && j+1 <= to
		origin, keep := l.Origin, true
		switch l.Origin {
		case OriginAddition:
			switch {
			case in:
				selected++
			case intent == IntentStage:
				keep = false
			default:
				origin = OriginContext
			}
		case OriginDeletion:
			switch {
			case in:
				selected++
			case intent == IntentStage:
				origin = OriginContext
			default:
				keep = false
			}
		case OriginNoNewline:
			keep = prevKept
		}
		prevKept = keep
		if keep {
			entries = append(entries, entry{idx: j, origin: origin})
		}
	}
	if selected == 0 {
		return Patch{}, fmt.Errorf("%s: lines %d-%d: %w", f.Path, from, to, ErrEmptySelection)
	}
	entries = splitNoNewline(entries, h.Lines, intent)

	first, last := -1, -1
	for j, e := range entries {
		if e.origin.IsChange() {
			if first < 0 {
				first = j
			}
			last = j
		}
	}
	n := b.ContextLines
	lo := first
	for c := 0; lo > 0 && c < n; {
		lo--
		if entries[lo].origin == OriginContext {
			c++
		}
	}
	hi := last
	for c := 0; hi+1 < len(entries); {
		if entries[hi+1].origin != OriginNoNewline {
			if c >= n {
				break
			}
			c++
		}
		hi++
	}
	entries = entries[lo : hi+1]

	out := Hunk{Section: h.Section}
	for _, e := range entries {
		l := h.Lines[e.idx]
		out.Lines = append(out.Lines, Line{Origin: e.origin, Text: l.Text, Position: len(out.Lines) + 1})
	}
	out.OldLines, out.NewLines = out.Counts()

	preOld, preNew := 0, 0
	for _, l := range h.Lines[:entries[0].idx] {
		switch l.Origin {
		case OriginContext:
			preOld++
			preNew++
		case OriginDeletion:
			preOld++
		case OriginAddition:
			preNew++
		}
	}
	oldNom, newNom := nominal(h.OldStart, h.OldLines), nominal(h.NewStart, h.NewLines)
	delta := newNom - oldNom
	if intent.Reverse() {
		newNom += preNew
		oldNom = newNom - delta
	} else {
		oldNom += preOld
		newNom = oldNom + delta
	}
	out.OldStart = fromNominal(oldNom, out.OldLines)
	out.NewStart = fromNominal(newNom, out.NewLines)

	var sb strings.Builder
	writeLines(&sb, f.partialHeader())
	out.write(&sb)
	return b.check(Patch{Path: f.Path, Intent: intent, Text: sb.String(), UnidiffZero: n == 0})
}

// splitNoNewline rewrites a change line that became context while still
// carrying a no-newline marker. Left as context, any line kept after it
// would be joined onto it. The line is emitted as a deletion and an
// addition instead, and only the side that ends at it keeps the marker.
func splitNoNewline(entries []entry, lines []Line, intent Intent) []entry {
	for k := 0; k+2 < len(entries); k++ {
		e := entries[k]
		if e.origin != OriginContext || !lines[e.idx].Origin.IsChange() || entries[k+1].origin != OriginNoNewline {
			continue
		}
		marker := entries[k+1]
		rest := entries[k+2:]
		out := slices.Clone(entries[:k])
		del, add := entry{idx: e.idx, origin: OriginDeletion}, entry{idx: e.idx, origin: OriginAddition}
		if intent.Reverse() {
			// The new side ends here; the rest are old-side lines.
			out = append(out, del)
			out = append(out, rest...)
			return append(out, add, marker)
		}
		// The old side ends here; the rest are new-side lines.
		out = append(out, del, marker, add)
		return append(out, rest...)
	}
	return entries
}

// nominal returns the first line a range covers. Git writes an empty range
// as starting at the line before it.
func nominal(start, length int) int {
	if length == 0 {
		return start + 1
	}
	return start
}

func fromNominal(start, length int) int {
	if length == 0 {
		return start - 1
	}
	return start
}

// check parses the built patch back with an independent parser and
// validates every fragment's line counts.
func (b PatchBuilder) check(p Patch) (Patch, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(p.Text))
	if err != nil {
		return Patch{}, fmt.Errorf("patch for %s does not parse: %v: %w", p.Path, err, ErrMalformedDiff)
	}
	for _, f := range files {
		for _, frag := range f.TextFragments {
			if err := frag.Validate(); err != nil {
				return Patch{}, fmt.Errorf("patch for %s: %v: %w", p.Path, err, ErrMalformedDiff)
			}
		}
	}
	return p, nil
}

// partialHeader returns the header for a patch that applies only part of
// the file's changes. Creation and deletion turn into modification, since
// the file exists on both sides afterwards, and renames and copies turn
// into modification of the new path.
func (f FileDiff) partialHeader() []string {
	switch f.Kind {
	case ChangeAdded, ChangeDeleted, ChangeRenamed, ChangeCopied:
	default:
		return f.Header
	}
	moved := f.Kind == ChangeRenamed || f.Kind == ChangeCopied
	out := make([]string, 0, len(f.Header))
	for i, l := range f.Header {
		switch {
		case i == 0 && moved:
			l = gitHeaderPrefix + quoteName("a/"+f.Path) + " " + quoteName("b/"+f.Path)
		case strings.HasPrefix(l, "new file mode "), strings.HasPrefix(l, "deleted file mode "):
			continue
		case moved && (strings.HasPrefix(l, "similarity index ") || strings.HasPrefix(l, "dissimilarity index ") ||
			strings.HasPrefix(l, "rename ") || strings.HasPrefix(l, "copy ")):
			continue
		case l == "--- /dev/null", moved && strings.HasPrefix(l, "--- "):
			l = "--- " + quoteName("a/"+f.Path)
		case l == "+++ /dev/null":
			l = "+++ " + quoteName("b/"+f.Path)
		}
		out = append(out, l)
	}
	return out
}

func quoteName(s string) string {
	for _, r := range s {
		if r < 0x20 || r == 0x7f || r == '"' || r == '\\' {
			return strconv.Quote(s)
		}
	}
	return s
}

func writeLines(sb *strings.Builder, lines []string) {
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
}
