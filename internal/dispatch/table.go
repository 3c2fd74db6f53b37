package dispatch

import "github.com/interpretive-systems/gitscope/internal/outline"

// Command is a contextual command whose meaning depends on the section
// under the cursor.
type Command int

const (
	CmdToggle Command = iota + 1
	CmdStage
	CmdUnstage
	CmdDiscard
	CmdStashApply
	CmdStashPop
	CmdStashDrop
	CmdShow
)

func (c Command) String() string {
	switch c {
	case CmdToggle:
		return "toggle"
	case CmdStage:
		return "stage"
	case CmdUnstage:
		return "unstage"
	case CmdDiscard:
		return "discard"
	case CmdStashApply:
		return "apply"
	case CmdStashPop:
		return "pop"
	case CmdStashDrop:
		return "drop"
	case CmdShow:
		return "show"
	}
	return "command"
}

type rule struct {
	cmd   Command
	kind  outline.Kind
	shape Shape
	mode  Mode
}

var rules = buildRules()

func buildRules() map[rule]bool {
	r := make(map[rule]bool)
	add := func(cmd Command, shapes []Shape, kinds ...outline.Kind) {
		for _, s := range shapes {
			mode := ModeVisual
			if s == ShapeCursor {
				mode = ModeNormal
			}
			for _, k := range kinds {
				r[rule{cmd, k, s, mode}] = true
			}
		}
	}
	cursor := []Shape{ShapeCursor}
	sections := []Shape{ShapeCursor, ShapeSections}
	lines := []Shape{ShapeLines}

	add(CmdToggle, cursor,
		outline.KindHead, outline.KindTags, outline.KindUntracked,
		outline.KindUnstaged, outline.KindUnstagedFile, outline.KindUnstagedHunk,
		outline.KindStaged, outline.KindStagedFile, outline.KindStagedHunk,
		outline.KindStashes, outline.KindUnpulled, outline.KindUnpushed, outline.KindRecent)

	add(CmdStage, sections,
		outline.KindUntracked, outline.KindUntrackedFile,
		outline.KindUnstaged, outline.KindUnstagedFile, outline.KindUnstagedHunk)
	add(CmdStage, lines, outline.KindUnstagedHunk)

	add(CmdUnstage, sections, outline.KindStaged, outline.KindStagedFile, outline.KindStagedHunk)
	add(CmdUnstage, lines, outline.KindStagedHunk)

	add(CmdDiscard, sections,
		outline.KindUntracked, outline.KindUntrackedFile,
		outline.KindUnstaged, outline.KindUnstagedFile, outline.KindUnstagedHunk)
	add(CmdDiscard, lines, outline.KindUnstagedHunk)

	add(CmdStashApply, cursor, outline.KindStash)
	add(CmdStashPop, cursor, outline.KindStash)
	add(CmdStashDrop, sections, outline.KindStash)

	add(CmdShow, cursor, outline.KindCommit, outline.KindUnpulledCommit, outline.KindUnpushedCommit, outline.KindStash, outline.KindTag, outline.KindLatestTag)
	return r
}

// Applicable reports whether cmd does anything for a target of the given
// kind and shape in mode. Inapplicable commands are ignored.
func Applicable(cmd Command, kind outline.Kind, shape Shape, mode Mode) bool {
	return rules[rule{cmd, kind, shape, mode}]
}
