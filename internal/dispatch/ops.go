package dispatch

import (
	"fmt"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/op"
	"github.com/interpretive-systems/gitscope/internal/outline"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
)

// patchKinds names the hunk and line operation for each intent.
var patchKinds = map[diff.Intent][2]op.Kind{
	diff.IntentStage:   {op.StageHunks, op.StageLines},
	diff.IntentUnstage: {op.UnstageHunks, op.UnstageLines},
	diff.IntentDiscard: {op.DiscardHunks, op.DiscardLines},
}

// build turns an applicable target into an operation.
func (d *Dispatcher) build(cmd Command, t Target, tree *outline.Tree) (op.Operation, error) {
	secs := make([]*outline.Section, 0, len(t.Sections))
	for _, a := range t.Sections {
		if s, ok := tree.Lookup(a); ok {
			secs = append(secs, s)
		}
	}
	if len(secs) == 0 {
		return op.Operation{}, diff.ErrEmptySelection
	}
	st := tree.State

	switch cmd {
	case CmdStage:
		switch t.Kind {
		case outline.KindUntracked:
			return op.Operation{Kind: op.StageFiles, Paths: untrackedPaths(st)}, nil
		case outline.KindUnstaged:
			return op.Operation{Kind: op.StageAll}, nil
		case outline.KindUntrackedFile, outline.KindUnstagedFile:
			return op.Operation{Kind: op.StageFiles, Paths: paths(secs, false)}, nil
		}
		return d.hunks(t, secs, diff.IntentStage)

	case CmdUnstage:
		switch t.Kind {
		case outline.KindStaged:
			return op.Operation{Kind: op.UnstageAll}, nil
		case outline.KindStagedFile:
			return op.Operation{Kind: op.UnstageFiles, Paths: paths(secs, true)}, nil
		}
		return d.hunks(t, secs, diff.IntentUnstage)

	case CmdDiscard:
		switch t.Kind {
		case outline.KindUntracked:
			return op.Operation{Kind: op.DiscardUntracked, Paths: untrackedPaths(st)}, nil
		case outline.KindUntrackedFile:
			return op.Operation{Kind: op.DiscardUntracked, Paths: paths(secs, false)}, nil
		case outline.KindUnstaged:
			var ps []string
			for _, e := range st.Entries {
				if e.Unstaged() {
					ps = append(ps, e.Path)
				}
			}
			return op.Operation{Kind: op.DiscardFiles, Paths: ps}, nil
		case outline.KindUnstagedFile:
			return op.Operation{Kind: op.DiscardFiles, Paths: paths(secs, false)}, nil
		}
		return d.hunks(t, secs, diff.IntentDiscard)

	case CmdStashApply, CmdStashPop, CmdStashDrop:
		o := op.Operation{Kind: stashKinds[cmd]}
		for _, s := range secs {
			if i, ok := outline.StashIndex(s.Addr); ok {
				o.Stashes = append(o.Stashes, i)
			}
		}
		if len(o.Stashes) == 0 {
			return op.Operation{}, diff.ErrEmptySelection
		}
		return o, nil

	case CmdShow:
		s := secs[0]
		if i, ok := outline.StashIndex(s.Addr); ok {
			return op.Operation{Kind: op.ShowStash, Stashes: []int{i}}, nil
		}
		ref := s.Detail
		if ref == "" {
			ref = s.Addr.Key
		}
		return op.Operation{Kind: op.ShowCommit, Target: ref}, nil
	}
	return op.Operation{}, fmt.Errorf("%s on %s: %w", cmd, t.Kind, diff.ErrInvalidSelection)
}

// hunks builds a patch operation for hunk sections or a line range. Hunks
// of one file are combined into a single patch.
func (d *Dispatcher) hunks(t Target, secs []*outline.Section, intent diff.Intent) (op.Operation, error) {
	kinds := patchKinds[intent]
	if t.Shape == ShapeLines {
		s := secs[0]
		if s.File == nil {
			return op.Operation{}, diff.ErrInvalidSelection
		}
		p, err := d.patches.LinesPatch(*s.File, s.Addr.Index, t.From, t.To, intent)
		if err != nil {
			return op.Operation{}, err
		}
		return op.Operation{Kind: kinds[1], Patches: []diff.Patch{p}}, nil
	}

	var order []string
	files := make(map[string]*diff.FileDiff)
	idx := make(map[string][]int)
	for _, s := range secs {
		if s.File == nil || !s.Addr.Kind.IsHunk() {
			continue
		}
		path := s.File.Path
		if _, ok := files[path]; !ok {
			order = append(order, path)
			files[path] = s.File
		}
		idx[path] = append(idx[path], s.Addr.Index)
	}
	if len(order) == 0 {
		return op.Operation{}, diff.ErrEmptySelection
	}
	o := op.Operation{Kind: kinds[0]}
	for _, path := range order {
		p, err := d.patches.HunksPatch(*files[path], idx[path], intent)
		if err != nil {
			return op.Operation{}, err
		}
		o.Patches = append(o.Patches, p)
	}
	return o, nil
}

// paths lists the section paths. Renamed entries also name their source
// when withOrig is set, so both sides of the rename are reset.
func paths(secs []*outline.Section, withOrig bool) []string {
	var ps []string
	for _, s := range secs {
		ps = append(ps, s.Addr.Key)
		if withOrig {
			if orig := origPath(s); orig != "" && orig != s.Addr.Key {
				ps = append(ps, orig)
			}
		}
	}
	return ps
}

func origPath(s *outline.Section) string {
	if s.File != nil && s.File.OldPath != "" {
		return s.File.OldPath
	}
	return s.Entry.OrigPath
}

func untrackedPaths(st *snapshot.State) []string {
	var ps []string
	for _, e := range st.Untracked() {
		ps = append(ps, e.Path)
	}
	return ps
}
