package outline

import (
	"fmt"
	"strconv"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/gitx"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
)

type builder struct {
	prev   *Tree
	policy Policy
}

// Build creates the outline for st. Sections that existed in prev keep their
// collapsed flag; new ones take the policy default.
func Build(st *snapshot.State, prev *Tree, policy Policy) *Tree {
	if policy == nil {
		policy = DefaultPolicy()
	}
	b := &builder{prev: prev, policy: policy}
	root := &Section{Addr: Address{Kind: KindRoot}}
	root.Children = append(root.Children, b.head(st))
	for _, g := range []*Section{b.untracked(st), b.changes(st, false), b.changes(st, true), b.stashes(st), b.unpulled(st), b.unpushed(st), b.recent(st)} {
		if g != nil {
			root.Children = append(root.Children, g)
		}
	}
	return newTree(root, st)
}

func (b *builder) section(a Address, title string) *Section {
	s := &Section{Addr: a, Title: title, Collapsed: b.policy.Collapsed(a.Kind)}
	if b.prev != nil {
		if old, ok := b.prev.Lookup(a); ok {
			s.Collapsed = old.Collapsed
		}
	}
	return s
}

// hunk creates a hunk section. Its collapsed flag is carried over from the
// hunk with the same stable start, since indexes shift as hunks are staged.
func (b *builder) hunk(a Address, h diff.Hunk) *Section {
	s := &Section{Addr: a, Title: h.Header(), Collapsed: b.policy.Collapsed(a.Kind)}
	if b.prev != nil {
		if old, ok := b.prev.hunks[hunkIDOf(a, h)]; ok {
			s.Collapsed = old.Collapsed
		}
	}
	return s
}

func (b *builder) head(st *snapshot.State) *Section {
	title := fmt.Sprintf("%-10s%s", "Head:", st.HeadName())
	if subj := st.HeadSubject(); subj != "" {
		title += "  " + subj
	}
	if st.Branch.Unborn() {
		title += "  (no commits yet)"
	}
	h := b.section(Address{Kind: KindHead}, title)
	if up := st.Branch.Upstream; up != "" {
		t := fmt.Sprintf("%-10s%s", "Merge:", up)
		if st.Branch.Ahead > 0 || st.Branch.Behind > 0 {
			t += fmt.Sprintf("  (ahead %d, behind %d)", st.Branch.Ahead, st.Branch.Behind)
		}
		h.Children = append(h.Children, b.section(Address{Kind: KindUpstream, Key: up}, t))
	}
	if st.PushRef != "" && st.PushRef != st.Branch.Upstream {
		h.Children = append(h.Children, b.section(Address{Kind: KindPush, Key: st.PushRef}, fmt.Sprintf("%-10s%s", "Push:", st.PushRef)))
	}
	if tag := st.LatestTag; tag.Name != "" {
		s := b.section(Address{Kind: KindLatestTag, Key: tag.Name}, fmt.Sprintf("%-10s%s (%d)", "Tag:", tag.Name, tag.Ahead))
		s.Detail = tag.Name
		h.Children = append(h.Children, s)
	}
	if len(st.Tags) > 0 {
		tags := b.section(Address{Kind: KindTags}, fmt.Sprintf("Tags (%d)", len(st.Tags)))
		for _, t := range st.Tags {
			s := b.section(Address{Kind: KindTag, Key: t.Name}, t.OID+" "+t.Name)
			s.Detail = t.Name
			tags.Children = append(tags.Children, s)
		}
		h.Children = append(h.Children, tags)
	}
	return h
}

func (b *builder) untracked(st *snapshot.State) *Section {
	files := st.Untracked()
	if len(files) == 0 {
		return nil
	}
	g := b.section(Address{Kind: KindUntracked}, fmt.Sprintf("Untracked files (%d)", len(files)))
	for _, e := range files {
		s := b.section(Address{Kind: KindUntrackedFile, Key: e.Path}, e.Path)
		s.Entry = e
		g.Children = append(g.Children, s)
	}
	return g
}

func (b *builder) changes(st *snapshot.State, staged bool) *Section {
	groupKind, fileKind, hunkKind := KindUnstaged, KindUnstagedFile, KindUnstagedHunk
	title, diffs := "Unstaged changes", st.Unstaged
	if staged {
		groupKind, fileKind, hunkKind = KindStaged, KindStagedFile, KindStagedHunk
		title, diffs = "Staged changes", st.Staged
	}

	var files []*Section
	seen := make(map[string]bool)
	addFile := func(e gitx.StatusEntry, f *diff.FileDiff) {
		path := e.Path
		if f != nil {
			path = f.Path
		}
		seen[path] = true
		s := b.section(Address{Kind: fileKind, Key: path}, fileTitle(e, f, staged))
		s.Entry = e
		s.File = f
		if f != nil && f.Available() {
			for i, h := range f.Hunks {
				hs := b.hunk(Address{Kind: hunkKind, Key: path, Index: i}, h)
				hs.File = f
				s.Children = append(s.Children, hs)
			}
		}
		files = append(files, s)
	}
	for _, e := range st.Entries {
		if (staged && !e.Staged()) || (!staged && !e.Unstaged()) {
			continue
		}
		var fd *diff.FileDiff
		if i := fileIndex(diffs, e.Path); i >= 0 {
			fd = &diffs[i]
		}
		addFile(e, fd)
	}
	for i := range diffs {
		if !seen[diffs[i].Path] {
			addFile(gitx.StatusEntry{Path: diffs[i].Path}, &diffs[i])
		}
	}
	if len(files) == 0 {
		return nil
	}
	g := b.section(Address{Kind: groupKind}, fmt.Sprintf("%s (%d)", title, len(files)))
	g.Children = files
	return g
}

func fileIndex(files []diff.FileDiff, path string) int {
	for i := range files {
		if files[i].Path == path {
			return i
		}
	}
	return -1
}

func fileTitle(e gitx.StatusEntry, f *diff.FileDiff, staged bool) string {
	label := "modified"
	code := e.Worktree
	if staged {
		code = e.Index
	}
	switch {
	case e.Unmerged:
		label = "unmerged"
	case f != nil:
		label = f.Kind.String()
	case code == 'A':
		label = "new file"
	case code == 'D':
		label = "deleted"
	case code == 'R':
		label = "renamed"
	case code == 'T':
		label = "typechange"
	}
	path := e.Path
	switch {
	case f != nil && f.OldPath != "":
		path = f.OldPath + " -> " + f.Path
	case e.OrigPath != "":
		path = e.OrigPath + " -> " + e.Path
	}
	title := fmt.Sprintf("%-11s%s", label, path)
	switch {
	case f == nil:
	case !f.Available():
		title += "  (diff unavailable)"
	case f.Binary:
		title += "  (binary)"
	case f.ModeOnly():
		title += fmt.Sprintf("  (mode %o -> %o)", f.OldMode.Perm(), f.NewMode.Perm())
	}
	return title
}

func (b *builder) stashes(st *snapshot.State) *Section {
	if len(st.Stashes) == 0 {
		return nil
	}
	g := b.section(Address{Kind: KindStashes}, fmt.Sprintf("Stashes (%d)", len(st.Stashes)))
	for _, s := range st.Stashes {
		ref := "stash@{" + strconv.Itoa(s.Index) + "}"
		sec := b.section(Address{Kind: KindStash, Key: strconv.Itoa(s.Index)}, ref+" "+s.Message)
		sec.Detail = ref
		g.Children = append(g.Children, sec)
	}
	return g
}

func (b *builder) unpulled(st *snapshot.State) *Section {
	return b.commits(Address{Kind: KindUnpulled}, KindUnpulledCommit,
		fmt.Sprintf("Unpulled from %s (%d)", st.Branch.Upstream, len(st.Unpulled)), st.Unpulled)
}

func (b *builder) unpushed(st *snapshot.State) *Section {
	return b.commits(Address{Kind: KindUnpushed}, KindUnpushedCommit,
		fmt.Sprintf("Unpushed to %s (%d)", st.Branch.Upstream, len(st.Unpushed)), st.Unpushed)
}

func (b *builder) recent(st *snapshot.State) *Section {
	return b.commits(Address{Kind: KindRecent}, KindCommit, "Recent commits", st.Commits)
}

// commits builds a commit list group. It is omitted when empty.
func (b *builder) commits(a Address, kind Kind, title string, commits []gitx.Commit) *Section {
	if len(commits) == 0 {
		return nil
	}
	g := b.section(a, title)
	for _, c := range commits {
		sec := b.section(Address{Kind: kind, Key: c.Hash}, c.Short+" "+c.Subject)
		sec.Detail = c.Hash
		g.Children = append(g.Children, sec)
	}
	return g
}

// StashIndex returns the stash index of a stash section address.
func StashIndex(a Address) (int, bool) {
	if a.Kind != KindStash {
		return 0, false
	}
	n, err := strconv.Atoi(a.Key)
	return n, err == nil
}
