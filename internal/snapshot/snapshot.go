// Package snapshot loads immutable views of repository state.
package snapshot

import (
	"time"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/gitx"
)

// State is one refresh of the repository. It is never modified after the
// loader returns it.
type State struct {
	// Generation increases with every load started.
	Generation uint64
	// Fingerprint hashes everything below; equal fingerprints mean equal
	// state.
	Fingerprint uint64
	LoadedAt    time.Time

	Branch    gitx.BranchStatus
	PushRef   string
	LatestTag gitx.LatestTag
	Branches  []gitx.Branch
	Remotes   []string
	Tags      []gitx.Tag
	Stashes   []gitx.Stash
	Entries   []gitx.StatusEntry
	Commits   []gitx.Commit
	// Unpulled and Unpushed compare HEAD with its upstream.
	Unpulled []gitx.Commit
	Unpushed []gitx.Commit

	RawUnstaged string
	RawStaged   string
	Unstaged    []diff.FileDiff
	Staged      []diff.FileDiff
}

// Untracked returns the untracked entries in status order.
func (s *State) Untracked() []gitx.StatusEntry {
	var out []gitx.StatusEntry
	for _, e := range s.Entries {
		if e.Untracked {
			out = append(out, e)
		}
	}
	return out
}

// Entry returns the status entry for path.
func (s *State) Entry(path string) (gitx.StatusEntry, bool) {
	for _, e := range s.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return gitx.StatusEntry{}, false
}

// UnstagedFile returns the work tree diff of path.
func (s *State) UnstagedFile(path string) (diff.FileDiff, bool) {
	return findFile(s.Unstaged, path)
}

// StagedFile returns the index diff of path.
func (s *State) StagedFile(path string) (diff.FileDiff, bool) {
	return findFile(s.Staged, path)
}

func findFile(files []diff.FileDiff, path string) (diff.FileDiff, bool) {
	for _, f := range files {
		if f.Path == path {
			return f, true
		}
	}
	return diff.FileDiff{}, false
}

// Clean reports whether there is nothing to stage or commit.
func (s *State) Clean() bool { return len(s.Entries) == 0 }

// HeadName is the branch name, or the abbreviated commit when detached.
func (s *State) HeadName() string {
	switch {
	case s.Branch.Head != "":
		return s.Branch.Head
	case len(s.Branch.OID) >= 7:
		return s.Branch.OID[:7]
	default:
		return "HEAD"
	}
}

// HeadSubject is the subject of the HEAD commit, if any.
func (s *State) HeadSubject() string {
	if len(s.Commits) == 0 {
		return ""
	}
	return s.Commits[0].Subject
}

// PushRemote picks the remote a push without upstream goes to: the
// configured push ref's remote, else "origin" if present, else the first
// remote.
func (s *State) PushRemote() string {
	if s.PushRef != "" {
		for _, r := range s.Remotes {
			if len(s.PushRef) > len(r) && s.PushRef[:len(r)+1] == r+"/" {
				return r
			}
		}
	}
	for _, r := range s.Remotes {
		if r == "origin" {
			return r
		}
	}
	if len(s.Remotes) > 0 {
		return s.Remotes[0]
	}
	return ""
}
