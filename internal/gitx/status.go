package gitx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Branch header of `git status --porcelain=v2 --branch`.
type BranchStatus struct {
	OID      string // "" on an unborn branch
	Head     string // "" when detached
	Upstream string
	Ahead    int
	Behind   int
}

// Unborn reports whether HEAD has no commits yet.
func (b BranchStatus) Unborn() bool { return b.OID == "" }

// Detached reports whether HEAD is detached.
func (b BranchStatus) Detached() bool { return b.Head == "" }

// StatusEntry is one path from porcelain v2 status. Index and Worktree hold
// the X and Y codes, with '.' for unchanged.
type StatusEntry struct {
	Path      string
	OrigPath  string
	Index     byte
	Worktree  byte
	Untracked bool
	Unmerged  bool
}

// Staged reports whether the entry has index changes.
func (e StatusEntry) Staged() bool {
	return !e.Untracked && !e.Unmerged && e.Index != '.'
}

// Unstaged reports whether the entry has work tree changes.
func (e StatusEntry) Unstaged() bool {
	return !e.Untracked && (e.Unmerged || e.Worktree != '.')
}

// Status is the parsed output of a status query.
type Status struct {
	Branch  BranchStatus
	Entries []StatusEntry
}

// Status queries porcelain v2 status including untracked files.
func (r *Repo) Status(ctx context.Context) (Status, error) {
	out, err := r.output(ctx, "status", "--porcelain=v2", "-z", "--branch", "--untracked-files=all")
	if err != nil {
		return Status{}, err
	}
	return parseStatus(out)
}

func parseStatus(out string) (Status, error) {
	var st Status
	recs := strings.Split(out, "\x00")
	for i := 0; i < len(recs); i++ {
		rec := recs[i]
		if rec == "" {
			continue
		}
		switch rec[0] {
		case '#':
			parseBranchHeader(&st.Branch, rec)
		case '1':
			f := strings.SplitN(rec, " ", 9)
			if len(f) != 9 || len(f[1]) != 2 {
				return Status{}, fmt.Errorf("status: bad entry %q", rec)
			}
			st.Entries = append(st.Entries, StatusEntry{Path: f[8], Index: f[1][0], Worktree: f[1][1]})
		case '2':
			f := strings.SplitN(rec, " ", 10)
			if len(f) != 10 || len(f[1]) != 2 || i+1 >= len(recs) {
				return Status{}, fmt.Errorf("status: bad rename entry %q", rec)
			}
			i++
			st.Entries = append(st.Entries, StatusEntry{Path: f[9], OrigPath: recs[i], Index: f[1][0], Worktree: f[1][1]})
		case 'u':
			f := strings.SplitN(rec, " ", 11)
			if len(f) != 11 || len(f[1]) != 2 {
				return Status{}, fmt.Errorf("status: bad unmerged entry %q", rec)
			}
			st.Entries = append(st.Entries, StatusEntry{Path: f[10], Index: f[1][0], Worktree: f[1][1], Unmerged: true})
		case '?':
			st.Entries = append(st.Entries, StatusEntry{Path: strings.TrimPrefix(rec, "? "), Index: '?', Worktree: '?', Untracked: true})
		case '!':
		default:
			return Status{}, fmt.Errorf("status: unknown record %q", rec)
		}
	}
	return st, nil
}

func parseBranchHeader(b *BranchStatus, rec string) {
	key, val, _ := strings.Cut(strings.TrimPrefix(rec, "# "), " ")
	switch key {
	case "branch.oid":
		if val != "(initial)" {
			b.OID = val
		}
	case "branch.head":
		if val != "(detached)" {
			b.Head = val
		}
	case "branch.upstream":
		b.Upstream = val
	case "branch.ab":
		a, bh, _ := strings.Cut(val, " ")
		b.Ahead, _ = strconv.Atoi(strings.TrimPrefix(a, "+"))
		b.Behind, _ = strconv.Atoi(strings.TrimPrefix(bh, "-"))
	}
}
