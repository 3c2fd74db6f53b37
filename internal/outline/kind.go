package outline

import "fmt"

// Kind is the type of a section.
type Kind int

const (
	KindRoot Kind = iota
	KindHead
	KindUpstream
	KindPush
	KindLatestTag
	KindTags
	KindTag
	KindUntracked
	KindUntrackedFile
	KindUnstaged
	KindUnstagedFile
	KindUnstagedHunk
	KindStaged
	KindStagedFile
	KindStagedHunk
	KindStashes
	KindStash
	KindUnpulled
	KindUnpulledCommit
	KindUnpushed
	KindUnpushedCommit
	KindRecent
	KindCommit
)

var kindNames = map[Kind]string{
	KindRoot:           "root",
	KindHead:           "head",
	KindUpstream:       "upstream",
	KindPush:           "push",
	KindLatestTag:      "latest-tag",
	KindTags:           "tags",
	KindTag:            "tag",
	KindUntracked:      "untracked",
	KindUntrackedFile:  "untracked-file",
	KindUnstaged:       "unstaged",
	KindUnstagedFile:   "unstaged-file",
	KindUnstagedHunk:   "unstaged-hunk",
	KindStaged:         "staged",
	KindStagedFile:     "staged-file",
	KindStagedHunk:     "staged-hunk",
	KindStashes:        "stashes",
	KindStash:          "stash",
	KindUnpulled:       "unpulled",
	KindUnpulledCommit: "unpulled-commit",
	KindUnpushed:       "unpushed",
	KindUnpushedCommit: "unpushed-commit",
	KindRecent:         "recent",
	KindCommit:         "commit",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind name as used in configuration.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown section kind %q", s)
}

// IsGroup reports whether the kind is a top-level group.
func (k Kind) IsGroup() bool {
	switch k {
	case KindHead, KindUntracked, KindUnstaged, KindStaged, KindStashes,
		KindUnpulled, KindUnpushed, KindRecent:
		return true
	}
	return false
}

// IsFile reports whether the kind is a file in one of the change groups.
func (k Kind) IsFile() bool {
	return k == KindUntrackedFile || k == KindUnstagedFile || k == KindStagedFile
}

// IsCommit reports whether the kind is a commit row of any commit list.
func (k Kind) IsCommit() bool {
	return k == KindCommit || k == KindUnpulledCommit || k == KindUnpushedCommit
}

// IsHunk reports whether the kind is a hunk.
func (k Kind) IsHunk() bool {
	return k == KindUnstagedHunk || k == KindStagedHunk
}

// Policy maps kinds to their default collapsed state.
type Policy map[Kind]bool

// DefaultPolicy collapses stash entries, commits and the tag list.
func DefaultPolicy() Policy {
	return Policy{
		KindTags:   true,
		KindStash:  true,
		KindCommit: true,
	}
}

// Collapsed returns the default for k.
func (p Policy) Collapsed(k Kind) bool { return p[k] }
