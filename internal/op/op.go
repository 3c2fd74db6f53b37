// Package op defines operations as immutable values: what to run against
// git, with which options, and how the outcome is reported.
package op

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/interpretive-systems/gitscope/internal/diff"
)

// ErrMissingTarget is returned by Validate when an operation lacks the
// paths, patch, ref or message its kind requires.
var ErrMissingTarget = errors.New("missing target")

// Kind identifies an operation.
type Kind int

const (
	StageFiles Kind = iota + 1
	StageHunks
	StageLines
	StageAll
	UnstageFiles
	UnstageHunks
	UnstageLines
	UnstageAll
	DiscardFiles
	DiscardUntracked
	DiscardHunks
	DiscardLines
	Fetch
	FetchAll
	Pull
	Push
	PushTag
	PushTags
	Commit
	Amend
	Reword
	Fixup
	Checkout
	CreateBranch
	DeleteBranch
	RenameBranch
	StashPush
	StashApply
	StashPop
	StashDrop
	ShowCommit
	ShowStash
	ShowLog
)

type kindInfo struct {
	name string
	// read kinds run concurrently and never touch the index or work tree.
	read bool
	// supersedable kinds replace a pending operation with the same key.
	supersedable bool
}

var kinds = map[Kind]kindInfo{
	StageFiles:       {name: "stage files"},
	StageHunks:       {name: "stage hunks"},
	StageLines:       {name: "stage lines"},
	StageAll:         {name: "stage all"},
	UnstageFiles:     {name: "unstage files"},
	UnstageHunks:     {name: "unstage hunks"},
	UnstageLines:     {name: "unstage lines"},
	UnstageAll:       {name: "unstage all"},
	DiscardFiles:     {name: "discard files"},
	DiscardUntracked: {name: "discard untracked"},
	DiscardHunks:     {name: "discard hunks"},
	DiscardLines:     {name: "discard lines"},
	Fetch:            {name: "fetch", supersedable: true},
	FetchAll:         {name: "fetch all", supersedable: true},
	Pull:             {name: "pull", supersedable: true},
	Push:             {name: "push", supersedable: true},
	PushTag:          {name: "push tag", supersedable: true},
	PushTags:         {name: "push tags", supersedable: true},
	Commit:           {name: "commit"},
	Amend:            {name: "amend"},
	Reword:           {name: "reword"},
	Fixup:            {name: "fixup"},
	Checkout:         {name: "checkout", supersedable: true},
	CreateBranch:     {name: "create branch"},
	DeleteBranch:     {name: "delete branch"},
	RenameBranch:     {name: "rename branch"},
	StashPush:        {name: "stash"},
	StashApply:       {name: "stash apply"},
	StashPop:         {name: "stash pop"},
	StashDrop:        {name: "stash drop"},
	ShowCommit:       {name: "show commit", read: true, supersedable: true},
	ShowStash:        {name: "show stash", read: true, supersedable: true},
	ShowLog:          {name: "log", read: true, supersedable: true},
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Mutating reports whether the kind writes to the index, work tree or refs.
func (k Kind) Mutating() bool { return !kinds[k].read }

// Supersedable reports whether a newer operation with the same key replaces
// a pending one.
func (k Kind) Supersedable() bool { return kinds[k].supersedable }

// Patched reports whether the kind carries patches instead of paths.
func (k Kind) Patched() bool {
	switch k {
	case StageHunks, StageLines, UnstageHunks, UnstageLines, DiscardHunks, DiscardLines:
		return true
	}
	return false
}

// Intent returns the patch intent of a patched kind.
func (k Kind) Intent() diff.Intent {
	switch k {
	case UnstageHunks, UnstageLines:
		return diff.IntentUnstage
	case DiscardHunks, DiscardLines:
		return diff.IntentDiscard
	}
	return diff.IntentStage
}

// Operation is a requested action. It is treated as immutable once built.
type Operation struct {
	Kind    Kind
	Options Options
	// Target is the remote, branch or commit the operation acts on, or the
	// log scope of ShowLog.
	Target string
	// Ref is a second ref: the branch or tag to push, the start point of a
	// new branch or the new name of a renamed one.
	Ref     string
	Paths   []string
	Patches []diff.Patch
	Stashes []int
	Message string
}

// Key identifies operations that supersede each other.
type Key struct {
	Kind   Kind
	Target string
	Ref    string
}

// Key returns the supersession key: the kind and what it acts on. Pushes
// and pulls of different branches are distinct. Both show kinds share one
// key so a new detail view replaces the previous one.
func (o Operation) Key() Key {
	switch o.Kind {
	case ShowCommit, ShowStash, ShowLog:
		return Key{Kind: ShowCommit}
	case Push, Pull, PushTag:
		return Key{Kind: o.Kind, Target: o.Target, Ref: o.Ref}
	}
	return Key{Kind: o.Kind, Target: o.Target}
}

// Fingerprint identifies operations that would run exactly the same
// commands.
func (o Operation) Fingerprint() string {
	var b strings.Builder
	for _, c := range o.Commands() {
		b.WriteString(strconv.Quote(strings.Join(c.Args, "\x00")))
		b.WriteString(strconv.Quote(c.Stdin))
	}
	return b.String()
}

func (o Operation) String() string {
	s := o.Kind.String()
	switch {
	case o.Target != "":
		s += " " + o.Target
	case len(o.Paths) == 1:
		s += " " + o.Paths[0]
	case len(o.Paths) > 1:
		s += fmt.Sprintf(" (%d files)", len(o.Paths))
	case len(o.Patches) == 1:
		s += " in " + o.Patches[0].Path
	}
	return s
}

// Validate checks the option set and that the kind's required inputs are
// present.
func (o Operation) Validate() error {
	if _, ok := kinds[o.Kind]; !ok {
		return fmt.Errorf("unknown operation %s: %w", o.Kind, ErrUnsupportedOption)
	}
	if err := o.Options.Validate(o.Kind); err != nil {
		return err
	}
	missing := func(what string) error {
		return fmt.Errorf("%s: no %s: %w", o.Kind, what, ErrMissingTarget)
	}
	switch o.Kind {
	case StageFiles, UnstageFiles, DiscardFiles, DiscardUntracked:
		if len(o.Paths) == 0 {
			return missing("paths")
		}
	case StageHunks, StageLines, UnstageHunks, UnstageLines, DiscardHunks, DiscardLines:
		if len(o.Patches) == 0 {
			return missing("patch")
		}
		want := o.Kind.Intent()
		for _, p := range o.Patches {
			if p.Intent != want {
				return fmt.Errorf("%s: patch for %s built to %s: %w", o.Kind, p.Path, p.Intent, diff.ErrInvalidSelection)
			}
		}
	case Commit, Reword:
		if strings.TrimSpace(o.Message) == "" {
			return missing("message")
		}
	case Checkout, CreateBranch, DeleteBranch, ShowCommit:
		if o.Target == "" {
			return missing("ref")
		}
	case Fixup:
		if o.Target == "" {
			return missing("commit")
		}
	case RenameBranch:
		if o.Target == "" || o.Ref == "" {
			return missing("branch name")
		}
	case PushTag:
		if o.Target == "" || o.Ref == "" {
			return missing("tag")
		}
	case PushTags:
		if o.Target == "" {
			return missing("remote")
		}
	case ShowLog:
		if o.Target == "" {
			return missing("ref")
		}
		if _, ok := logScopes[o.Target]; !ok && strings.HasPrefix(o.Target, "-") {
			return fmt.Errorf("%s: bad revision %q: %w", o.Kind, o.Target, ErrMissingTarget)
		}
	case StashApply, StashPop, ShowStash:
		if len(o.Stashes) != 1 {
			return missing("stash")
		}
	case StashDrop:
		if len(o.Stashes) == 0 {
			return missing("stash")
		}
	}
	return nil
}

// Log scopes a ShowLog target may name instead of a revision.
const (
	LogLocalBranches = "local branches"
	LogAllBranches   = "all branches"
	LogAllRefs       = "all references"
)

var logScopes = map[string][]string{
	LogLocalBranches: {"--branches"},
	LogAllBranches:   {"--branches", "--remotes"},
	LogAllRefs:       {"--all"},
}

// LogLimit caps the commits a ShowLog lists.
const LogLimit = 256

// Command is one git invocation.
type Command struct {
	Args  []string
	Stdin string
}

func (c Command) String() string { return "git " + strings.Join(c.Args, " ") }

// StashRef formats a stash index as a ref.
func StashRef(i int) string { return "stash@{" + strconv.Itoa(i) + "}" }

// Commands returns the git invocations for the operation, in order.
func (o Operation) Commands() []Command {
	flags := o.Options.Flags(o.Kind)
	one := func(args ...string) []Command { return []Command{{Args: args}} }
	withPaths := func(args ...string) []Command {
		args = append(args, "--")
		return one(append(args, o.Paths...)...)
	}
	if (o.Kind == StashApply || o.Kind == StashPop || o.Kind == ShowStash) && len(o.Stashes) == 0 {
		return nil
	}
	switch o.Kind {
	case StageFiles:
		return withPaths("add", "-A")
	case StageAll:
		return one("add", "-u")
	case UnstageFiles:
		return withPaths("reset", "-q")
	case UnstageAll:
		return one("reset", "-q")
	case DiscardFiles:
		return withPaths("checkout")
	case DiscardUntracked:
		return withPaths("clean", "-f")
	case StageHunks, StageLines, UnstageHunks, UnstageLines, DiscardHunks, DiscardLines:
		return []Command{o.applyCommand()}
	case Fetch:
		args := append([]string{"fetch"}, flags...)
		if o.Target != "" {
			args = append(args, o.Target)
		}
		return one(args...)
	case FetchAll:
		return one(append([]string{"fetch", "--all"}, flags...)...)
	case Pull:
		args := append([]string{"pull"}, flags...)
		if o.Target != "" {
			args = append(args, o.Target)
			if o.Ref != "" {
				args = append(args, o.Ref)
			}
		}
		return one(args...)
	case Push:
		args := append([]string{"push"}, flags...)
		if o.Target != "" {
			args = append(args, o.Target)
			if o.Ref != "" {
				args = append(args, o.Ref)
			}
		}
		return one(args...)
	case PushTag:
		return one(append(append([]string{"push"}, flags...), o.Target, "refs/tags/"+o.Ref)...)
	case PushTags:
		return one(append(append([]string{"push"}, flags...), o.Target, "--tags")...)
	case Commit:
		return one(append(append([]string{"commit"}, flags...), "-m", o.Message)...)
	case Amend:
		args := append([]string{"commit", "--amend"}, flags...)
		if o.Message == "" {
			return one(append(args, "--no-edit")...)
		}
		return one(append(args, "-m", o.Message)...)
	case Reword:
		return one("commit", "--amend", "--only", "-m", o.Message)
	case Fixup:
		return one(append(append([]string{"commit"}, flags...), "--fixup="+o.Target, "--no-edit")...)
	case Checkout:
		return one("checkout", o.Target)
	case CreateBranch:
		args := []string{"checkout", "-b", o.Target}
		if o.Ref != "" {
			args = append(args, o.Ref)
		}
		return one(args...)
	case DeleteBranch:
		return one(append(append([]string{"branch", "-d"}, flags...), o.Target)...)
	case RenameBranch:
		return one("branch", "-m", o.Target, o.Ref)
	case StashPush:
		args := append([]string{"stash", "push"}, flags...)
		if o.Message != "" {
			args = append(args, "-m", o.Message)
		}
		return one(args...)
	case StashApply, StashPop:
		verb := "apply"
		if o.Kind == StashPop {
			verb = "pop"
		}
		return one("stash", verb, "-q", StashRef(o.Stashes[0]))
	case StashDrop:
		// Dropping shifts later indices down, so drop from the highest.
		idx := slices.Clone(o.Stashes)
		slices.Sort(idx)
		idx = slices.Compact(idx)
		slices.Reverse(idx)
		cmds := make([]Command, 0, len(idx))
		for _, i := range idx {
			cmds = append(cmds, Command{Args: []string{"stash", "drop", "-q", StashRef(i)}})
		}
		return cmds
	case ShowCommit:
		return one("show", "--no-color", "--no-ext-diff", "--stat", "-p", o.Target)
	case ShowStash:
		return one("stash", "show", "--no-color", "--no-ext-diff", "--stat", "-p", StashRef(o.Stashes[0]))
	case ShowLog:
		args := []string{"log", "--graph", "--decorate=short", "--no-color", "--format=%h%d %s (%an, %ar)", "-n" + strconv.Itoa(LogLimit)}
		if revs, ok := logScopes[o.Target]; ok {
			args = append(args, revs...)
		} else {
			args = append(args, o.Target)
		}
		return one(append(args, "--")...)
	}
	return nil
}

func (o Operation) applyCommand() Command {
	args := []string{"apply"}
	if len(o.Patches) == 0 {
		return Command{Args: args}
	}
	var text strings.Builder
	zero := false
	for _, p := range o.Patches {
		text.WriteString(p.Text)
		zero = zero || p.UnidiffZero
	}
	intent := o.Patches[0].Intent
	if intent.Cached() {
		args = append(args, "--cached")
	}
	if intent.Reverse() {
		args = append(args, "--reverse")
	}
	if zero {
		args = append(args, "--unidiff-zero")
	}
	args = append(args, "--whitespace=nowarn", "-")
	return Command{Args: args, Stdin: text.String()}
}
