package dispatch

import (
	"github.com/interpretive-systems/gitscope/internal/op"
)

// PopupKind identifies a popup menu.
type PopupKind int

const (
	PopupCommit PopupKind = iota + 1
	PopupPush
	PopupPull
	PopupFetch
	PopupBranch
	PopupStash
	PopupLog
	PopupConfirm
	PopupHelp
)

// PopupEntry is one action of a popup.
type PopupEntry struct {
	Key   rune
	Label string
}

// Popup is an open menu. Options are the switches toggled with "-" followed
// by the option key; they apply to OptionKind.
type Popup struct {
	Kind       PopupKind
	Title      string
	OptionKind op.Kind
	Options    op.Options
	Entries    []PopupEntry
	// ArgMode is set after "-" until the next key picks an option.
	ArgMode bool
	// Message and Pending are set on confirmation popups.
	Message string
	Pending op.Operation
}

// OptionSpecs returns the switches the popup offers.
func (p *Popup) OptionSpecs() []op.OptionSpec {
	if p.OptionKind == 0 {
		return nil
	}
	return op.OptionSpecs(p.OptionKind)
}

func (p *Popup) entry(r rune) bool {
	for _, e := range p.Entries {
		if e.Key == r {
			return true
		}
	}
	return false
}

func newPopup(kind PopupKind, defaults map[op.Kind]op.Options) *Popup {
	p := &Popup{Kind: kind}
	switch kind {
	case PopupCommit:
		p.Title, p.OptionKind = "Commit", op.Commit
		p.Entries = []PopupEntry{{'c', "Commit"}, {'a', "Amend"}, {'w', "Reword"}, {'f', "Fixup"}}
	case PopupPush:
		p.Title, p.OptionKind = "Push", op.Push
		p.Entries = []PopupEntry{{'p', "pushRemote"}, {'u', "upstream"}, {'e', "elsewhere"}, {'t', "a tag"}, {'T', "all tags"}}
	case PopupPull:
		p.Title, p.OptionKind = "Pull", op.Pull
		p.Entries = []PopupEntry{{'u', "upstream"}, {'p', "pushRemote"}}
	case PopupFetch:
		p.Title, p.OptionKind = "Fetch", op.Fetch
		p.Entries = []PopupEntry{{'u', "upstream"}, {'p', "pushRemote"}, {'a', "all remotes"}}
	case PopupBranch:
		p.Title, p.OptionKind = "Branch", op.DeleteBranch
		p.Entries = []PopupEntry{{'b', "Checkout"}, {'c', "Create and checkout"}, {'m', "Rename"}, {'x', "Delete"}}
	case PopupStash:
		p.Title, p.OptionKind = "Stash", op.StashPush
		p.Entries = []PopupEntry{{'z', "Stash"}, {'a', "Apply"}, {'p', "Pop"}, {'k', "Drop"}}
	case PopupLog:
		p.Title = "Log"
		p.Entries = []PopupEntry{{'l', "current"}, {'L', "local branches"}, {'b', "all branches"}, {'a', "all references"}}
	case PopupConfirm:
		p.Title = "Confirm"
		p.Entries = []PopupEntry{{'y', "Yes"}, {'n', "No"}}
	case PopupHelp:
		p.Title = "Help"
	}
	if p.OptionKind != 0 {
		p.Options = defaults[p.OptionKind]
	}
	return p
}

// Input asks for a line of text to complete a popup action.
type Input struct {
	Prompt  string
	Initial string
	// AllowEmpty accepts an empty answer.
	AllowEmpty bool

	build func(text string) (op.Operation, error)
}
