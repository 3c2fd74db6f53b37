package dispatch

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
)

// KeyAction is what a key press in normal or visual mode asks for.
type KeyAction int

const (
	ActionNone KeyAction = iota
	ActionQuit
	ActionHelp
	ActionRefresh
	ActionMoveUp
	ActionMoveDown
	ActionGoToTop
	ActionGoToBottom
	ActionHalfPageDown
	ActionHalfPageUp
	ActionNextSection
	ActionPrevSection
	ActionParentSection
	ActionToggle
	ActionExpandAll
	ActionVisual
	ActionCancel
	ActionStage
	ActionUnstage
	ActionDiscard
	ActionStageAll
	ActionUnstageAll
	ActionShow
	ActionCommit
	ActionPush
	ActionPull
	ActionFetch
	ActionBranch
	ActionStash
	ActionLog
	ActionSearch
	ActionSearchNext
	ActionSearchPrevious
)

// KeyMap binds keys to actions. Two-key sequences starting with "g" are
// written as the concatenated keys, e.g. "gg".
type KeyMap struct {
	Quit         key.Binding
	Help         key.Binding
	Refresh      key.Binding
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	HalfPageDown key.Binding
	HalfPageUp   key.Binding
	NextSection  key.Binding
	PrevSection  key.Binding
	Parent       key.Binding
	Toggle       key.Binding
	ExpandAll    key.Binding
	Visual       key.Binding
	Cancel       key.Binding
	Stage        key.Binding
	Unstage      key.Binding
	Discard      key.Binding
	StageAll     key.Binding
	UnstageAll   key.Binding
	Show         key.Binding
	Commit       key.Binding
	Push         key.Binding
	Pull         key.Binding
	Fetch        key.Binding
	Branch       key.Binding
	Stash        key.Binding
	Log          key.Binding
	Search       key.Binding
	SearchNext   key.Binding
	SearchPrev   key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	b := func(help string, keys ...string) key.Binding {
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
	}
	return KeyMap{
		Quit:         b("quit", "q", "ctrl+c"),
		Help:         b("help", "?"),
		Refresh:      b("refresh", "gr", "ctrl+r"),
		Up:           b("up", "k", "up"),
		Down:         b("down", "j", "down"),
		Top:          b("top", "gg", "home"),
		Bottom:       b("bottom", "G", "end"),
		HalfPageDown: b("half page down", "ctrl+d", "pgdown"),
		HalfPageUp:   b("half page up", "ctrl+u", "pgup"),
		NextSection:  b("next section", "ctrl+n", "}"),
		PrevSection:  b("previous section", "ctrl+p", "{"),
		Parent:       b("parent section", "^"),
		Toggle:       b("fold", "tab"),
		ExpandAll:    b("expand all", "shift+tab"),
		Visual:       b("visual select", "V", "v"),
		Cancel:       b("cancel", "esc", "ctrl+g"),
		Stage:        b("stage", "s"),
		Unstage:      b("unstage", "u"),
		Discard:      b("discard", "x"),
		StageAll:     b("stage all tracked", "S"),
		UnstageAll:   b("unstage all", "U"),
		Show:         b("show", "enter"),
		Commit:       b("commit", "c"),
		Push:         b("push", "P", "p"),
		Pull:         b("pull", "F"),
		Fetch:        b("fetch", "f"),
		Branch:       b("branch", "b"),
		Stash:        b("stash", "z"),
		Log:          b("log", "l"),
		Search:       b("search", "/"),
		SearchNext:   b("next match", "n"),
		SearchPrev:   b("previous match", "N"),
	}
}

// Bindings lists the bindings in help order.
func (m KeyMap) Bindings() []key.Binding {
	return []key.Binding{
		m.Up, m.Down, m.Top, m.Bottom, m.HalfPageDown, m.HalfPageUp,
		m.NextSection, m.PrevSection, m.Parent, m.Toggle, m.ExpandAll,
		m.Visual, m.Cancel, m.Stage, m.Unstage, m.Discard, m.StageAll, m.UnstageAll, m.Show,
		m.Commit, m.Push, m.Pull, m.Fetch, m.Branch, m.Stash, m.Log,
		m.Search, m.SearchNext, m.SearchPrev, m.Refresh, m.Help, m.Quit,
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (m KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Stage, m.Unstage, m.Commit, m.Push, m.Help, m.Quit}
}

// FullHelp groups the bindings for the help popup.
func (m KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.Up, m.Down, m.Top, m.Bottom, m.HalfPageDown, m.HalfPageUp, m.NextSection, m.PrevSection, m.Parent},
		{m.Toggle, m.ExpandAll, m.Visual, m.Cancel, m.Show, m.Search, m.SearchNext, m.SearchPrev},
		{m.Stage, m.Unstage, m.Discard, m.StageAll, m.UnstageAll, m.Refresh, m.Help, m.Quit},
		{m.Commit, m.Push, m.Pull, m.Fetch, m.Branch, m.Stash, m.Log},
	}
}

func (m KeyMap) actions() []struct {
	b key.Binding
	a KeyAction
} {
	return []struct {
		b key.Binding
		a KeyAction
	}{
		{m.Quit, ActionQuit}, {m.Help, ActionHelp}, {m.Refresh, ActionRefresh},
		{m.Up, ActionMoveUp}, {m.Down, ActionMoveDown},
		{m.Top, ActionGoToTop}, {m.Bottom, ActionGoToBottom},
		{m.HalfPageDown, ActionHalfPageDown}, {m.HalfPageUp, ActionHalfPageUp},
		{m.NextSection, ActionNextSection}, {m.PrevSection, ActionPrevSection},
		{m.Parent, ActionParentSection}, {m.Toggle, ActionToggle},
		{m.ExpandAll, ActionExpandAll}, {m.Visual, ActionVisual},
		{m.Cancel, ActionCancel}, {m.Stage, ActionStage},
		{m.Unstage, ActionUnstage}, {m.Discard, ActionDiscard},
		{m.StageAll, ActionStageAll}, {m.UnstageAll, ActionUnstageAll},
		{m.Show, ActionShow}, {m.Commit, ActionCommit}, {m.Push, ActionPush},
		{m.Pull, ActionPull}, {m.Fetch, ActionFetch}, {m.Branch, ActionBranch},
		{m.Stash, ActionStash}, {m.Log, ActionLog}, {m.Search, ActionSearch},
		{m.SearchNext, ActionSearchNext}, {m.SearchPrev, ActionSearchPrevious},
	}
}

type keyString string

func (k keyString) String() string { return string(k) }

// KeyHandler turns key presses into actions. It keeps a count prefix for
// movement and a pending "g" for two-key sequences.
type KeyHandler struct {
	keys      KeyMap
	keyBuffer string
	prefix    string
}

// NewKeyHandler creates a key handler for m.
func NewKeyHandler(m KeyMap) *KeyHandler {
	return &KeyHandler{keys: m}
}

// Handle processes one key press and returns the action with its count.
func (k *KeyHandler) Handle(msg fmt.Stringer) (KeyAction, int) {
	s := msg.String()

	if k.prefix != "" {
		s = k.prefix + s
		k.prefix = ""
	} else if s == "g" {
		k.prefix = s
		return ActionNone, 0
	}

	// Digits build up a count; a leading 0 is not a count.
	if len(s) == 1 && s >= "0" && s <= "9" && (s != "0" || k.keyBuffer != "") {
		k.keyBuffer += s
		return ActionNone, 0
	}

	count := 1
	if k.keyBuffer != "" {
		if n, err := strconv.Atoi(k.keyBuffer); err == nil && n > 0 {
			count = n
		}
		k.keyBuffer = ""
	}
	return k.keyToAction(keyString(s)), count
}

// KeyBuffer returns the pending count and prefix.
func (k *KeyHandler) KeyBuffer() string {
	return k.keyBuffer + k.prefix
}

// ClearBuffer drops any pending count or prefix.
func (k *KeyHandler) ClearBuffer() {
	k.keyBuffer = ""
	k.prefix = ""
}

func (k *KeyHandler) keyToAction(s keyString) KeyAction {
	for _, e := range k.keys.actions() {
		if key.Matches(s, e.b) {
			return e.a
		}
	}
	return ActionNone
}
