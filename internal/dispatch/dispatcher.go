// Package dispatch maps key presses, in the context of the cursor and the
// active mode, to cursor moves, popups and operations.
package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/op"
	"github.com/interpretive-systems/gitscope/internal/outline"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
)

var (
	ErrNotLoaded  = errors.New("repository not loaded yet")
	ErrNoRemote   = errors.New("no remote configured")
	ErrNoUpstream = errors.New("no upstream configured")
	ErrDetached   = errors.New("HEAD is detached")
	ErrNoStash    = errors.New("no stash entries")
)

// ActionKind says what the caller has to do with an Action.
type ActionKind int

const (
	ActNone ActionKind = iota
	// ActMove moves the cursor to Cursor.
	ActMove
	// ActToggle flips the collapsed flag of Addr.
	ActToggle
	ActExpandAll
	// ActRun submits Op.
	ActRun
	ActRefresh
	ActQuit
	// ActMode reports a mode change, including popups opening and closing.
	ActMode
	// ActInput asks the caller to read a line for Dispatcher.Input.
	ActInput
	ActSearch
	ActSearchNext
	ActSearchPrev
	// ActHint reports Err without changing anything.
	ActHint
)

// Action is the outcome of one key press.
type Action struct {
	Kind   ActionKind
	Cursor outline.Cursor
	Addr   outline.Address
	Op     op.Operation
	Err    error
}

func hint(err error) Action { return Action{Kind: ActHint, Err: err} }

// Context is the view state a key press is interpreted against.
type Context struct {
	Tree   *outline.Tree
	Cursor outline.Cursor
	// Height is the number of visible rows, used for half-page moves.
	Height int
}

func (c Context) state() *snapshot.State {
	if c.Tree == nil {
		return nil
	}
	return c.Tree.State
}

// Dispatcher holds the mode stack and the popup and selection state. It is
// used from the interaction loop only.
type Dispatcher struct {
	keys     KeyMap
	handler  *KeyHandler
	modes    ModeStack
	anchor   outline.Cursor
	patches  diff.PatchBuilder
	defaults map[op.Kind]op.Options
	popup    *Popup
	input    *Input
	sel      *Select
}

// New creates a dispatcher. defaults holds the initial popup switches per
// operation kind.
func New(keys KeyMap, patches diff.PatchBuilder, defaults map[op.Kind]op.Options) *Dispatcher {
	return &Dispatcher{
		keys:     keys,
		handler:  NewKeyHandler(keys),
		patches:  patches,
		defaults: defaults,
	}
}

// Mode returns the innermost active mode.
func (d *Dispatcher) Mode() Mode { return d.modes.Top() }

// Visual reports whether a visual selection is active.
func (d *Dispatcher) Visual() bool { return d.modes.Has(ModeVisual) }

// Popup returns the open popup, or nil.
func (d *Dispatcher) Popup() *Popup { return d.popup }

// Input returns the pending text request, or nil.
func (d *Dispatcher) Input() *Input { return d.input }

// Select returns the open selection list, or nil.
func (d *Dispatcher) Select() *Select { return d.sel }

// Keys returns the key map.
func (d *Dispatcher) Keys() KeyMap { return d.keys }

// Pending returns the typed count or key prefix.
func (d *Dispatcher) Pending() string { return d.handler.KeyBuffer() }

// Selection returns the selection for the given cursor.
func (d *Dispatcher) Selection(c outline.Cursor) Selection {
	return Selection{Anchor: d.anchor, Cursor: c, Visual: d.Visual()}
}

// HandleKey interprets one key press.
func (d *Dispatcher) HandleKey(k fmt.Stringer, ctx Context) Action {
	switch d.modes.Top() {
	case ModePopup:
		return d.popupKey(k, ctx)
	case ModeSearch:
		// The caller edits the query and ends the search.
		return Action{}
	}

	a, count := d.handler.Handle(k)
	switch a {
	case ActionNone:
		return Action{}
	case ActionQuit:
		return Action{Kind: ActQuit}
	case ActionRefresh:
		return Action{Kind: ActRefresh}
	case ActionHelp:
		return d.openPopup(PopupHelp)
	case ActionCancel:
		if d.modes.Has(ModeVisual) {
			d.modes.Reset()
			return Action{Kind: ActMode}
		}
		return Action{}
	case ActionSearch:
		if err := d.modes.Push(ModeSearch); err != nil {
			return hint(err)
		}
		return Action{Kind: ActSearch}
	case ActionSearchNext:
		return Action{Kind: ActSearchNext}
	case ActionSearchPrevious:
		return Action{Kind: ActSearchPrev}
	}

	if ctx.Tree == nil {
		return hint(ErrNotLoaded)
	}
	switch a {
	case ActionMoveUp, ActionMoveDown, ActionGoToTop, ActionGoToBottom,
		ActionHalfPageDown, ActionHalfPageUp, ActionNextSection,
		ActionPrevSection, ActionParentSection:
		return d.move(a, count, ctx)
	case ActionVisual:
		if d.modes.Has(ModeVisual) {
			d.modes.Reset()
			return Action{Kind: ActMode}
		}
		if err := d.modes.Push(ModeVisual); err != nil {
			return hint(err)
		}
		d.anchor = ctx.Cursor
		return Action{Kind: ActMode}
	case ActionToggle:
		return d.contextual(CmdToggle, ctx)
	case ActionExpandAll:
		if d.Visual() {
			return Action{}
		}
		return Action{Kind: ActExpandAll}
	case ActionStage:
		return d.contextual(CmdStage, ctx)
	case ActionUnstage:
		return d.contextual(CmdUnstage, ctx)
	case ActionDiscard:
		return d.contextual(CmdDiscard, ctx)
	case ActionShow:
		return d.contextual(CmdShow, ctx)
	case ActionStageAll:
		return d.submit(op.Operation{Kind: op.StageAll})
	case ActionUnstageAll:
		return d.submit(op.Operation{Kind: op.UnstageAll})
	case ActionCommit:
		return d.openPopup(PopupCommit)
	case ActionPush:
		return d.openPopup(PopupPush)
	case ActionPull:
		return d.openPopup(PopupPull)
	case ActionFetch:
		return d.openPopup(PopupFetch)
	case ActionBranch:
		return d.openPopup(PopupBranch)
	case ActionStash:
		return d.openPopup(PopupStash)
	case ActionLog:
		return d.openPopup(PopupLog)
	}
	return Action{}
}

// EndSearch leaves search mode.
func (d *Dispatcher) EndSearch() {
	if d.modes.Top() == ModeSearch {
		d.modes.Pop()
	}
}

// SubmitInput completes the pending text request.
func (d *Dispatcher) SubmitInput(text string) Action {
	in := d.input
	if in == nil {
		return Action{}
	}
	d.input = nil
	text = strings.TrimSpace(text)
	if text == "" && !in.AllowEmpty {
		d.closePopup()
		return hint(fmt.Errorf("%s: %w", strings.ToLower(in.Prompt), op.ErrMissingTarget))
	}
	o, err := in.build(text)
	if err != nil {
		d.closePopup()
		return hint(err)
	}
	return d.submit(o)
}

// CancelInput drops the pending text request and returns to its popup.
func (d *Dispatcher) CancelInput() Action {
	d.input = nil
	return Action{Kind: ActMode}
}

// Rebase carries the visual anchor over to a rebuilt tree.
func (d *Dispatcher) Rebase(t, prev *outline.Tree) {
	if !d.Visual() || t == nil {
		return
	}
	d.anchor = t.Resolve(prev, d.anchor)
}

// Reset returns to normal mode, closing any popup.
func (d *Dispatcher) Reset() {
	d.popup = nil
	d.input = nil
	d.sel = nil
	d.modes.Reset()
	d.handler.ClearBuffer()
}

func (d *Dispatcher) move(a KeyAction, count int, ctx Context) Action {
	t := ctx.Tree
	rows := t.Rows()
	if len(rows) == 0 {
		return Action{}
	}
	i, ok := t.RowIndex(ctx.Cursor)
	if !ok {
		i = 0
	}
	half := max(ctx.Height/2, 1)
	switch a {
	case ActionMoveUp:
		i -= count
	case ActionMoveDown:
		i += count
	case ActionGoToTop:
		i = 0
	case ActionGoToBottom:
		i = len(rows) - 1
	case ActionHalfPageDown:
		i += half * count
	case ActionHalfPageUp:
		i -= half * count
	case ActionNextSection, ActionPrevSection:
		addr := ctx.Cursor.Addr
		for n := 0; n < count; n++ {
			next, ok := d.siblingOrUncle(t, addr, a == ActionNextSection)
			if !ok {
				break
			}
			addr = next
		}
		return Action{Kind: ActMove, Cursor: outline.Cursor{Addr: addr}}
	case ActionParentSection:
		if ctx.Cursor.Line > 0 {
			return Action{Kind: ActMove, Cursor: outline.Cursor{Addr: ctx.Cursor.Addr}}
		}
		p, ok := t.Parent(ctx.Cursor.Addr)
		if !ok || p.Kind == outline.KindRoot {
			return Action{}
		}
		return Action{Kind: ActMove, Cursor: outline.Cursor{Addr: p}}
	}
	return Action{Kind: ActMove, Cursor: t.CursorAt(i)}
}

// siblingOrUncle steps to the adjacent section at the same level, climbing
// to the parent's level when a is the last one.
func (d *Dispatcher) siblingOrUncle(t *outline.Tree, a outline.Address, forward bool) (outline.Address, bool) {
	for cur := a; ; {
		var next outline.Address
		var ok bool
		if forward {
			next, ok = t.NextSibling(cur)
		} else {
			next, ok = t.PrevSibling(cur)
		}
		if ok {
			return next, true
		}
		if !forward {
			// Going back from a first child lands on its parent.
			p, ok := t.Parent(cur)
			return p, ok && p.Kind != outline.KindRoot
		}
		p, ok := t.Parent(cur)
		if !ok || p.Kind == outline.KindRoot {
			return outline.Address{}, false
		}
		cur = p
	}
}

func (d *Dispatcher) baseMode() Mode {
	if d.Visual() {
		return ModeVisual
	}
	return ModeNormal
}

// contextual runs cmd against the current selection. Commands that do not
// apply to it are ignored.
func (d *Dispatcher) contextual(cmd Command, ctx Context) Action {
	target, err := Classify(ctx.Tree, d.Selection(ctx.Cursor))
	if err != nil {
		return hint(err)
	}
	if !Applicable(cmd, target.Kind, target.Shape, d.baseMode()) {
		return Action{}
	}
	if cmd == CmdToggle {
		return Action{Kind: ActToggle, Addr: target.Sections[0]}
	}
	o, err := d.build(cmd, target, ctx.Tree)
	if err != nil {
		return hint(err)
	}
	if cmd == CmdDiscard || cmd == CmdStashDrop {
		return d.confirm(o)
	}
	return d.submit(o)
}

// submit validates o and hands it to the caller, returning to normal mode.
func (d *Dispatcher) submit(o op.Operation) Action {
	if err := o.Validate(); err != nil {
		d.closePopup()
		return hint(err)
	}
	d.Reset()
	return Action{Kind: ActRun, Op: o}
}

func (d *Dispatcher) openPopup(kind PopupKind) Action {
	if err := d.modes.Push(ModePopup); err != nil {
		return hint(err)
	}
	d.popup = newPopup(kind, d.defaults)
	return Action{Kind: ActMode}
}

func (d *Dispatcher) closePopup() {
	if d.popup == nil {
		return
	}
	d.popup = nil
	d.input = nil
	d.sel = nil
	if d.modes.Top() == ModePopup {
		d.modes.Pop()
	}
}

func (d *Dispatcher) confirm(o op.Operation) Action {
	if d.popup == nil {
		if err := d.modes.Push(ModePopup); err != nil {
			return hint(err)
		}
	}
	d.popup = newPopup(PopupConfirm, nil)
	d.popup.Message = confirmMessage(o)
	d.popup.Pending = o
	return Action{Kind: ActMode}
}

func confirmMessage(o op.Operation) string {
	switch {
	case o.Kind == op.StashDrop && len(o.Stashes) == 1:
		return "Drop " + op.StashRef(o.Stashes[0]) + "?"
	case o.Kind == op.StashDrop:
		return fmt.Sprintf("Drop %d stashes?", len(o.Stashes))
	case o.Kind == op.DiscardUntracked:
		return fmt.Sprintf("Delete %s?", plural(len(o.Paths), "untracked file"))
	case len(o.Paths) > 0:
		return fmt.Sprintf("Discard changes to %s?", plural(len(o.Paths), "file"))
	case len(o.Patches) == 1:
		return "Discard selected changes in " + o.Patches[0].Path + "?"
	default:
		return fmt.Sprintf("Discard selected changes in %s?", plural(len(o.Patches), "file"))
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func (d *Dispatcher) popupKey(k fmt.Stringer, ctx Context) Action {
	p := d.popup
	if p == nil {
		d.modes.Pop()
		return Action{Kind: ActMode}
	}
	if d.input != nil {
		return Action{}
	}
	if d.sel != nil {
		return d.selectKey(k)
	}
	if p.Kind == PopupHelp {
		d.closePopup()
		return Action{Kind: ActMode}
	}
	s := k.String()

	if p.Kind == PopupConfirm {
		switch {
		case s == "y" || s == "enter":
			return d.submit(p.Pending)
		case s == "n" || s == "q" || key.Matches(k, d.keys.Cancel):
			d.closePopup()
			return Action{Kind: ActMode}
		}
		return Action{}
	}

	if key.Matches(k, d.keys.Cancel) || s == "q" {
		if p.ArgMode {
			p.ArgMode = false
		} else {
			d.closePopup()
		}
		return Action{Kind: ActMode}
	}
	r := []rune(s)
	if len(r) != 1 {
		return Action{}
	}
	if p.ArgMode {
		p.ArgMode = false
		if o, ok := op.OptionByKey(p.OptionKind, r[0]); ok {
			opts, err := p.Options.Toggle(p.OptionKind, o)
			if err != nil {
				return hint(err)
			}
			p.Options = opts
		}
		return Action{Kind: ActMode}
	}
	if r[0] == '-' && p.OptionKind != 0 {
		p.ArgMode = true
		return Action{Kind: ActMode}
	}
	if !p.entry(r[0]) {
		return Action{}
	}
	st := ctx.state()
	if st == nil {
		d.closePopup()
		return hint(ErrNotLoaded)
	}
	return d.popupAction(p, r[0], st, ctx)
}

func (d *Dispatcher) ask(in *Input) Action {
	d.input = in
	return Action{Kind: ActInput}
}

func (d *Dispatcher) fail(err error) Action {
	d.closePopup()
	return hint(err)
}

func (d *Dispatcher) popupAction(p *Popup, r rune, st *snapshot.State, ctx Context) Action {
	opts := p.Options
	switch p.Kind {
	case PopupCommit:
		switch r {
		case 'c':
			return d.ask(&Input{Prompt: "Commit message", build: func(s string) (op.Operation, error) {
				return op.Operation{Kind: op.Commit, Options: opts, Message: s}, nil
			}})
		case 'a':
			return d.submit(op.Operation{Kind: op.Amend, Options: opts})
		case 'w':
			return d.ask(&Input{Prompt: "Reword", Initial: st.HeadSubject(), build: func(s string) (op.Operation, error) {
				return op.Operation{Kind: op.Reword, Message: s}, nil
			}})
		case 'f':
			fixup := func(hash string) Action {
				return d.submit(op.Operation{Kind: op.Fixup, Options: opts.For(op.Fixup), Target: hash})
			}
			if s, ok := ctx.Tree.Lookup(ctx.Cursor.Addr); ok && s.Addr.Kind.IsCommit() && !d.Visual() {
				return fixup(s.Detail)
			}
			labels := make([]string, 0, len(st.Commits))
			hashes := make([]string, 0, len(st.Commits))
			for _, c := range st.Commits {
				labels = append(labels, c.Short+" "+c.Subject)
				hashes = append(hashes, c.Hash)
			}
			return d.choose(NewSelect("Fixup commit", labels, hashes, fixup))
		}

	case PopupPush:
		if r == 't' || r == 'T' {
			remote := st.PushRemote()
			if remote == "" {
				return d.fail(ErrNoRemote)
			}
			if r == 'T' {
				return d.submit(op.Operation{Kind: op.PushTags, Options: opts.For(op.PushTags), Target: remote})
			}
			tags := make([]string, 0, len(st.Tags))
			for _, t := range st.Tags {
				tags = append(tags, t.Name)
			}
			return d.choose(NewSelect("Push tag to "+remote, tags, nil, func(tag string) Action {
				return d.submit(op.Operation{Kind: op.PushTag, Options: opts.For(op.PushTag), Target: remote, Ref: tag})
			}))
		}
		if st.Branch.Detached() {
			return d.fail(ErrDetached)
		}
		head := st.HeadName()
		switch r {
		case 'p':
			remote := st.PushRemote()
			if remote == "" {
				return d.fail(ErrNoRemote)
			}
			return d.submit(op.Operation{Kind: op.Push, Options: opts, Target: remote, Ref: head})
		case 'u':
			if remote, branch, ok := upstream(st); ok {
				return d.submit(op.Operation{Kind: op.Push, Options: opts, Target: remote, Ref: head + ":" + branch})
			}
			remote := st.PushRemote()
			if remote == "" {
				return d.fail(ErrNoRemote)
			}
			return d.submit(op.Operation{Kind: op.Push, Options: opts.With(op.SetUpstream), Target: remote, Ref: head})
		case 'e':
			return d.ask(&Input{Prompt: "Push to (remote [branch])", Initial: st.PushRemote(), build: func(s string) (op.Operation, error) {
				fields := strings.Fields(s)
				o := op.Operation{Kind: op.Push, Options: opts, Target: fields[0], Ref: head}
				if len(fields) > 1 {
					o.Ref = head + ":" + fields[1]
				}
				return o, nil
			}})
		}

	case PopupPull:
		switch r {
		case 'u':
			if st.Branch.Upstream == "" {
				return d.fail(ErrNoUpstream)
			}
			return d.submit(op.Operation{Kind: op.Pull, Options: opts})
		case 'p':
			if st.Branch.Detached() {
				return d.fail(ErrDetached)
			}
			remote := st.PushRemote()
			if remote == "" {
				return d.fail(ErrNoRemote)
			}
			return d.submit(op.Operation{Kind: op.Pull, Options: opts, Target: remote, Ref: st.HeadName()})
		}

	case PopupFetch:
		switch r {
		case 'u':
			remote, _, ok := upstream(st)
			if !ok {
				return d.fail(ErrNoUpstream)
			}
			return d.submit(op.Operation{Kind: op.Fetch, Options: opts, Target: remote})
		case 'p':
			remote := st.PushRemote()
			if remote == "" {
				return d.fail(ErrNoRemote)
			}
			return d.submit(op.Operation{Kind: op.Fetch, Options: opts, Target: remote})
		case 'a':
			return d.submit(op.Operation{Kind: op.FetchAll, Options: opts})
		}

	case PopupBranch:
		pick := func(kind op.Kind, o op.Options) func(string) Action {
			return func(s string) Action {
				return d.submit(op.Operation{Kind: kind, Options: o, Target: s})
			}
		}
		switch r {
		case 'b':
			sel := NewSelect("Checkout", branchNames(st, true), nil, pick(op.Checkout, 0))
			sel.Free = true
			return d.choose(sel)
		case 'c':
			return d.ask(&Input{Prompt: "Create branch", build: func(s string) (op.Operation, error) {
				return op.Operation{Kind: op.CreateBranch, Target: s}, nil
			}})
		case 'm':
			return d.choose(NewSelect("Rename branch", localBranches(st.Branches), nil, func(old string) Action {
				return d.ask(&Input{Prompt: "Rename " + old + " to", Initial: old, build: func(s string) (op.Operation, error) {
					return op.Operation{Kind: op.RenameBranch, Target: old, Ref: s}, nil
				}})
			}))
		case 'x':
			return d.choose(NewSelect("Delete branch", branchNames(st, false), nil, pick(op.DeleteBranch, opts)))
		}

	case PopupLog:
		scope := map[rune]string{'l': "HEAD", 'L': op.LogLocalBranches, 'b': op.LogAllBranches, 'a': op.LogAllRefs}
		if target, ok := scope[r]; ok {
			return d.submit(op.Operation{Kind: op.ShowLog, Target: target})
		}

	case PopupStash:
		switch r {
		case 'z':
			return d.ask(&Input{Prompt: "Stash message", AllowEmpty: true, build: func(s string) (op.Operation, error) {
				return op.Operation{Kind: op.StashPush, Options: opts, Message: s}, nil
			}})
		case 'a':
			return d.stash(CmdStashApply, st, ctx)
		case 'p':
			return d.stash(CmdStashPop, st, ctx)
		case 'k':
			return d.stash(CmdStashDrop, st, ctx)
		}
	}
	return Action{}
}

// stash acts on the stashes under the selection, or on the newest stash
// when the cursor is not on one. A visual selection the command cannot take
// is rejected rather than replaced by the newest stash.
func (d *Dispatcher) stash(cmd Command, st *snapshot.State, ctx Context) Action {
	var o op.Operation
	t, err := Classify(ctx.Tree, d.Selection(ctx.Cursor))
	if err == nil && t.Shape == ShapeSections && len(t.Sections) == 1 {
		t.Shape = ShapeCursor
	}
	switch {
	case err == nil && Applicable(cmd, t.Kind, t.Shape, d.baseMode()):
		if o, err = d.build(cmd, t, ctx.Tree); err != nil {
			return d.fail(err)
		}
	case d.Visual():
		if err == nil {
			err = fmt.Errorf("%s takes one stash, not a %s selection: %w", stashKinds[cmd], t.Shape, diff.ErrInvalidSelection)
		}
		return d.fail(err)
	default:
		if len(st.Stashes) == 0 {
			return d.fail(ErrNoStash)
		}
		o = op.Operation{Kind: stashKinds[cmd], Stashes: []int{st.Stashes[0].Index}}
	}
	if cmd == CmdStashDrop {
		return d.confirm(o)
	}
	return d.submit(o)
}

var stashKinds = map[Command]op.Kind{
	CmdStashApply: op.StashApply,
	CmdStashPop:   op.StashPop,
	CmdStashDrop:  op.StashDrop,
}

// upstream splits the configured upstream into remote and branch.
func upstream(st *snapshot.State) (remote, branch string, ok bool) {
	up := st.Branch.Upstream
	if up == "" {
		return "", "", false
	}
	for _, r := range st.Remotes {
		if rest, found := strings.CutPrefix(up, r+"/"); found {
			return r, rest, true
		}
	}
	remote, branch, ok = strings.Cut(up, "/")
	return remote, branch, ok
}
