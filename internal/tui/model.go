package tui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/dispatch"
	"github.com/interpretive-systems/gitscope/internal/op"
	"github.com/interpretive-systems/gitscope/internal/outline"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
	"github.com/interpretive-systems/gitscope/internal/tui/components"
	"github.com/interpretive-systems/gitscope/internal/tui/search"
	"github.com/interpretive-systems/gitscope/internal/tui/theme"
)

// Loader produces repository snapshots. *snapshot.Loader implements it.
type Loader interface {
	Load(ctx context.Context) (*snapshot.State, error)
	Invalidate()
}

// Executor runs operations off the loop. *executor.Executor implements it.
type Executor interface {
	Submit(o op.Operation) (uint64, error)
	Results() <-chan op.Result
	Pending() int
}

// Options configure a Model.
type Options struct {
	// Title is shown at the top left, usually the repository root.
	Title      string
	Loader     Loader
	Executor   Executor
	Dispatcher *dispatch.Dispatcher
	Policy     outline.Policy
	Theme      theme.Theme
	// Highlight enables syntax colors on context lines.
	Highlight bool
	// Changes delivers watcher triggers. Nil disables watching.
	Changes <-chan struct{}
	Log     *slog.Logger
}

// Model is the interaction loop. It alone owns the tree, the cursor and
// the dispatcher.
type Model struct {
	title   string
	loader  Loader
	exec    Executor
	disp    *dispatch.Dispatcher
	policy  outline.Policy
	changes <-chan struct{}
	log     *slog.Logger

	tree   *outline.Tree
	cursor outline.Cursor
	// searchFrom is where the cursor was when the search started.
	searchFrom outline.Cursor
	// showID is the latest show operation; older show results are dropped.
	showID uint64

	width  int
	height int
	notice string
	hint   string

	layout *Layout
	rows   *components.RowView
	popups *components.PopupView
	detail *components.DetailView
	status *components.StatusBar
	search *search.Engine
	input  textinput.Model
	help   help.Model
	theme  theme.Theme
}

// New creates the model.
func New(opts Options) Model {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	disp := opts.Dispatcher
	if disp == nil {
		disp = dispatch.New(dispatch.DefaultKeyMap(), diff.NewPatchBuilder(diff.DefaultContextLines), nil)
	}
	var hl *components.Highlighter
	if opts.Highlight {
		hl = components.NewHighlighter()
	}
	h := help.New()
	in := textinput.New()
	in.CharLimit = 0

	return Model{
		title:   opts.Title,
		loader:  opts.Loader,
		exec:    opts.Executor,
		disp:    disp,
		policy:  opts.Policy,
		changes: opts.Changes,
		log:     log,
		layout:  NewLayout(),
		rows:    components.NewRowView(opts.Theme, hl),
		popups:  components.NewPopupView(opts.Theme),
		detail:  components.NewDetailView(opts.Theme),
		status:  components.NewStatusBar(h.ShortHelpView(disp.Keys().ShortHelp())),
		search:  search.New(),
		input:   in,
		help:    h,
		theme:   opts.Theme,
	}
}

// Tree returns the current outline, or nil before the first refresh.
func (m Model) Tree() *outline.Tree { return m.tree }

// Cursor returns the cursor position.
func (m Model) Cursor() outline.Cursor { return m.cursor }

// Notice returns the last failure shown to the user.
func (m Model) Notice() string { return m.notice }
