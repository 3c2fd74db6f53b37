// Package search finds outline rows matching a typed query.
package search

import (
	"sort"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
)

// rows implements fuzzy.Source over row texts.
type rows []string

func (r rows) String(i int) string { return r[i] }
func (r rows) Len() int            { return len(r) }

// Engine manages search state and operations.
type Engine struct {
	query   string
	matches []fuzzy.Match // ordered by row
	index   int
	input   textinput.Model
	active  bool
	content []string
}

// New creates a new search engine.
func New() *Engine {
	ti := textinput.New()
	ti.Placeholder = "Search rows"
	ti.Prompt = "/ "
	ti.CharLimit = 0

	return &Engine{input: ti}
}

// Activate opens the search input with an empty query.
func (e *Engine) Activate() tea.Cmd {
	e.active = true
	e.input.SetValue("")
	e.query = ""
	e.recomputeMatches()
	return e.input.Focus()
}

// Deactivate closes the input. The query stays for n and N.
func (e *Engine) Deactivate() {
	e.active = false
	e.input.Blur()
}

// IsActive returns whether the input is open.
func (e *Engine) IsActive() bool {
	return e.active
}

// Update feeds a message to the input and recomputes the matches.
func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	if q := e.input.Value(); q != e.query {
		e.query = q
		e.index = 0
		e.recomputeMatches()
	}
	return cmd
}

// SetContent replaces the searched rows.
func (e *Engine) SetContent(lines []string) {
	e.content = lines
	e.recomputeMatches()
}

// Query returns the current search query.
func (e *Engine) Query() string {
	return e.query
}

func (e *Engine) recomputeMatches() {
	if e.query == "" {
		e.matches = nil
		e.index = 0
		return
	}
	m := fuzzy.FindFrom(e.query, rows(e.content))
	sort.Slice(m, func(i, j int) bool { return m[i].Index < m[j].Index })
	e.matches = m
	if e.index >= len(m) {
		e.index = 0
	}
}

// Next advances to the next match.
func (e *Engine) Next() {
	if len(e.matches) == 0 {
		return
	}
	e.index = (e.index + 1) % len(e.matches)
}

// Previous moves to the previous match.
func (e *Engine) Previous() {
	if len(e.matches) == 0 {
		return
	}
	e.index = (e.index - 1 + len(e.matches)) % len(e.matches)
}

// Seek makes the first match at or after row current.
func (e *Engine) Seek(row int) {
	for i, m := range e.matches {
		if m.Index >= row {
			e.index = i
			return
		}
	}
	e.index = 0
}

// CurrentMatchLine returns the row of the current match, or -1.
func (e *Engine) CurrentMatchLine() int {
	if len(e.matches) == 0 {
		return -1
	}
	return e.matches[e.index].Index
}

// MatchedIndexes returns the byte offsets matched in row i.
func (e *Engine) MatchedIndexes(i int) []int {
	j := sort.Search(len(e.matches), func(j int) bool { return e.matches[j].Index >= i })
	if j < len(e.matches) && e.matches[j].Index == i {
		return e.matches[j].MatchedIndexes
	}
	return nil
}

// MatchCount returns the number of matches.
func (e *Engine) MatchCount() int {
	return len(e.matches)
}

// CurrentMatchIndex returns the current match index (1-based).
func (e *Engine) CurrentMatchIndex() int {
	if len(e.matches) == 0 {
		return 0
	}
	return e.index + 1
}

// InputView returns the text input view.
func (e *Engine) InputView() string {
	return e.input.View()
}
