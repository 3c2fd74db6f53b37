package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/interpretive-systems/gitscope/internal/gitx"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
)

// ErrNoChoice is returned when a selection list has nothing to pick.
var ErrNoChoice = errors.New("nothing to choose from")

// Select picks one entry of a list narrowed by a fuzzy query. Labels are
// shown and matched; the picked entry's value is passed on.
type Select struct {
	Prompt string
	Labels []string
	// Free accepts the typed query when no label matches it.
	Free bool

	values  []string
	query   string
	matches []SelectMatch
	cursor  int
	pick    func(value string) Action
}

// SelectMatch is one visible entry. Positions are the byte offsets of the
// matched characters within Label.
type SelectMatch struct {
	Label     string
	Positions []int
	index     int
}

// NewSelect lists labels for picking. values, when set, holds what each
// label stands for; pick receives the chosen value.
func NewSelect(prompt string, labels, values []string, pick func(string) Action) *Select {
	if values == nil {
		values = labels
	}
	s := &Select{Prompt: prompt, Labels: labels, values: values, pick: pick}
	s.filter()
	return s
}

// Query returns the typed filter.
func (s *Select) Query() string { return s.query }

// Matches returns the entries matching the query, best first. An empty
// query lists every entry in order.
func (s *Select) Matches() []SelectMatch { return s.matches }

// Cursor is the index into Matches of the highlighted entry.
func (s *Select) Cursor() int { return s.cursor }

// SetQuery replaces the filter and moves the highlight to the best match.
func (s *Select) SetQuery(q string) {
	s.query = q
	s.filter()
}

// Move shifts the highlight by n, staying within the matches.
func (s *Select) Move(n int) {
	s.cursor = max(0, min(s.cursor+n, len(s.matches)-1))
}

// Value returns what enter would pick.
func (s *Select) Value() (string, bool) {
	if len(s.matches) > 0 {
		return s.values[s.matches[s.cursor].index], true
	}
	if s.Free && strings.TrimSpace(s.query) != "" {
		return strings.TrimSpace(s.query), true
	}
	return "", false
}

func (s *Select) filter() {
	s.cursor = 0
	s.matches = s.matches[:0]
	if s.query == "" {
		for i, l := range s.Labels {
			s.matches = append(s.matches, SelectMatch{Label: l, index: i})
		}
		return
	}
	for _, m := range fuzzy.Find(s.query, s.Labels) {
		s.matches = append(s.matches, SelectMatch{Label: m.Str, Positions: m.MatchedIndexes, index: m.Index})
	}
}

// selectKey edits the query or moves the highlight. Enter hands the
// highlighted value to the select's pick; cancelling returns to the popup.
func (d *Dispatcher) selectKey(k fmt.Stringer) Action {
	s := d.sel
	switch k.String() {
	case "esc", "ctrl+g":
		d.sel = nil
		return Action{Kind: ActMode}
	case "enter":
		v, ok := s.Value()
		if !ok {
			return hint(fmt.Errorf("%s: no match for %q", strings.ToLower(s.Prompt), s.query))
		}
		d.sel = nil
		return s.pick(v)
	case "up", "ctrl+p":
		s.Move(-1)
	case "down", "ctrl+n", "tab":
		s.Move(1)
	case "backspace":
		if r := []rune(s.query); len(r) > 0 {
			s.SetQuery(string(r[:len(r)-1]))
		}
	case "ctrl+u":
		s.SetQuery("")
	default:
		r := []rune(k.String())
		if len(r) != 1 {
			return Action{}
		}
		s.SetQuery(s.query + string(r))
	}
	return Action{Kind: ActMode}
}

func (d *Dispatcher) choose(s *Select) Action {
	if len(s.Labels) == 0 && !s.Free {
		return d.fail(fmt.Errorf("%s: %w", strings.ToLower(s.Prompt), ErrNoChoice))
	}
	d.sel = s
	return Action{Kind: ActMode}
}

// branchNames lists local branches and then remote-tracking ones, leaving
// out the checked out branch.
func branchNames(st *snapshot.State, remote bool) []string {
	var local, remotes []string
	for _, b := range st.Branches {
		switch {
		case b.Current:
		case b.Remote:
			remotes = append(remotes, b.Name)
		default:
			local = append(local, b.Name)
		}
	}
	if remote {
		return append(local, remotes...)
	}
	return local
}

func localBranches(branches []gitx.Branch) []string {
	var out []string
	for _, b := range branches {
		if !b.Remote {
			out = append(out, b.Name)
		}
	}
	return out
}
