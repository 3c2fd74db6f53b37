package dispatch

import (
	"errors"
	"fmt"
)

// ErrModeConflict is returned when entering a mode while another
// incompatible mode is active.
var ErrModeConflict = errors.New("mode conflict")

// Mode is an input mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeVisual
	ModeSearch
	ModePopup
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeVisual:
		return "visual"
	case ModeSearch:
		return "search"
	case ModePopup:
		return "popup"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ModeStack holds the active modes above Normal. At most one mode is
// active, except that a popup may open on top of visual selection.
type ModeStack struct {
	modes []Mode
}

// Top returns the innermost active mode.
func (s *ModeStack) Top() Mode {
	if len(s.modes) == 0 {
		return ModeNormal
	}
	return s.modes[len(s.modes)-1]
}

// Has reports whether m is active anywhere on the stack.
func (s *ModeStack) Has(m Mode) bool {
	if m == ModeNormal {
		return true
	}
	for _, x := range s.modes {
		if x == m {
			return true
		}
	}
	return false
}

// Push enters m.
func (s *ModeStack) Push(m Mode) error {
	top := s.Top()
	switch {
	case m == ModeNormal:
		return fmt.Errorf("enter %s: %w", m, ErrModeConflict)
	case top == ModeNormal:
	case top == ModeVisual && m == ModePopup:
	default:
		return fmt.Errorf("enter %s while in %s: %w", m, top, ErrModeConflict)
	}
	s.modes = append(s.modes, m)
	return nil
}

// Pop leaves the innermost mode and returns it. Normal is never popped.
func (s *ModeStack) Pop() Mode {
	if len(s.modes) == 0 {
		return ModeNormal
	}
	m := s.modes[len(s.modes)-1]
	s.modes = s.modes[:len(s.modes)-1]
	return m
}

// Reset returns to Normal.
func (s *ModeStack) Reset() { s.modes = s.modes[:0] }

// Depth is the number of active modes above Normal.
func (s *ModeStack) Depth() int { return len(s.modes) }
