package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// StatusBar manages the bottom status bar.
type StatusBar struct {
	lastRefresh time.Time
	keyBuffer   string
	mode        string
	pending     int
	help        string
}

// NewStatusBar creates a new status bar. help is shown when nothing else
// is.
func NewStatusBar(help string) *StatusBar {
	return &StatusBar{help: help}
}

// SetLastRefresh updates the refresh timestamp.
func (s *StatusBar) SetLastRefresh(t time.Time) {
	s.lastRefresh = t
}

// SetKeyBuffer updates the typed count or prefix.
func (s *StatusBar) SetKeyBuffer(buf string) {
	s.keyBuffer = buf
}

// SetMode shows the active mode. Normal mode is not shown.
func (s *StatusBar) SetMode(mode string) {
	if mode == "normal" {
		mode = ""
	}
	s.mode = mode
}

// SetPending shows the number of operations not finished yet.
func (s *StatusBar) SetPending(n int) {
	s.pending = n
}

// Render renders the status bar.
func (s *StatusBar) Render(width int) string {
	var parts []string
	if s.mode != "" {
		parts = append(parts, strings.ToUpper(s.mode))
	}
	if s.keyBuffer != "" {
		parts = append(parts, s.keyBuffer)
	}
	if s.pending > 0 {
		parts = append(parts, fmt.Sprintf("running: %d", s.pending))
	}
	leftText := s.help
	if len(parts) > 0 {
		leftText = strings.Join(parts, "  |  ")
	}

	leftStyled := lipgloss.NewStyle().Faint(true).Render(leftText)
	refreshed := "loading"
	if !s.lastRefresh.IsZero() {
		refreshed = "refreshed: " + s.lastRefresh.Format("15:04:05")
	}
	right := lipgloss.NewStyle().Faint(true).Render(refreshed)

	// The right part stays visible.
	rightW := lipgloss.Width(right)
	if rightW >= width {
		return ansi.Truncate(right, width, "…")
	}

	avail := width - rightW - 1
	leftRendered := leftStyled
	if lipgloss.Width(leftRendered) > avail {
		leftRendered = ansi.Truncate(leftRendered, avail, "…")
	} else if lipgloss.Width(leftRendered) < avail {
		leftRendered = leftRendered + strings.Repeat(" ", avail-lipgloss.Width(leftRendered))
	}

	return leftRendered + " " + right
}
