// Package theme holds the colors the interface is drawn with.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors for rendering.
type Theme struct {
	AddColor     string
	DelColor     string
	MetaColor    string
	DividerColor string
	AddBgColor   string
	DelBgColor   string
	CursorBg     string
	SelectBg     string
	MatchColor   string
	ErrorColor   string
}

func darkTheme() Theme {
	return Theme{
		AddColor:     "34",
		DelColor:     "196",
		MetaColor:    "63",
		DividerColor: "240",
		AddBgColor:   "235",
		DelBgColor:   "235",
		CursorBg:     "238",
		SelectBg:     "236",
		MatchColor:   "214",
		ErrorColor:   "203",
	}
}

func lightTheme() Theme {
	return Theme{
		AddColor:     "22",
		DelColor:     "9",
		MetaColor:    "27",
		DividerColor: "244",
		AddBgColor:   "255",
		DelBgColor:   "255",
		CursorBg:     "252",
		SelectBg:     "254",
		MatchColor:   "130",
		ErrorColor:   "160",
	}
}

// Get returns the named theme. Unknown names get the dark theme.
func Get(name string) Theme {
	if name == "light" {
		return lightTheme()
	}
	return darkTheme()
}

func (t Theme) AddText(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.AddColor)).Render(s)
}

func (t Theme) DelText(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.DelColor)).Render(s)
}

func (t Theme) MetaText(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.MetaColor)).Render(s)
}

func (t Theme) DividerText(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.DividerColor)).Render(s)
}

func (t Theme) ErrorText(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.ErrorColor)).Render(s)
}

// Heading renders section headers.
func (t Theme) Heading() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.MetaColor)).Bold(true)
}

// Match renders the characters a search matched.
func (t Theme) Match() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.MatchColor)).Bold(true).Underline(true)
}

// AddLine colors an added line, background included.
func (t Theme) AddLine(s string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.AddColor)).
		Background(lipgloss.Color(t.AddBgColor)).
		Render(s)
}

// DelLine colors a removed line, background included.
func (t Theme) DelLine(s string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.DelColor)).
		Background(lipgloss.Color(t.DelBgColor)).
		Render(s)
}

// Cursor marks the row under the cursor.
func (t Theme) Cursor() lipgloss.Style {
	return lipgloss.NewStyle().Background(lipgloss.Color(t.CursorBg)).Bold(true)
}

// Selected marks rows inside a visual selection.
func (t Theme) Selected() lipgloss.Style {
	return lipgloss.NewStyle().Background(lipgloss.Color(t.SelectBg))
}

// Box frames popups.
func (t Theme) Box() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.DividerColor)).
		Padding(0, 1)
}
