package components

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"
)

// Highlighter colors source lines by the language of their file.
type Highlighter struct {
	lexers map[string]chroma.Lexer
}

// NewHighlighter creates a highlighter with an empty lexer cache.
func NewHighlighter() *Highlighter {
	return &Highlighter{lexers: make(map[string]chroma.Lexer)}
}

func (h *Highlighter) lexer(path string) chroma.Lexer {
	name := filepath.Base(path)
	if l, ok := h.lexers[name]; ok {
		return l
	}
	l := lexers.Match(name)
	if l != nil {
		l = chroma.Coalesce(l)
	}
	h.lexers[name] = l
	return l
}

// Line renders one line of path. Lines of unknown languages, and lines the
// lexer rejects, are returned in base.
func (h *Highlighter) Line(path, text string, base lipgloss.Style) string {
	if text == "" {
		return text
	}
	l := h.lexer(path)
	if l == nil {
		return base.Render(text)
	}
	it, err := l.Tokenise(nil, text)
	if err != nil {
		return base.Render(text)
	}
	var b strings.Builder
	for tok := it(); tok != chroma.EOF; tok = it() {
		v := strings.TrimSuffix(tok.Value, "\n")
		if v == "" {
			continue
		}
		b.WriteString(tokenStyle(tok.Type, base).Render(v))
	}
	return b.String()
}

// tokenStyle picks a color for a token type. Colors follow One Dark.
func tokenStyle(tt chroma.TokenType, base lipgloss.Style) lipgloss.Style {
	fg := func(c string) lipgloss.Style { return base.Foreground(lipgloss.Color(c)) }
	switch {
	case tt.InCategory(chroma.Keyword):
		return fg("#c678dd").Bold(true)
	case tt.InCategory(chroma.Comment):
		return fg("#5c6370")
	case tt.InSubCategory(chroma.LiteralString):
		return fg("#98c379")
	case tt.InSubCategory(chroma.LiteralNumber):
		return fg("#d19a66")
	case tt.InCategory(chroma.Operator):
		return fg("#56b6c2")
	case tt == chroma.NameBuiltin || tt == chroma.NameBuiltinPseudo:
		return fg("#e5c07b")
	case tt == chroma.NameFunction || tt == chroma.NameFunctionMagic:
		return fg("#61afef")
	default:
		return base
	}
}
