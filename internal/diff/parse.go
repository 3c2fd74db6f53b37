package diff

import (
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRE = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// ParseHunkHeader parses an "@@ -a,b +c,d @@ section" line. The returned
// hunk has no lines.
func ParseHunkHeader(s string) (Hunk, error) {
	m := hunkHeaderRE.FindStringSubmatch(s)
	if m == nil {
		return Hunk{}, fmt.Errorf("bad hunk header %q: %w", s, ErrMalformedDiff)
	}
	var h Hunk
	var err error
	if h.OldStart, h.OldLines, err = parseRange(m[1], m[2]); err != nil {
		return Hunk{}, fmt.Errorf("bad hunk header %q: %w", s, err)
	}
	if h.NewStart, h.NewLines, err = parseRange(m[3], m[4]); err != nil {
		return Hunk{}, fmt.Errorf("bad hunk header %q: %w", s, err)
	}
	h.Section = m[5]
	return h, nil
}

func parseRange(start, length string) (int, int, error) {
	s, err := strconv.Atoi(start)
	if err != nil {
		return 0, 0, ErrMalformedDiff
	}
	if length == "" {
		return s, 1, nil
	}
	n, err := strconv.Atoi(length)
	if err != nil {
		return 0, 0, ErrMalformedDiff
	}
	return s, n, nil
}

// Parse splits unified-diff text (as produced by `git diff`) into file
// diffs. Parsing is strict per file: a malformed file is returned with Err
// set and no hunks, and parsing resumes at the next file.
func Parse(text string) []FileDiff {
	p := &parser{lines: splitLines(text)}
	var files []FileDiff
	for p.seekFile() {
		start := p.pos
		f, err := p.parseFile()
		if err != nil {
			f.Err = err
			f.Hunks = nil
			p.skipFile(start)
		}
		files = append(files, f)
	}
	return files
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

const gitHeaderPrefix = "diff --git "

type parser struct {
	lines []string
	pos   int
}

func (p *parser) seekFile() bool {
	for p.pos < len(p.lines) {
		if strings.HasPrefix(p.lines[p.pos], gitHeaderPrefix) {
			return true
		}
		p.pos++
	}
	return false
}

func (p *parser) skipFile(start int) {
	if p.pos <= start {
		p.pos = start + 1
	}
	for p.pos < len(p.lines) && !strings.HasPrefix(p.lines[p.pos], gitHeaderPrefix) {
		p.pos++
	}
}

func (p *parser) malformed(path, reason string) error {
	return &MalformedDiffError{Path: path, Line: p.pos + 1, Reason: reason}
}

func (p *parser) parseFile() (FileDiff, error) {
	first := p.lines[p.pos]
	f := FileDiff{Header: []string{first}}
	oldName, newName, ok := parseGitHeader(strings.TrimPrefix(first, gitHeaderPrefix))
	if !ok {
		return f, p.malformed(first, "unparseable diff --git header")
	}
	f.OldPath, f.Path = oldName, newName
	p.pos++

	var sawOld, sawNew, isNew, isDelete, isRename, isCopy bool
header:
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		switch {
		case strings.HasPrefix(line, gitHeaderPrefix), strings.HasPrefix(line, "@@"):
			break header
		case strings.HasPrefix(line, "--- "):
			sawOld = true
			if name := parseName(line[4:]); name != "" {
				f.OldPath = name
			}
		case strings.HasPrefix(line, "+++ "):
			if !sawOld {
				return f, p.malformed(f.Path, "'+++' line without '---' line")
			}
			sawNew = true
			if name := parseName(line[4:]); name != "" {
				f.Path = name
			}
		case strings.HasPrefix(line, "old mode "):
			f.OldMode = parseMode(line[len("old mode "):])
		case strings.HasPrefix(line, "new mode "):
			f.NewMode = parseMode(line[len("new mode "):])
		case strings.HasPrefix(line, "new file mode "):
			isNew = true
			f.NewMode = parseMode(line[len("new file mode "):])
		case strings.HasPrefix(line, "deleted file mode "):
			isDelete = true
			f.OldMode = parseMode(line[len("deleted file mode "):])
		case strings.HasPrefix(line, "rename from "):
			isRename = true
			f.OldPath = unquote(line[len("rename from "):])
		case strings.HasPrefix(line, "rename to "):
			isRename = true
			f.Path = unquote(line[len("rename to "):])
		case strings.HasPrefix(line, "copy from "):
			isCopy = true
			f.OldPath = unquote(line[len("copy from "):])
		case strings.HasPrefix(line, "copy to "):
			isCopy = true
			f.Path = unquote(line[len("copy to "):])
		case strings.HasPrefix(line, "Binary files "):
			f.Binary = true
		case line == "GIT binary patch":
			f.Binary = true
			for p.pos < len(p.lines) && !strings.HasPrefix(p.lines[p.pos], gitHeaderPrefix) {
				f.Header = append(f.Header, p.lines[p.pos])
				p.pos++
			}
			break header
		case line != "" && strings.ContainsRune(" +-\\", rune(line[0])):
			return f, p.malformed(f.Path, "diff body without hunk header")
		}
		f.Header = append(f.Header, line)
		p.pos++
	}
	if sawOld && !sawNew {
		return f, p.malformed(f.Path, "truncated file header: missing '+++' line")
	}

	switch {
	case isNew:
		f.Kind = ChangeAdded
	case isDelete:
		f.Kind = ChangeDeleted
	case isRename:
		f.Kind = ChangeRenamed
	case isCopy:
		f.Kind = ChangeCopied
	}
	if f.Kind != ChangeRenamed && f.Kind != ChangeCopied {
		if f.Kind == ChangeDeleted && f.OldPath != "" {
			f.Path = f.OldPath
		}
		f.OldPath = ""
	}

	for p.pos < len(p.lines) && strings.HasPrefix(p.lines[p.pos], "@@") {
		if !sawOld {
			return f, p.malformed(f.Path, "hunk without '---'/'+++' header")
		}
		h, err := p.parseHunk(f.Path)
		if err != nil {
			return f, err
		}
		f.Hunks = append(f.Hunks, h)
	}
	for p.pos < len(p.lines) && !strings.HasPrefix(p.lines[p.pos], gitHeaderPrefix) {
		line := p.lines[p.pos]
		if line != "" && strings.ContainsRune(" +-\\", rune(line[0])) {
			return f, p.malformed(f.Path, "hunk body longer than its header")
		}
		p.pos++
	}
	return f, nil
}

func (p *parser) parseHunk(path string) (Hunk, error) {
	h, err := ParseHunkHeader(p.lines[p.pos])
	if err != nil {
		return Hunk{}, p.malformed(path, err.Error())
	}
	p.pos++
	oldLeft, newLeft := h.OldLines, h.NewLines
	for oldLeft > 0 || newLeft > 0 {
		if p.pos >= len(p.lines) {
			return Hunk{}, p.malformed(path, fmt.Sprintf("hunk truncated: %d old and %d new lines missing", oldLeft, newLeft))
		}
		line := p.lines[p.pos]
		origin := OriginContext
		text := ""
		if line != "" {
			text = line[1:]
			switch line[0] {
			case ' ':
			case '-':
				origin = OriginDeletion
			case '+':
				origin = OriginAddition
			case '\\':
				origin = OriginNoNewline
			default:
				return Hunk{}, p.malformed(path, "unexpected line in hunk body")
			}
		}
		switch origin {
		case OriginContext:
			oldLeft--
			newLeft--
		case OriginDeletion:
			oldLeft--
		case OriginAddition:
			newLeft--
		}
		if oldLeft < 0 || newLeft < 0 {
			return Hunk{}, p.malformed(path, "hunk body disagrees with header lengths")
		}
		h.Lines = append(h.Lines, Line{Origin: origin, Text: text, Position: len(h.Lines) + 1})
		p.pos++
	}
	if p.pos < len(p.lines) && strings.HasPrefix(p.lines[p.pos], `\`) {
		h.Lines = append(h.Lines, Line{Origin: OriginNoNewline, Text: p.lines[p.pos][1:], Position: len(h.Lines) + 1})
		p.pos++
	}
	return h, nil
}

// parseGitHeader splits the "a/old b/new" part of a diff --git line.
func parseGitHeader(rest string) (string, string, bool) {
	if strings.HasPrefix(rest, `"`) {
		oldQ, tail, ok := cutQuoted(rest)
		if !ok || !strings.HasPrefix(tail, " ") {
			return "", "", false
		}
		return stripPrefix(oldQ), parseName(strings.TrimPrefix(tail, " ")), true
	}
	// Unquoted names with spaces are ambiguous; both names are equal unless
	// the file was renamed, so try the symmetric split first.
	if n := len(rest); n > 5 && (n-5)%2 == 0 {
		l := (n - 5) / 2
		if strings.HasPrefix(rest, "a/") && rest[2+l:2+l+3] == " b/" && rest[2:2+l] == rest[2+l+3:] {
			return rest[2 : 2+l], rest[2+l+3:], true
		}
	}
	if i := strings.Index(rest, " b/"); i > 0 {
		return stripPrefix(rest[:i]), rest[i+3:], true
	}
	if i := strings.Index(rest, ` "b/`); i > 0 {
		return stripPrefix(rest[:i]), parseName(rest[i+1:]), true
	}
	return "", "", false
}

func cutQuoted(s string) (string, string, bool) {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			name, err := strconv.Unquote(s[:i+1])
			if err != nil {
				return "", "", false
			}
			return name, s[i+1:], true
		}
	}
	return "", "", false
}

// parseName parses the file name of a ---/+++ line. /dev/null yields "".
func parseName(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	s = unquote(s)
	if s == "/dev/null" {
		return ""
	}
	return stripPrefix(s)
}

func unquote(s string) string {
	if strings.HasPrefix(s, `"`) {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

func stripPrefix(s string) string {
	if strings.HasPrefix(s, "a/") || strings.HasPrefix(s, "b/") {
		return s[2:]
	}
	return s
}

func parseMode(s string) fs.FileMode {
	m, err := strconv.ParseUint(strings.TrimSpace(s), 8, 32)
	if err != nil {
		return 0
	}
	mode := fs.FileMode(m & 0o777)
	switch m &^ 0o777 {
	case 0o120000:
		mode |= fs.ModeSymlink
	case 0o160000:
		mode |= fs.ModeDir
	}
	return mode
}
