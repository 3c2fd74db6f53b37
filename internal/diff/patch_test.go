package diff

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, text string) FileDiff {
	t.Helper()
	files := Parse(text)
	require.Len(t, files, 1)
	require.NoError(t, files[0].Err)
	return files[0]
}

func TestLinesPatchStageScenario(t *testing.T) {
	f := parseOne(t, fooDiff)
	p, err := NewPatchBuilder(3).LinesPatch(f, 0, 2, 2, IntentStage)
	require.NoError(t, err)
	assert.Equal(t, `diff --git a/foo.txt b/foo.txt
index 1234567..89abcde 100644
--- a/foo.txt
+++ b/foo.txt
@@ -1,2 +1,3 @@ func main
 foo
+bar
 qux
`, p.Text)
	assert.False(t, p.UnidiffZero)
	assert.Equal(t, "foo.txt", p.Path)
}

func TestLinesPatchUnstageScenario(t *testing.T) {
	f := parseOne(t, fooDiff)
	p, err := NewPatchBuilder(3).LinesPatch(f, 0, 2, 2, IntentUnstage)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Text, "@@ -1,2 +1,3 @@ func main\n+bar\n baz\n qux\n"), p.Text)
	assert.True(t, p.Intent.Reverse())
	assert.True(t, p.Intent.Cached())
}

func TestLinesPatchSelectionErrors(t *testing.T) {
	f := parseOne(t, fooDiff)
	b := NewPatchBuilder(3)

	_, err := b.LinesPatch(f, 0, 4, 4, IntentStage)
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, err = b.LinesPatch(f, 1, 1, 1, IntentStage)
	assert.ErrorIs(t, err, ErrInvalidSelection)

	_, err = b.LinesPatch(f, 0, 0, 2, IntentStage)
	assert.ErrorIs(t, err, ErrInvalidSelection)

	_, err = b.LinesPatch(f, 0, 3, 9, IntentStage)
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestLinesPatchZeroContext(t *testing.T) {
	f := parseOne(t, fooDiff)
	p, err := NewPatchBuilder(0).LinesPatch(f, 0, 1, 1, IntentStage)
	require.NoError(t, err)
	assert.True(t, p.UnidiffZero)
	assert.True(t, strings.HasSuffix(p.Text, "@@ -1 +0,0 @@ func main\n-foo\n"), p.Text)
}

func TestLinesPatchPartialNewFile(t *testing.T) {
	f := parseOne(t, newFileDiff)
	p, err := NewPatchBuilder(3).LinesPatch(f, 0, 1, 1, IntentStage)
	require.NoError(t, err)
	assert.Equal(t, `diff --git a/new.txt b/new.txt
index 0000000..e69de29
--- a/new.txt
+++ b/new.txt
@@ -0,0 +1 @@
+hello
\ No newline at end of file
`, p.Text)
}

// eofDiff adds a line after a last line that had no newline.
const eofDiff = `diff --git a/eof.txt b/eof.txt
index 2e65efe..422c2b7 100644
--- a/eof.txt
+++ b/eof.txt
@@ -1 +1,2 @@
-a
\ No newline at end of file
+a
+b
`

func TestLinesPatchKeepsNewlineBeforeKeptLines(t *testing.T) {
	f := parseOne(t, eofDiff)
	p, err := NewPatchBuilder(3).LinesPatch(f, 0, 4, 4, IntentStage)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Text, "@@ -1 +1,2 @@\n-a\n\\ No newline at end of file\n+a\n+b\n"), p.Text)
	assert.Equal(t, "a\nb\n", apply(t, p.Text, "a"))

	// The marker stays on a converted line that ends the patch.
	p, err = NewPatchBuilder(3).LinesPatch(f, 0, 1, 2, IntentStage)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Text, "@@ -1 +0,0 @@\n-a\n\\ No newline at end of file\n"), p.Text)
}

// multiDiff changes a..j into a b c D E e f X h i j.
const multiDiff = `diff --git a/f.txt b/f.txt
index 1111111..2222222 100644
--- a/f.txt
+++ b/f.txt
@@ -2,8 +2,9 @@
 b
 c
-d
+D
+E
 e
 f
-g
+X
 h
 i
`

var (
	multiOld = "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\n"
	multiNew = "a\nb\nc\nD\nE\ne\nf\nX\nh\ni\nj\n"
)

// expectApplied computes the file after applying only the selected changes
// of h to the side the intent starts from.
func expectApplied(content string, h Hunk, from, to int, intent Intent) string {
	lines := strings.SplitAfter(content, "\n")
	lines = lines[:len(lines)-1]
	start := h.OldStart
	if intent.Reverse() {
		start = h.NewStart
	}
	var out []string
	out = append(out, lines[:start-1]...)
	consumed := 0
	for _, l := range h.Lines {
		in := l.Position >= from && l.Position <= to
		text := l.Text + "\n"
		switch {
		case l.Origin == OriginContext:
			out = append(out, text)
			consumed++
		case l.Origin == OriginAddition && !intent.Reverse():
			if in {
				out = append(out, text)
			}
		case l.Origin == OriginDeletion && !intent.Reverse():
			if !in {
				out = append(out, text)
			}
			consumed++
		case l.Origin == OriginAddition:
			if !in {
				out = append(out, text)
			}
			consumed++
		case l.Origin == OriginDeletion:
			if in {
				out = append(out, text)
			}
		}
	}
	out = append(out, lines[start-1+consumed:]...)
	return strings.Join(out, "")
}

// reversePatch swaps the sides of a patch so it can be applied forward.
func reversePatch(t *testing.T, text string) string {
	t.Helper()
	var b strings.Builder
	body := false
	for _, l := range strings.SplitAfter(text, "\n") {
		switch {
		case strings.HasPrefix(l, "@@"):
			body = true
			h, err := ParseHunkHeader(strings.TrimSuffix(l, "\n"))
			require.NoError(t, err)
			h.OldStart, h.NewStart = h.NewStart, h.OldStart
			h.OldLines, h.NewLines = h.NewLines, h.OldLines
			l = h.Header() + "\n"
		case body && strings.HasPrefix(l, "+"):
			l = "-" + l[1:]
		case body && strings.HasPrefix(l, "-"):
			l = "+" + l[1:]
		}
		b.WriteString(l)
	}
	return b.String()
}

func apply(t *testing.T, patch, content string) string {
	t.Helper()
	files, _, err := gitdiff.Parse(strings.NewReader(patch))
	require.NoError(t, err)
	require.Len(t, files, 1)
	var out bytes.Buffer
	require.NoError(t, gitdiff.Apply(&out, strings.NewReader(content), files[0]), patch)
	return out.String()
}

func TestLinesPatchAppliesForEveryRange(t *testing.T) {
	f := parseOne(t, multiDiff)
	h := f.Hunks[0]
	for _, n := range []int{1, 3} {
		b := NewPatchBuilder(n)
		for from := 1; from <= len(h.Lines); from++ {
			for to := from; to <= len(h.Lines); to++ {
				hasChange := false
				for _, l := range h.Lines[from-1 : to] {
					hasChange = hasChange || l.Origin.IsChange()
				}
				for _, intent := range []Intent{IntentStage, IntentUnstage, IntentDiscard} {
					p, err := b.LinesPatch(f, 0, from, to, intent)
					if !hasChange {
						require.ErrorIs(t, err, ErrEmptySelection)
						continue
					}
					require.NoError(t, err, "lines %d-%d %s", from, to, intent)
					if intent.Reverse() {
						got := apply(t, reversePatch(t, p.Text), multiNew)
						assert.Equal(t, expectApplied(multiNew, h, from, to, intent), got, "lines %d-%d %s n=%d", from, to, intent, n)
					} else {
						got := apply(t, p.Text, multiOld)
						assert.Equal(t, expectApplied(multiOld, h, from, to, intent), got, "lines %d-%d %s n=%d", from, to, intent, n)
					}
				}
			}
		}
	}
}

const twoHunkDiff = `diff --git a/g.txt b/g.txt
index 1111111..2222222 100644
--- a/g.txt
+++ b/g.txt
@@ -1,3 +1,4 @@
 a
+new
 b
 c
@@ -10,3 +11,3 @@
 j
-k
+K
 l
`

func TestHunksPatch(t *testing.T) {
	f := parseOne(t, twoHunkDiff)
	b := NewPatchBuilder(3)

	p, err := b.HunkPatch(f, 1, IntentStage)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Text, "+++ b/g.txt\n@@ -10,3 +10,3 @@\n j\n-k\n+K\n l\n"), p.Text)

	p, err = b.HunkPatch(f, 1, IntentUnstage)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Text, "+++ b/g.txt\n@@ -11,3 +11,3 @@\n j\n-k\n+K\n l\n"), p.Text)

	p, err = b.HunksPatch(f, []int{1, 0, 1}, IntentStage)
	require.NoError(t, err)
	assert.Equal(t, twoHunkDiff, p.Text)

	_, err = b.HunksPatch(f, []int{2}, IntentStage)
	assert.ErrorIs(t, err, ErrInvalidSelection)

	_, err = b.HunksPatch(f, nil, IntentStage)
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestFilePatch(t *testing.T) {
	f := parseOne(t, twoHunkDiff)
	p, err := NewPatchBuilder(3).FilePatch(f, IntentDiscard)
	require.NoError(t, err)
	assert.Equal(t, twoHunkDiff, p.Text)
	assert.False(t, p.Intent.Cached())

	bad := Parse("diff --git a/x b/x\n--- a/x\n+++ b/x\n@@ -1,3 +1,3 @@\n a\n")[0]
	_, err = NewPatchBuilder(3).FilePatch(bad, IntentStage)
	assert.ErrorIs(t, err, ErrMalformedDiff)
}

func TestLinesPatchInRenamedFile(t *testing.T) {
	f := parseOne(t, `diff --git a/old.txt b/new.txt
similarity index 80%
rename from old.txt
rename to new.txt
index 1111111..2222222 100644
--- a/old.txt
+++ b/new.txt
@@ -1,3 +1,3 @@
 a
-b
+B
 c
`)
	assert.Equal(t, ChangeRenamed, f.Kind)
	p, err := NewPatchBuilder(3).LinesPatch(f, 0, 3, 3, IntentUnstage)
	require.NoError(t, err)
	assert.Equal(t, `diff --git a/new.txt b/new.txt
index 1111111..2222222 100644
--- a/new.txt
+++ b/new.txt
@@ -1,2 +1,3 @@
 a
+B
 c
`, p.Text)
}
