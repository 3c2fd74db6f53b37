package gitx

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/op"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustRun(t, dir, "git", "-c", "init.defaultBranch=main", "init", "-q")
	mustRun(t, dir, "git", "config", "user.email", "test@example.com")
	mustRun(t, dir, "git", "config", "user.name", "Test User")
	mustRun(t, dir, "git", "config", "commit.gpgsign", "false")
	return dir
}

func TestStatusAndDiff(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()

	// initial commit
	write(t, filepath.Join(dir, "f1.txt"), "one\nline\n")
	write(t, filepath.Join(dir, "del.txt"), "to delete\n")
	write(t, filepath.Join(dir, "old.txt"), "rename me\nplease\n")
	mustRun(t, dir, "git", "add", ".")
	mustRun(t, dir, "git", "commit", "-q", "-m", "init")

	// modify f1 (unstaged), create new (untracked), delete del.txt (unstaged), rename (staged)
	write(t, filepath.Join(dir, "f1.txt"), "one\nline changed\n")
	write(t, filepath.Join(dir, "new.txt"), "brand new\n")
	if err := os.Remove(filepath.Join(dir, "del.txt")); err != nil {
		t.Fatal(err)
	}
	mustRun(t, dir, "git", "mv", "old.txt", "moved.txt")

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	st, err := repo.Status(ctx)
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if st.Branch.Head != "main" || st.Branch.Unborn() {
		t.Fatalf("unexpected branch status %+v", st.Branch)
	}
	m := map[string]StatusEntry{}
	for _, e := range st.Entries {
		m[e.Path] = e
	}
	if e := m["f1.txt"]; !e.Unstaged() || e.Staged() {
		t.Fatalf("expected f1.txt to be unstaged modified, got %+v", e)
	}
	if !m["new.txt"].Untracked {
		t.Fatalf("expected new.txt to be untracked, got %+v", m["new.txt"])
	}
	if e := m["del.txt"]; e.Worktree != 'D' {
		t.Fatalf("expected del.txt to be deleted unstaged, got %+v", e)
	}
	if e := m["moved.txt"]; e.Index != 'R' || e.OrigPath != "old.txt" {
		t.Fatalf("expected moved.txt to be a staged rename, got %+v", e)
	}

	d, err := repo.Diff(ctx, false)
	if err != nil {
		t.Fatalf("Diff error: %v", err)
	}
	files := diff.Parse(d)
	if len(files) != 2 {
		t.Fatalf("expected 2 unstaged file diffs, got %d:\n%s", len(files), d)
	}
	if !strings.Contains(d, "-line\n+line changed\n") {
		t.Fatalf("unexpected diff: %s", d)
	}

	staged, err := repo.Diff(ctx, true)
	if err != nil {
		t.Fatalf("Diff(staged) error: %v", err)
	}
	sf := diff.Parse(staged)
	if len(sf) != 1 || sf[0].Kind != diff.ChangeRenamed || sf[0].OldPath != "old.txt" {
		t.Fatalf("unexpected staged diff: %+v", sf)
	}

	// Stage everything and commit through operations
	res := repo.Run(ctx, op.Operation{Kind: op.StageFiles, Paths: []string{"f1.txt", "new.txt", "del.txt"}})
	if res.Outcome != op.Succeeded {
		t.Fatalf("stage failed: %v", res.Err())
	}
	res = repo.Run(ctx, op.Operation{Kind: op.Commit, Message: "test commit"})
	if res.Outcome != op.Succeeded {
		t.Fatalf("commit failed: %v", res.Err())
	}
	st2, err := repo.Status(ctx)
	if err != nil {
		t.Fatalf("Status(2) error: %v", err)
	}
	if len(st2.Entries) != 0 {
		t.Fatalf("expected no changes after commit, got %+v", st2.Entries)
	}

	commits, err := repo.RecentCommits(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCommits error: %v", err)
	}
	if len(commits) != 2 || commits[0].Subject != "test commit" || len(commits[0].Hash) != 40 {
		t.Fatalf("unexpected commits %+v", commits)
	}
}

func TestStageAndUnstageLines(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	write(t, filepath.Join(dir, "f.txt"), "foo\nqux\n")
	mustRun(t, dir, "git", "add", ".")
	mustRun(t, dir, "git", "commit", "-q", "-m", "init")
	write(t, filepath.Join(dir, "f.txt"), "bar\nbaz\nqux\n")

	repo := &Repo{Root: dir}
	for _, n := range []int{0, 1, 3} {
		d, err := repo.Diff(ctx, false)
		if err != nil {
			t.Fatal(err)
		}
		files := diff.Parse(d)
		if len(files) != 1 || len(files[0].Hunks) != 1 {
			t.Fatalf("unexpected diff:\n%s", d)
		}
		// hunk is -foo +bar +baz  qux; stage only +bar
		p, err := diff.NewPatchBuilder(n).LinesPatch(files[0], 0, 2, 2, diff.IntentStage)
		if err != nil {
			t.Fatalf("context %d: %v", n, err)
		}
		res := repo.Run(ctx, op.Operation{Kind: op.StageLines, Patches: []diff.Patch{p}})
		if res.Outcome != op.Succeeded {
			t.Fatalf("context %d: stage lines failed: %v\n%s", n, res.Err(), p.Text)
		}
		if got := gitOutput(t, dir, "show", ":f.txt"); got != "foo\nbar\nqux\n" {
			t.Fatalf("context %d: index has %q", n, got)
		}

		staged, err := repo.Diff(ctx, true)
		if err != nil {
			t.Fatal(err)
		}
		sf := diff.Parse(staged)
		up, err := diff.NewPatchBuilder(n).HunkPatch(sf[0], 0, diff.IntentUnstage)
		if err != nil {
			t.Fatal(err)
		}
		res = repo.Run(ctx, op.Operation{Kind: op.UnstageHunks, Patches: []diff.Patch{up}})
		if res.Outcome != op.Succeeded {
			t.Fatalf("context %d: unstage failed: %v", n, res.Err())
		}
		if got := gitOutput(t, dir, "show", ":f.txt"); got != "foo\nqux\n" {
			t.Fatalf("context %d: index after unstage has %q", n, got)
		}
	}
}

func TestStageLineAfterMissingNewline(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	write(t, filepath.Join(dir, "f.txt"), "a")
	mustRun(t, dir, "git", "add", ".")
	mustRun(t, dir, "git", "commit", "-q", "-m", "init")
	write(t, filepath.Join(dir, "f.txt"), "a\nb\n")

	repo := &Repo{Root: dir}
	d, err := repo.Diff(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	f := diff.Parse(d)[0]
	// lines: -a, no-newline marker, +a, +b; stage only +b
	p, err := diff.NewPatchBuilder(diff.DefaultContextLines).LinesPatch(f, 0, 4, 4, diff.IntentStage)
	if err != nil {
		t.Fatal(err)
	}
	res := repo.Run(ctx, op.Operation{Kind: op.StageLines, Patches: []diff.Patch{p}})
	if res.Outcome != op.Succeeded {
		t.Fatalf("stage lines failed: %v\n%s", res.Err(), p.Text)
	}
	if got := gitOutput(t, dir, "show", ":f.txt"); got != "a\nb\n" {
		t.Fatalf("index has %q\n%s", got, p.Text)
	}
}

func TestDiscardLines(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	write(t, filepath.Join(dir, "f.txt"), "a\nb\nc\nd\ne\n")
	mustRun(t, dir, "git", "add", ".")
	mustRun(t, dir, "git", "commit", "-q", "-m", "init")
	write(t, filepath.Join(dir, "f.txt"), "a\nB\nc\nD\ne\n")

	repo := &Repo{Root: dir}
	d, err := repo.Diff(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	f := diff.Parse(d)[0]
	// lines: a -b +B c -d +D e; discard the second change only
	p, err := diff.NewPatchBuilder(diff.DefaultContextLines).LinesPatch(f, 0, 5, 6, diff.IntentDiscard)
	if err != nil {
		t.Fatal(err)
	}
	res := repo.Run(ctx, op.Operation{Kind: op.DiscardLines, Patches: []diff.Patch{p}})
	if res.Outcome != op.Succeeded {
		t.Fatalf("discard failed: %v\n%s", res.Err(), p.Text)
	}
	b, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "a\nB\nc\nd\ne\n" {
		t.Fatalf("work tree has %q", b)
	}
}

func TestRunReportsFailure(t *testing.T) {
	dir := initRepo(t)
	repo := &Repo{Root: dir}
	res := repo.Run(context.Background(), op.Operation{Kind: op.Checkout, Target: "no-such-branch"})
	if res.Outcome != op.Failed || res.ExitCode == 0 {
		t.Fatalf("expected failure, got %+v", res)
	}
	var fe *op.FailedError
	if !errors.As(res.Err(), &fe) || !strings.Contains(fe.Error(), "no-such-branch") {
		t.Fatalf("expected diagnostic naming the branch, got %v", res.Err())
	}

	res = repo.Run(context.Background(), op.Operation{Kind: op.Commit})
	if res.Outcome != op.Failed || !errors.Is(res.Cause, op.ErrMissingTarget) {
		t.Fatalf("expected validation failure, got %+v", res)
	}
}

func TestPushToBareRemote(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	write(t, filepath.Join(dir, "f.txt"), "hello\n")
	mustRun(t, dir, "git", "add", ".")
	mustRun(t, dir, "git", "commit", "-q", "-m", "init")

	remote := filepath.Join(t.TempDir(), "remote.git")
	mustRun(t, dir, "git", "init", "-q", "--bare", remote)
	mustRun(t, dir, "git", "remote", "add", "origin", remote)

	repo := &Repo{Root: dir}
	res := repo.Run(ctx, op.Operation{Kind: op.Push, Target: "origin", Ref: "main", Options: op.NewOptions(op.SetUpstream)})
	if res.Outcome != op.Succeeded {
		t.Fatalf("push failed: %v", res.Err())
	}
	st, err := repo.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Branch.Upstream != "origin/main" {
		t.Fatalf("expected upstream origin/main, got %+v", st.Branch)
	}
	push, err := repo.PushRef(ctx)
	if err != nil || push != "origin/main" {
		t.Fatalf("PushRef = %q, %v", push, err)
	}
	branches, err := repo.Branches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var sawLocal, sawRemote bool
	for _, b := range branches {
		sawLocal = sawLocal || (b.Name == "main" && b.Current && b.Upstream == "origin/main")
		sawRemote = sawRemote || (b.Name == "origin/main" && b.Remote)
	}
	if !sawLocal || !sawRemote {
		t.Fatalf("unexpected branches %+v", branches)
	}
	remotes, err := repo.Remotes(ctx)
	if err != nil || len(remotes) != 1 || remotes[0] != "origin" {
		t.Fatalf("Remotes = %v, %v", remotes, err)
	}
}

func TestUpstreamCommitsTagsAndRename(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	repo := &Repo{Root: dir}
	write(t, filepath.Join(dir, "f.txt"), "one\n")
	mustRun(t, dir, "git", "add", ".")
	mustRun(t, dir, "git", "commit", "-q", "-m", "init")

	if c, err := repo.Unpulled(ctx, 10); err != nil || c != nil {
		t.Fatalf("Unpulled without upstream = %+v, %v", c, err)
	}

	remote := filepath.Join(t.TempDir(), "remote.git")
	mustRun(t, dir, "git", "-c", "init.defaultBranch=main", "init", "-q", "--bare", remote)
	mustRun(t, dir, "git", "remote", "add", "origin", remote)
	mustRun(t, dir, "git", "push", "-q", "-u", "origin", "main")

	other := filepath.Join(t.TempDir(), "other")
	mustRun(t, dir, "git", "clone", "-q", remote, other)
	mustRun(t, other, "git", "config", "user.email", "test@example.com")
	mustRun(t, other, "git", "config", "user.name", "Test User")
	mustRun(t, other, "git", "config", "commit.gpgsign", "false")
	write(t, filepath.Join(other, "g.txt"), "remote\n")
	mustRun(t, other, "git", "add", ".")
	mustRun(t, other, "git", "commit", "-q", "-m", "from elsewhere")
	mustRun(t, other, "git", "push", "-q", "origin", "HEAD:main")
	mustRun(t, dir, "git", "fetch", "-q", "origin")

	write(t, filepath.Join(dir, "f.txt"), "two\n")
	mustRun(t, dir, "git", "commit", "-q", "-am", "local work")

	pulled, err := repo.Unpulled(ctx, 10)
	if err != nil || len(pulled) != 1 || pulled[0].Subject != "from elsewhere" {
		t.Fatalf("Unpulled = %+v, %v", pulled, err)
	}
	pushed, err := repo.Unpushed(ctx, 10)
	if err != nil || len(pushed) != 1 || pushed[0].Subject != "local work" {
		t.Fatalf("Unpushed = %+v, %v", pushed, err)
	}

	write(t, filepath.Join(dir, "f.txt"), "three\n")
	mustRun(t, dir, "git", "add", ".")
	if res := repo.Run(ctx, op.Operation{Kind: op.Fixup, Target: pushed[0].Hash}); res.Outcome != op.Succeeded {
		t.Fatalf("fixup failed: %v", res.Err())
	}
	if got := gitOutput(t, dir, "log", "-1", "--format=%s"); got != "fixup! local work\n" {
		t.Fatalf("fixup subject = %q", got)
	}

	res := repo.Run(ctx, op.Operation{Kind: op.ShowLog, Target: op.LogAllBranches})
	if res.Outcome != op.Succeeded || !strings.Contains(res.Stdout, "from elsewhere") || !strings.Contains(res.Stdout, "* ") {
		t.Fatalf("log = %+v", res)
	}

	mustRun(t, dir, "git", "tag", "v1.0")
	mustRun(t, dir, "git", "tag", "v1.1")
	if res := repo.Run(ctx, op.Operation{Kind: op.PushTag, Target: "origin", Ref: "v1.0"}); res.Outcome != op.Succeeded {
		t.Fatalf("push tag failed: %v", res.Err())
	}
	if tags := gitOutput(t, remote, "tag"); tags != "v1.0\n" {
		t.Fatalf("remote tags after one push = %q", tags)
	}
	if res := repo.Run(ctx, op.Operation{Kind: op.PushTags, Target: "origin"}); res.Outcome != op.Succeeded {
		t.Fatalf("push tags failed: %v", res.Err())
	}
	if tags := gitOutput(t, remote, "tag"); tags != "v1.0\nv1.1\n" {
		t.Fatalf("remote tags = %q", tags)
	}

	if res := repo.Run(ctx, op.Operation{Kind: op.RenameBranch, Target: "main", Ref: "trunk"}); res.Outcome != op.Succeeded {
		t.Fatalf("rename failed: %v", res.Err())
	}
	st, err := repo.Status(ctx)
	if err != nil || st.Branch.Head != "trunk" {
		t.Fatalf("Status after rename = %+v, %v", st.Branch, err)
	}
}

func TestStashesTagsAndDescribe(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	repo := &Repo{Root: dir}

	tag, err := repo.Describe(ctx)
	if err != nil || tag != (LatestTag{}) {
		t.Fatalf("Describe on empty repo = %+v, %v", tag, err)
	}

	write(t, filepath.Join(dir, "f.txt"), "one\n")
	mustRun(t, dir, "git", "add", ".")
	mustRun(t, dir, "git", "commit", "-q", "-m", "init")
	mustRun(t, dir, "git", "tag", "v1.0")
	write(t, filepath.Join(dir, "f.txt"), "two\n")
	mustRun(t, dir, "git", "commit", "-q", "-am", "second")

	tag, err = repo.Describe(ctx)
	if err != nil || tag != (LatestTag{Name: "v1.0", Ahead: 1}) {
		t.Fatalf("Describe = %+v, %v", tag, err)
	}
	tags, err := repo.Tags(ctx)
	if err != nil || len(tags) != 1 || tags[0].Name != "v1.0" {
		t.Fatalf("Tags = %+v, %v", tags, err)
	}

	write(t, filepath.Join(dir, "f.txt"), "three\n")
	if res := repo.Run(ctx, op.Operation{Kind: op.StashPush, Message: "wip"}); res.Outcome != op.Succeeded {
		t.Fatalf("stash failed: %v", res.Err())
	}
	stashes, err := repo.Stashes(ctx)
	if err != nil || len(stashes) != 1 || stashes[0].Index != 0 || !strings.Contains(stashes[0].Message, "wip") {
		t.Fatalf("Stashes = %+v, %v", stashes, err)
	}
	res := repo.Run(ctx, op.Operation{Kind: op.ShowStash, Stashes: []int{0}})
	if res.Outcome != op.Succeeded || !strings.Contains(res.Stdout, "+three") {
		t.Fatalf("show stash = %+v", res)
	}
	if res := repo.Run(ctx, op.Operation{Kind: op.StashDrop, Stashes: []int{0}}); res.Outcome != op.Succeeded {
		t.Fatalf("drop failed: %v", res.Err())
	}
}

func TestParseStatus(t *testing.T) {
	out := strings.Join([]string{
		"# branch.oid (initial)",
		"# branch.head main",
		"# branch.upstream origin/main",
		"# branch.ab +2 -1",
		"1 .M N... 100644 100644 100644 abc abc a file.txt",
		"2 R. N... 100644 100644 100644 abc abc R100 new.txt",
		"old.txt",
		"u UU N... 100644 100644 100644 100644 a b c conflict.txt",
		"? untracked dir/x.txt",
		"",
	}, "\x00")
	st, err := parseStatus(out)
	if err != nil {
		t.Fatal(err)
	}
	want := BranchStatus{Head: "main", Upstream: "origin/main", Ahead: 2, Behind: 1}
	if st.Branch != want || !st.Branch.Unborn() {
		t.Fatalf("branch = %+v", st.Branch)
	}
	if len(st.Entries) != 4 {
		t.Fatalf("entries = %+v", st.Entries)
	}
	if e := st.Entries[0]; e.Path != "a file.txt" || !e.Unstaged() || e.Staged() {
		t.Fatalf("entry 0 = %+v", e)
	}
	if e := st.Entries[1]; e.Path != "new.txt" || e.OrigPath != "old.txt" || !e.Staged() {
		t.Fatalf("entry 1 = %+v", e)
	}
	if e := st.Entries[2]; !e.Unmerged || !e.Unstaged() || e.Staged() {
		t.Fatalf("entry 2 = %+v", e)
	}
	if e := st.Entries[3]; !e.Untracked || e.Path != "untracked dir/x.txt" {
		t.Fatalf("entry 3 = %+v", e)
	}

	if _, err := parseStatus("1 bad"); err == nil {
		t.Fatal("expected error for truncated entry")
	}
}

func TestRepoRootOutsideRepository(t *testing.T) {
	_, err := RepoRoot(t.TempDir())
	if !errors.Is(err, ErrNotRepository) {
		t.Fatalf("expected ErrNotRepository, got %v", err)
	}
}

func TestConfigAndGitDir(t *testing.T) {
	dir := initRepo(t)
	repo := &Repo{Root: dir}
	ctx := context.Background()

	v, err := repo.Config(ctx, "gitscope.contextLines")
	if err != nil || v != "" {
		t.Fatalf("unset key: got %q, %v", v, err)
	}
	mustRun(t, dir, "git", "config", "gitscope.contextLines", "1")
	if v, err = repo.Config(ctx, "gitscope.contextLines"); err != nil || v != "1" {
		t.Fatalf("got %q, %v", v, err)
	}

	gitDir, err := repo.GitDir(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(gitDir) != ".git" || !filepath.IsAbs(gitDir) {
		t.Fatalf("unexpected git dir %q", gitDir)
	}
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git %v failed: %v", args, err)
	}
	return string(out)
}

func mustRun(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("command %s %v failed: %v\n%s", name, args, err, out)
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
