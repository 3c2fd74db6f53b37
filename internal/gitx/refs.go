package gitx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Branch is a local or remote-tracking branch.
type Branch struct {
	Name     string
	OID      string
	Upstream string
	Remote   bool
	Current  bool
}

// Tag is a tag name and the abbreviated object it points at.
type Tag struct {
	Name string
	OID  string
}

// LatestTag is the nearest tag reachable from HEAD.
type LatestTag struct {
	Name  string
	Ahead int
}

// Stash is one entry of the stash list.
type Stash struct {
	Index   int
	Message string
}

// Commit is a log entry.
type Commit struct {
	Hash    string
	Short   string
	Author  string
	When    time.Time
	Subject string
}

func lines(out string) []string {
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// PushRef returns the branch HEAD pushes to, or "" if none is configured.
func (r *Repo) PushRef(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{push}")
	if err != nil {
		if exitCode(err) > 0 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Branches lists local and remote-tracking branches.
func (r *Repo) Branches(ctx context.Context) ([]Branch, error) {
	out, err := r.output(ctx, "for-each-ref",
		"--format=%(refname)%00%(refname:short)%00%(objectname:short)%00%(upstream:short)%00%(HEAD)",
		"refs/heads", "refs/remotes")
	if err != nil {
		return nil, err
	}
	var branches []Branch
	for _, l := range lines(out) {
		f := strings.Split(l, "\x00")
		if len(f) != 5 {
			return nil, fmt.Errorf("for-each-ref: bad line %q", l)
		}
		remote := strings.HasPrefix(f[0], "refs/remotes/")
		if remote && strings.HasSuffix(f[0], "/HEAD") {
			continue
		}
		branches = append(branches, Branch{Name: f[1], OID: f[2], Upstream: f[3], Remote: remote, Current: f[4] == "*"})
	}
	return branches, nil
}

// Tags lists tags, newest first.
func (r *Repo) Tags(ctx context.Context) ([]Tag, error) {
	out, err := r.output(ctx, "for-each-ref", "--sort=-creatordate",
		"--format=%(refname:short)%00%(objectname:short)", "refs/tags")
	if err != nil {
		return nil, err
	}
	var tags []Tag
	for _, l := range lines(out) {
		name, oid, _ := strings.Cut(l, "\x00")
		tags = append(tags, Tag{Name: name, OID: oid})
	}
	return tags, nil
}

// Remotes lists configured remote names.
func (r *Repo) Remotes(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "remote")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// Stashes lists stash entries, most recent first.
func (r *Repo) Stashes(ctx context.Context) ([]Stash, error) {
	out, err := r.output(ctx, "stash", "list", "--format=%gd%x00%s")
	if err != nil {
		return nil, err
	}
	var stashes []Stash
	for _, l := range lines(out) {
		ref, msg, _ := strings.Cut(l, "\x00")
		idx, ok := parseStashRef(ref)
		if !ok {
			return nil, fmt.Errorf("stash list: bad ref %q", ref)
		}
		stashes = append(stashes, Stash{Index: idx, Message: msg})
	}
	return stashes, nil
}

func parseStashRef(ref string) (int, bool) {
	s, ok := strings.CutPrefix(ref, "stash@{")
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, "}")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// RecentCommits returns up to n commits reachable from HEAD.
func (r *Repo) RecentCommits(ctx context.Context, n int) ([]Commit, error) {
	return r.log(ctx, n, "HEAD")
}

// Unpulled returns up to n upstream commits HEAD does not contain. A
// branch without a resolvable upstream has none.
func (r *Repo) Unpulled(ctx context.Context, n int) ([]Commit, error) {
	return r.upstreamLog(ctx, n, "HEAD..@{upstream}")
}

// Unpushed returns up to n commits of HEAD its upstream does not contain.
func (r *Repo) Unpushed(ctx context.Context, n int) ([]Commit, error) {
	return r.upstreamLog(ctx, n, "@{upstream}..HEAD")
}

func (r *Repo) upstreamLog(ctx context.Context, n int, rev string) ([]Commit, error) {
	commits, err := r.log(ctx, n, rev)
	if err != nil && exitCode(err) > 0 {
		return nil, nil
	}
	return commits, err
}

func (r *Repo) log(ctx context.Context, n int, rev string) ([]Commit, error) {
	out, err := r.output(ctx, "log", "-n", strconv.Itoa(n), "--format=%H%x00%h%x00%an%x00%at%x00%s", rev, "--")
	if err != nil {
		return nil, err
	}
	var commits []Commit
	for _, l := range lines(out) {
		f := strings.SplitN(l, "\x00", 5)
		if len(f) != 5 {
			return nil, fmt.Errorf("log: bad line %q", l)
		}
		secs, _ := strconv.ParseInt(f[3], 10, 64)
		commits = append(commits, Commit{Hash: f[0], Short: f[1], Author: f[2], When: time.Unix(secs, 0), Subject: f[4]})
	}
	return commits, nil
}

// Describe returns the nearest tag and how many commits HEAD is past it.
// A repository without tags yields a zero LatestTag.
func (r *Repo) Describe(ctx context.Context) (LatestTag, error) {
	out, err := r.output(ctx, "describe", "--tags", "--long")
	if err != nil {
		if exitCode(err) > 0 {
			return LatestTag{}, nil
		}
		return LatestTag{}, err
	}
	return parseDescribe(strings.TrimSpace(out))
}

func parseDescribe(s string) (LatestTag, error) {
	g := strings.LastIndex(s, "-g")
	if g < 0 {
		return LatestTag{}, fmt.Errorf("describe: bad output %q", s)
	}
	d := strings.LastIndex(s[:g], "-")
	if d < 0 {
		return LatestTag{}, fmt.Errorf("describe: bad output %q", s)
	}
	n, err := strconv.Atoi(s[d+1 : g])
	if err != nil {
		return LatestTag{}, fmt.Errorf("describe: bad output %q", s)
	}
	return LatestTag{Name: s[:d], Ahead: n}, nil
}

// Diff returns unified diff text of the work tree against the index, or
// of the index against HEAD when staged is set.
func (r *Repo) Diff(ctx context.Context, staged bool) (string, error) {
	args := []string{"diff", "--no-color", "--no-ext-diff", "--src-prefix=a/", "--dst-prefix=b/", "--submodule=short"}
	if staged {
		args = append(args, "--cached", "-M")
	} else {
		args = append(args, "--no-renames")
	}
	return r.output(ctx, args...)
}
