// Package gitx runs git for one repository: porcelain queries that feed a
// snapshot, and operations that mutate the index, work tree or refs.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/interpretive-systems/gitscope/internal/op"
)

// ErrNotRepository is returned when a path is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// RepoRoot resolves the git repository root from a given path (or current dir).
func RepoRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	cmd := exec.Command("git", "-C", path, "rev-parse", "--show-toplevel")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", path, ErrNotRepository, strings.TrimSpace(stderr.String()))
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNotRepository)
	}
	return root, nil
}

// Repo runs git commands in one work tree.
type Repo struct {
	Root string
}

// Open resolves the repository containing path.
func Open(path string) (*Repo, error) {
	root, err := RepoRoot(path)
	if err != nil {
		return nil, err
	}
	return &Repo{Root: root}, nil
}

func (r *Repo) command(ctx context.Context, read bool, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.Root}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if read {
		// Queries must not take the index lock a mutation may need.
		cmd.Env = append(cmd.Env, "GIT_OPTIONAL_LOCKS=0")
	}
	return cmd
}

// output runs a read-only query and returns its stdout.
func (r *Repo) output(ctx context.Context, args ...string) (string, error) {
	cmd := r.command(ctx, true, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// exitCode returns git's exit status, or -1 if git did not run.
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// Run executes the operation's commands in order, stopping at the first
// failure. Output of all commands that ran is collected.
func (r *Repo) Run(ctx context.Context, o op.Operation) op.Result {
	res := op.Result{Op: o}
	if err := o.Validate(); err != nil {
		res.Outcome = op.Failed
		res.Cause = err
		return res
	}
	var stdout, stderr bytes.Buffer
	for _, c := range o.Commands() {
		cmd := r.command(ctx, !o.Kind.Mutating(), c.Args...)
		if c.Stdin != "" {
			cmd.Stdin = strings.NewReader(c.Stdin)
		}
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			res.Outcome = op.Failed
			res.ExitCode = exitCode(err)
			res.Cause = fmt.Errorf("git %s: %w", c.Args[0], err)
			if ctx.Err() != nil {
				res.Cause = fmt.Errorf("git %s: %w", c.Args[0], ctx.Err())
			}
			break
		}
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res
}

// Config returns the value of a git config key, or "" if it is unset.
func (r *Repo) Config(ctx context.Context, key string) (string, error) {
	out, err := r.output(ctx, "config", "--get", key)
	if err != nil {
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GitDir returns the absolute path of the repository's git directory.
func (r *Repo) GitDir(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
