package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/interpretive-systems/gitscope/internal/config"
	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/dispatch"
	"github.com/interpretive-systems/gitscope/internal/executor"
	"github.com/interpretive-systems/gitscope/internal/gitx"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
	"github.com/interpretive-systems/gitscope/internal/tui"
	"github.com/interpretive-systems/gitscope/internal/tui/theme"
	"github.com/interpretive-systems/gitscope/internal/watch"
)

// session is an opened repository with its configuration and logger.
type session struct {
	root    string
	repo    *gitx.Repo
	cfg     config.Config
	log     *slog.Logger
	logFile io.Closer
}

func openSession(ctx context.Context, f *flags) (*session, error) {
	root, err := gitx.RepoRoot(f.repo)
	if err != nil {
		return nil, fmt.Errorf("not a git repo: %w", err)
	}
	repo, err := gitx.Open(root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.ResolvePath(os.Getenv("XDG_CONFIG_HOME"), f.config, f.noConfig))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyGit(ctx, repo); err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	s := &session{root: root, repo: repo, cfg: cfg}
	// The terminal belongs to the UI, so logs go to a file or nowhere.
	var out io.Writer = io.Discard
	if f.logFile != "" {
		lf, err := tea.LogToFile(f.logFile, "gitscope")
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, s.logFile = lf, lf
	}
	s.log = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return s, nil
}

func (s *session) Close() error {
	if s.logFile == nil {
		return nil
	}
	return s.logFile.Close()
}

func (s *session) loader() *snapshot.Loader {
	return snapshot.NewLoader(s.repo, s.cfg.RecentCommits, s.log)
}

// runUI opens the repository and runs the interactive loop until it quits.
func runUI(cmd *cobra.Command, f *flags, forceWatch bool) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, f)
	if err != nil {
		return err
	}
	defer s.Close()

	policy, err := s.cfg.Policy()
	if err != nil {
		return err
	}
	defaults, err := s.cfg.OptionDefaults()
	if err != nil {
		return err
	}

	exec := executor.New(s.repo, s.cfg.ReadWorkers, s.log)
	defer exec.Close()

	var changes <-chan struct{}
	if s.cfg.Watch || forceWatch {
		gitDir, err := s.repo.GitDir(ctx)
		if err != nil {
			return err
		}
		w, err := watch.New(watch.Options{Root: s.root, GitDir: gitDir, Debounce: s.cfg.WatchDebounce, Log: s.log})
		if err != nil {
			return err
		}
		defer w.Close()
		changes = w.Changes()
	}

	s.log.Info("starting", "root", s.root, "watch", changes != nil)
	return tui.Run(tui.Options{
		Title:      s.root,
		Loader:     s.loader(),
		Executor:   exec,
		Dispatcher: dispatch.New(dispatch.DefaultKeyMap(), diff.NewPatchBuilder(s.cfg.ContextLines), defaults),
		Policy:     policy,
		Theme:      theme.Get(s.cfg.Theme),
		Highlight:  s.cfg.Highlight,
		Changes:    changes,
		Log:        s.log,
	})
}
