package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// flags are the persistent flags shared by every command.
type flags struct {
	repo     string
	config   string
	noConfig bool
	logFile  string
	logLevel string
}

func Execute() error {
	if err := newRootCmd().Execute(); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "gitscope",
		Short: "Outline-style TUI for git",
		Long: "gitscope: browse the status, diffs, stashes and history of a git repository\n" +
			"as one foldable outline and act on whatever is under the cursor.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, f, false)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.repo, "repo", "r", ".", "Path inside the repository")
	pf.StringVar(&f.config, "config", "", "Config file (default: $XDG_CONFIG_HOME/gitscope/config.yaml)")
	pf.BoolVar(&f.noConfig, "no-config", false, "Ignore the config file")
	pf.StringVar(&f.logFile, "log-file", "", "Write logs to this file (default: no logs)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(newWatchCmd(f))
	root.AddCommand(newOutlineCmd(f))
	return root
}
