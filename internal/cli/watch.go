package cli

import (
	"github.com/spf13/cobra"
)

func newWatchCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the TUI and refresh whenever files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, f, true)
		},
	}
	return cmd
}
