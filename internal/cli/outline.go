package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/interpretive-systems/gitscope/internal/outline"
)

func newOutlineCmd(f *flags) *cobra.Command {
	var expandAll bool
	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Print the outline of the repository and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer s.Close()

			policy, err := s.cfg.Policy()
			if err != nil {
				return err
			}
			st, err := s.loader().Load(cmd.Context())
			if err != nil {
				return err
			}
			tree := outline.Build(st, nil, policy)
			if expandAll {
				tree.ExpandAll()
			}
			out := cmd.OutOrStdout()
			for _, r := range tree.Rows() {
				if _, err := fmt.Fprintln(out, strings.Repeat("  ", r.Depth)+r.Text); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&expandAll, "expand-all", false, "Expand every section")
	return cmd
}
