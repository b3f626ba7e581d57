package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <snapshot.json>",
		Short: "Validate a snapshot and list overlapping nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.loadEngine(cmd, args[0])
			if err != nil {
				return err
			}
			if err := e.Validate(); err != nil {
				return fmt.Errorf("invalid snapshot: %w", err)
			}
			overlaps := e.Overlaps()
			for _, p := range overlaps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.A, p.B)
			}
			if len(overlaps) > 0 {
				return fmt.Errorf("%d overlapping pairs", len(overlaps))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d nodes\n", e.Len())
			return nil
		},
	}
}
