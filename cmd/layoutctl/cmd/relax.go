package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRelaxCommand(opts *options) *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "relax <snapshot.json>",
		Short: "Run the force layout and a settle pass over a snapshot",
		Long: `Restore a snapshot, run the force simulation to completion when the
mode allows it, then resolve the remaining overlaps. Stored sizes are
taken as rendered sizes.

Example:
  layoutctl relax board.json --mode manual -o board.relaxed.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.loadEngine(cmd, args[0])
			if err != nil {
				return err
			}
			ran, err := e.RunLayout()
			if err != nil {
				return err
			}
			moved, err := e.Settle()
			if err != nil {
				return err
			}

			w, closeOut, err := output(cmd.OutOrStdout(), out)
			if err != nil {
				return err
			}
			if err := writeJSON(w, e.Snapshot()); err != nil {
				_ = closeOut()
				return err
			}
			if err := closeOut(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "simulation: %t, settled: %d moved, overlaps left: %d\n",
				ran, len(moved), len(e.Overlaps()))
			return nil
		},
	}
	c.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return c
}
