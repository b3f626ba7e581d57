package cmd

import (
	"github.com/spf13/cobra"

	"github.com/onnwee/nodelayout/internal/force"
)

func newPresetCommand() *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "preset",
		Short: "Write the default force preset as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, closeOut, err := output(cmd.OutOrStdout(), out)
			if err != nil {
				return err
			}
			if err := force.WritePreset(w, force.DefaultPreset()); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}
	c.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return c
}
