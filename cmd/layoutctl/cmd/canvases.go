package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onnwee/nodelayout/internal/config"
	"github.com/onnwee/nodelayout/internal/integrity"
	"github.com/onnwee/nodelayout/internal/server"
	"github.com/onnwee/nodelayout/internal/store"
)

func newCanvasesCommand(opts *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "canvases",
		Short: "Inspect the snapshot store configured for layoutd",
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored canvases",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(st store.Store) error {
					ids, err := st.List(cmd.Context())
					if err != nil {
						return err
					}
					for _, id := range ids {
						fmt.Fprintln(cmd.OutOrStdout(), id)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "export <canvas>",
			Short: "Print the stored snapshot of a canvas",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(st store.Store) error {
					rec, err := st.Load(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), rec.Snapshot)
				})
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Check every stored canvas for bad snapshots and overlaps",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				lc, err := opts.layoutConfig()
				if err != nil {
					return err
				}
				return withStore(cmd.Context(), func(st store.Store) error {
					results, err := integrity.NewService(st, lc).CheckAll(cmd.Context())
					if err != nil {
						return err
					}
					failed := 0
					for _, r := range results {
						status := "ok"
						if r.HasIssues {
							status = "FAIL"
							failed++
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", r.Canvas, r.CheckName, status, r.Details)
					}
					if failed > 0 {
						return fmt.Errorf("%d checks failed", failed)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "repair <canvas>",
			Short: "Settle a stored canvas and save it without overlaps",
			Long: `Settle a stored canvas and save it without overlaps.

Stop layoutd first: an open session overwrites the repair on its next save.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				lc, err := opts.layoutConfig()
				if err != nil {
					return err
				}
				return withStore(cmd.Context(), func(st store.Store) error {
					moved, err := integrity.NewService(st, lc).Repair(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes moved\n", args[0], moved)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <canvas>",
			Short: "Remove a stored canvas",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(st store.Store) error {
					return st.Delete(cmd.Context(), args[0])
				})
			},
		},
	)
	return c
}

func withStore(ctx context.Context, fn func(store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := server.InitStore(ctx, config.Load())
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
