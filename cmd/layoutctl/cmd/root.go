// Package cmd implements layoutctl, the offline companion of layoutd. It
// relaxes and checks snapshot files and inspects the configured store.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/onnwee/nodelayout/internal/config"
	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/hierarchy"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/logger"
)

type options struct {
	preset   string
	mode     string
	logLevel string
}

// NewRootCommand builds the layoutctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "layoutctl",
		Short: "Offline tools for node layout snapshots",
		Long: `layoutctl works on canvas snapshots outside the server.

Layout settings come from the same environment variables as layoutd;
--preset and --mode override them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitWithWriter(cmd.ErrOrStderr(), opts.logLevel, false)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.preset, "preset", "", "TOML force preset to apply")
	root.PersistentFlags().StringVar(&opts.mode, "mode", "", "force mode: off, manual or auto")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newRelaxCommand(opts),
		newCheckCommand(opts),
		newPresetCommand(),
		newCanvasesCommand(opts),
		newRemoteCommand(),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// layoutConfig resolves the engine configuration from the environment and
// the global flags.
func (o *options) layoutConfig() (layout.Config, error) {
	lc, err := config.Load().LayoutConfig()
	if err != nil {
		return layout.Config{}, err
	}
	if o.preset != "" {
		p, err := force.LoadPreset(o.preset)
		if err != nil {
			return layout.Config{}, err
		}
		lc.Mode = p.Mode
		lc.Force = p.Params
	}
	if o.mode != "" {
		m, err := force.ParseMode(o.mode)
		if err != nil {
			return layout.Config{}, err
		}
		lc.Mode = m
	}
	return lc, nil
}

// loadEngine restores the snapshot at path ("-" for stdin) into a fresh
// engine whose stored sizes count as measured.
func (o *options) loadEngine(cmd *cobra.Command, path string) (*layout.Engine, error) {
	lc, err := o.layoutConfig()
	if err != nil {
		return nil, err
	}
	snap, err := readSnapshot(cmd.InOrStdin(), path)
	if err != nil {
		return nil, err
	}
	e := layout.New(lc, layout.WithLogger(logger.WithComponent("layoutctl")))
	if err := e.Restore(snap); err != nil {
		return nil, err
	}
	if err := e.AssumeMeasured(); err != nil {
		return nil, err
	}
	return e, nil
}

func readSnapshot(stdin io.Reader, path string) (hierarchy.Snapshot, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return hierarchy.Snapshot{}, err
		}
		defer f.Close()
		r = f
	}
	var snap hierarchy.Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return hierarchy.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// output opens path for writing, or returns w for "" and "-".
func output(w io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return w, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
