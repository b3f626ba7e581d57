package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/nodelayout/internal/api/handlers"
	"github.com/onnwee/nodelayout/internal/apierr"
	"github.com/onnwee/nodelayout/internal/httpx"
)

// remoteClient talks to a running layoutd.
type remoteClient struct {
	base   string
	client *http.Client
	retry  httpx.Options
}

func (c *remoteClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	resp, err := httpx.Do(ctx, c.client, func(ctx context.Context) (*http.Request, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}, c.retry)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var env apierr.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error != nil {
			return env.Error
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func canvasPath(canvas, suffix string) string {
	return "/api/canvases/" + url.PathEscape(canvas) + suffix
}

func newRemoteCommand() *cobra.Command {
	c := &remoteClient{}
	var (
		server  string
		timeout time.Duration
	)
	defaultServer := os.Getenv("LAYOUTD_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	remote := &cobra.Command{
		Use:   "remote",
		Short: "Drive canvases on a running layoutd",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			c.base = strings.TrimRight(server, "/")
			c.client = &http.Client{Timeout: timeout}
			return nil
		},
	}
	remote.PersistentFlags().StringVar(&server, "server", defaultServer, "layoutd base URL")
	remote.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "per-request timeout")
	remote.PersistentFlags().IntVar(&c.retry.MaxAttempts, "retries", 3, "attempts for overloaded or failing requests")

	var measured bool
	push := &cobra.Command{
		Use:   "push <canvas> <snapshot.json>",
		Short: "Replace a canvas with a snapshot file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			body, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			path := canvasPath(args[0], "")
			if measured {
				path += "?measured=true"
			}
			var resp handlers.CanvasResponse
			if err := c.do(cmd.Context(), http.MethodPut, path, body, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: version %d, %d nodes\n", resp.Canvas, resp.Snapshot.Version, len(resp.Snapshot.Nodes))
			return nil
		},
	}
	push.Flags().BoolVar(&measured, "measured", false, "treat stored sizes as rendered sizes")

	remote.AddCommand(
		&cobra.Command{
			Use:   "get <canvas>",
			Short: "Print the current snapshot of a canvas",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var resp handlers.CanvasResponse
				if err := c.do(cmd.Context(), http.MethodGet, canvasPath(args[0], ""), nil, &resp); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp.Snapshot)
			},
		},
		push,
		&cobra.Command{
			Use:   "relax <canvas>",
			Short: "Run the force layout of a canvas to completion",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var resp handlers.RunResponse
				if err := c.do(cmd.Context(), http.MethodPost, canvasPath(args[0], "/layout/run?wait=true"), nil, &resp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "started: %t, mode: %s\n", resp.Started, resp.Layout.Mode)
				return nil
			},
		},
		&cobra.Command{
			Use:   "overlaps <canvas>",
			Short: "List overlapping nodes of a canvas",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var resp struct {
					Overlaps []handlers.Overlap `json:"overlaps"`
				}
				if err := c.do(cmd.Context(), http.MethodGet, canvasPath(args[0], "/overlaps"), nil, &resp); err != nil {
					return err
				}
				for _, o := range resp.Overlaps {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", o.A, o.B)
				}
				return nil
			},
		},
	)
	return remote
}
