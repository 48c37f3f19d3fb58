package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danmuck/correlatr/internal/client"
	"github.com/danmuck/correlatr/internal/config"
	"github.com/danmuck/correlatr/internal/protocol"
	"github.com/spf13/cobra"
)

var errServer = errors.New("server reported an error")

type rootOptions struct {
	configPath string
	addr       string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "correlatrctl",
		Short:         "Talk to a correlatr server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	def := config.DefaultClientConfig()
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "client config TOML")
	root.PersistentFlags().StringVar(&opts.addr, "addr", def.Addr, "server address")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "ping",
			Short: "Check that the server answers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.send(cmd, protocol.Ping{})
			},
		},
		&cobra.Command{
			Use:   "columns",
			Short: "List columns",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.send(cmd, protocol.ColumnsRequest{})
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a column",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.send(cmd, protocol.ChangeColumn{NewColumnName: args[0]})
			},
		},
		&cobra.Command{
			Use:   "rm <name>",
			Short: "Remove a column and its values",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.send(cmd, protocol.ChangeColumn{OldColumnName: args[0]})
			},
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename a column",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.send(cmd, protocol.ChangeColumn{OldColumnName: args[0], NewColumnName: args[1]})
			},
		},
		newSetCmd(opts),
		newGetCmd(opts),
		newGraphCmd(opts),
	)
	return root
}

func newSetCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "set name=value [name=value...]",
		Short: "Write values for one day; value \"null\" clears",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := parseDate(date, time.Now())
			if err != nil {
				return err
			}
			points, err := parsePoints(args)
			if err != nil {
				return err
			}
			return opts.send(cmd, protocol.UpdateData{DateMillis: ms, NewData: points})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD or unix milliseconds (default today)")
	return cmd
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read every column for one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ms, err := parseDate(date, time.Now())
			if err != nil {
				return err
			}
			return opts.send(cmd, protocol.DataRequest{DateMillis: ms})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD or unix milliseconds (default today)")
	return cmd
}

func newGraphCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "graph <horizontal> <vertical>",
		Short: "Render a scatter plot of two columns",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.do(cmd, protocol.GraphRequest{Horizontal: args[0], Vertical: args[1]})
			if err != nil {
				return err
			}
			img, ok := resp.(protocol.GraphImage)
			if !ok {
				return printResponse(cmd.OutOrStdout(), resp)
			}
			if err := os.WriteFile(output, img.Image, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(img.Image), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "graph.png", "image output path")
	return cmd
}

func (o *rootOptions) client(cmd *cobra.Command) (*client.Client, error) {
	addr, timeout := o.addr, o.timeout
	if o.configPath != "" {
		cfg, err := config.LoadClientConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		if !cmd.Flags().Changed("addr") {
			addr = cfg.Addr
		}
		if !cmd.Flags().Changed("timeout") && cfg.Timeout != "" {
			d, err := time.ParseDuration(cfg.Timeout)
			if err != nil {
				return nil, err
			}
			timeout = d
		}
	}
	return client.New(addr, timeout), nil
}

func (o *rootOptions) do(cmd *cobra.Command, req protocol.Request) (protocol.Response, error) {
	c, err := o.client(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return c.Do(ctx, req)
}

func (o *rootOptions) send(cmd *cobra.Command, req protocol.Request) error {
	resp, err := o.do(cmd, req)
	if err != nil {
		return err
	}
	return printResponse(cmd.OutOrStdout(), resp)
}

// printResponse writes resp for a terminal. An error status is also returned
// as an error so the exit code reflects it.
func printResponse(w io.Writer, resp protocol.Response) error {
	switch r := resp.(type) {
	case protocol.StatusMessage:
		fmt.Fprintln(w, r.Text)
		if r.Error {
			return errServer
		}
	case protocol.ColumnNames:
		for _, name := range r.Names {
			fmt.Fprintln(w, name)
		}
	case protocol.DataPoints:
		for _, p := range r.Points {
			if p.IsNull {
				fmt.Fprintf(w, "%s\tnull\n", p.ColumnName)
				continue
			}
			fmt.Fprintf(w, "%s\t%g\n", p.ColumnName, p.Value)
		}
	case protocol.GraphImage:
		fmt.Fprintf(w, "graph image (%d bytes)\n", len(r.Image))
	default:
		return fmt.Errorf("unexpected response %T", resp)
	}
	return nil
}
