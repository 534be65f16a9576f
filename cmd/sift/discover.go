package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deixis/sift/internal/discovery"
	"github.com/deixis/sift/internal/grammar"
	"github.com/deixis/sift/internal/report"
)

func newDiscoverCmd(g *globals) *cobra.Command {
	var (
		opts    discovery.Options
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run the configured tools and queue work items",
		Long: `Run every configured external tool (or just --tool) and queue one work
item per tool that reported issues. With interpretation, the configured
interpreter reads each tool's output and proposes the work items instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Timeout = timeout
			ctx := cmd.Context()

			// The stdout queue kind must not interleave with the JSON report.
			queueOut := cmd.OutOrStdout()
			if asJSON {
				queueOut = cmd.ErrOrStderr()
			}
			e, _, closeEngine, err := g.newEngine(ctx, queueOut)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeEngine(); err != nil {
					g.logger.Warn("failed to release discovery resources", "error", err)
				}
			}()

			run, err := e.Discover(ctx, opts)
			if run == nil {
				return err
			}
			if asJSON {
				if werr := writeJSON(cmd.OutOrStdout(), run); werr != nil {
					return werr
				}
				return err
			}
			report.WriteText(cmd.OutOrStdout(), run)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Tool, "tool", "", "run only this tool")
	f.BoolVar(&opts.DryRun, "dry-run", false, "build work items without queueing them")
	f.DurationVar(&timeout, "timeout", 0, "per-tool timeout, overriding the configured one (e.g. 2m)")
	f.BoolVar(&opts.Interpret, "interpret", false, "hand tool output to the configured interpreter")
	f.BoolVar(&asJSON, "json", false, "print the run as JSON")
	return cmd
}

func newParseCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse sift add commands from free text",
		Long: `Read free text from file (stdin by default), extract every line of the form
sift add "Title" [--type t] [--priority n] [--description d] [--status s] [--urgent]
and print the accepted and malformed commands as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			p := &grammar.Parser{DefaultType: discovery.InterpretedType, Logger: g.logger}
			accepted, rejected := p.Scan(string(text))
			return writeJSON(cmd.OutOrStdout(), struct {
				Accepted []grammar.Command `json:"accepted"`
				Rejected []grammar.Command `json:"rejected"`
			}{
				Accepted: append([]grammar.Command{}, accepted...),
				Rejected: append([]grammar.Command{}, rejected...),
			})
		},
	}
}

func newToolsCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Validate the tool configuration and show where each tool resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			tools, err := cfg.Tools()
			if err != nil {
				return err
			}
			// No interpreter or queue: nothing here runs.
			e := &discovery.Engine{
				Tools:    tools,
				Disabled: !cfg.Enabled(),
				WorkDir:  cfg.Root(),
				Logger:   g.logger,
			}
			statuses := e.Statuses()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), statuses)
			}

			w := cmd.OutOrStdout()
			if !cfg.Enabled() {
				fmt.Fprintln(w, "external tool discovery is disabled")
				return nil
			}
			if len(statuses) == 0 {
				fmt.Fprintln(w, "no external tools configured")
				return nil
			}
			width := 0
			for _, st := range statuses {
				width = max(width, len(st.Name))
			}
			for _, st := range statuses {
				var where string
				switch {
				case st.Found:
					where = st.Path
				case st.PackageRunner:
					where = "resolved by " + st.Executable + " at run time"
				default:
					where = "NOT FOUND"
					if st.Hint != "" {
						where += " (" + st.Hint + ")"
					}
				}
				fmt.Fprintf(w, "  %-*s  %s\n  %-*s  %s\n", width, st.Name, st.Command, width, "", where)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statuses as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
