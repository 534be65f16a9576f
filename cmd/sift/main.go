// Command sift runs external analysis tools and turns their findings into
// work items.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deixis/sift"
	"github.com/deixis/sift/internal/config"
	"github.com/deixis/sift/internal/discovery"
	"github.com/deixis/sift/internal/sigchain"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Installed before any orchestrator so that its cleanup handler chains
	// to this one. A second signal falls through to the default action.
	reg := sigchain.Install(func(reg *sigchain.Registration, sig os.Signal) {
		if ctx.Err() != nil {
			reg.Forward(sig)
			return
		}
		cancel()
	}, os.Interrupt, syscall.SIGTERM)
	defer reg.Restore()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sift: %v\n", err)
		return 1
	}
	return 0
}

type globals struct {
	workspace string
	verbose   bool
	logJSON   bool
	logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "sift",
		Short: "Turn external tool findings into work items",
		Long: `sift runs the linters, scanners and coverage tools configured in
.sift/config.yaml and queues a work item for what each of them reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			g.logger = newLogger(cmd.ErrOrStderr(), g.verbose, g.logJSON)
			slog.SetDefault(g.logger)
			if g.workspace == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("determining workspace: %w", err)
				}
				g.workspace = wd
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&g.workspace, "workspace", "C", "", "workspace directory (default: current directory)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&g.logJSON, "log-json", false, "log as JSON")

	root.AddCommand(
		newDiscoverCmd(g),
		newParseCmd(g),
		newToolsCmd(g),
		newMCPCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), sift.Version)
			},
		},
	)
	return root
}

func newLogger(w io.Writer, verbose, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig loads the configuration for the workspace.
func (g *globals) loadConfig() (*config.Config, error) {
	loaded, err := config.Load(g.workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded.Config, nil
}

// newEngine builds a discovery engine for the workspace. The queue
// kind "stdout" writes to stdout.
func (g *globals) newEngine(ctx context.Context, stdout io.Writer) (*discovery.Engine, *config.Config, func() error, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	e, closeFn, err := discovery.FromConfig(ctx, cfg, discovery.Setup{
		Stdout: stdout,
		Logger: g.logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return e, cfg, closeFn, nil
}
