package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/deixis/sift/internal/config"
	"github.com/deixis/sift/internal/grammar"
	"github.com/deixis/sift/internal/interpret"
	"github.com/deixis/sift/internal/queue"
	"github.com/deixis/sift/internal/report"
	"github.com/deixis/sift/internal/workitem"
)

// Setup carries what FromConfig needs besides the configuration.
type Setup struct {
	WorkDir string    // where tools run; default the repository root
	Stdout  io.Writer // destination of the stdout queue kind
	Logger  *slog.Logger
}

// FromConfig builds an engine from loaded configuration. The returned
// function releases the queue and any interpreter subprocess.
func FromConfig(ctx context.Context, cfg *config.Config, s Setup) (*Engine, func() error, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workDir := s.WorkDir
	if workDir == "" {
		workDir = cfg.Root()
	}

	tools, err := cfg.Tools()
	if err != nil {
		return nil, nil, err
	}

	bridge, stopInterpreter, err := newBridge(ctx, cfg, workDir, logger)
	if err != nil {
		return nil, nil, err
	}

	q := queue.NewLazy(queue.Config{
		Kind:        cfg.QueueKind(),
		Path:        cfg.QueuePath(),
		DatabaseURL: cfg.DatabaseURL(),
		Stdout:      s.Stdout,
	})

	e := &Engine{
		Tools:     tools,
		Disabled:  !cfg.Enabled(),
		WorkDir:   workDir,
		Timeout:   cfg.Timeout(),
		Interpret: cfg.UseInterpretation(),
		Bridge:    bridge,
		Parser:    &grammar.Parser{DefaultType: InterpretedType, Logger: logger},
		Assembler: &workitem.Assembler{MaxPerTool: cfg.MaxTasksPerTool(), Logger: logger},
		Queue:     q,
		Store:     report.NewDiskStore(cfg.RunsDir()),
		Logger:    logger,
	}
	closeFn := func() error {
		stopInterpreter()
		return q.Close()
	}
	return e, closeFn, nil
}

// newBridge picks the interpreter: an MCP server subprocess when one is
// configured, otherwise a CLI command. With neither there is no bridge.
func newBridge(ctx context.Context, cfg *config.Config, workDir string, logger *slog.Logger) (*interpret.Bridge, func(), error) {
	var (
		in   interpret.Interpreter
		stop = func() {}
	)
	switch {
	case cfg.Interpreter.MCP.Command != "":
		m, stopMCP, err := interpret.StartMCPInterpreter(ctx, cfg.Interpreter.MCP.Command, workDir, cfg.MCPTool())
		if err != nil {
			return nil, nil, err
		}
		in, stop = m, stopMCP
	case cfg.Interpreter.Command != "":
		in = &interpret.CommandInterpreter{
			Command: cfg.Interpreter.Command,
			Dir:     workDir,
			Timeout: cfg.InterpreterTimeout(),
		}
	default:
		if cfg.UseInterpretation() {
			logger.Warn("use_interpretation is set but no interpreter command is configured")
		}
		return nil, stop, nil
	}

	templates, err := interpret.LoadTemplates(cfg.TemplatesDir(), logger)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("loading interpretation templates: %w", err)
	}
	return &interpret.Bridge{
		Templates:   templates,
		Interpreter: in,
		Template:    cfg.Interpreter.Template,
		Logger:      logger,
	}, stop, nil
}
