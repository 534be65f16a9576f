// Package discovery runs the configured external tools and turns what they
// report into queued work items. It is consumed by both the MCP server and
// the CLI commands.
//
// Each run creates one orchestrator, executes every selected tool, then
// walks the results in order. Results that carry findings go either through
// the interpretation bridge, when enabled, or through the assembler's
// summary path. Temporary output is removed when the run returns.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/sift/internal/grammar"
	"github.com/deixis/sift/internal/interpret"
	"github.com/deixis/sift/internal/queue"
	"github.com/deixis/sift/internal/report"
	"github.com/deixis/sift/internal/runner"
	"github.com/deixis/sift/internal/tool"
	"github.com/deixis/sift/internal/workitem"
)

// ErrUnknownTool is returned when a run is restricted to a tool that is not
// configured.
var ErrUnknownTool = errors.New("unknown tool")

// InterpretedType is the work item type for interpreter commands that do
// not name one.
const InterpretedType = "refactor"

// Options control a single run.
type Options struct {
	Tool      string        // run only this tool (case-insensitive)
	DryRun    bool          // build items without queueing them
	Timeout   time.Duration // per-tool timeout override
	Interpret bool          // use the interpretation bridge for this run
}

// Engine holds shared dependencies for discovery runs. Runs are
// serialized; the assembler's duplicate tracking spans all of them.
type Engine struct {
	Tools     []tool.Spec
	Disabled  bool
	WorkDir   string
	Timeout   time.Duration // default per-tool timeout
	Interpret bool          // interpretation on for every run

	Bridge    *interpret.Bridge // nil disables interpretation
	Parser    *grammar.Parser
	Assembler *workitem.Assembler
	Queue     queue.Queue
	Store     report.Store // optional

	// Runner is the base orchestrator configuration. WorkDir, Timeout
	// and Logger are filled in from the engine.
	Runner runner.Options

	Logger *slog.Logger
	NewID  func() string
	Now    func() time.Time

	mu       sync.Mutex
	initOnce sync.Once
}

// Discover runs the selected tools and returns the record of the run. When
// some items cannot be queued the remaining tools are still processed, and
// the run is returned together with the first queue error.
func (e *Engine) Discover(ctx context.Context, opts Options) (*report.Run, error) {
	e.init()
	e.mu.Lock()
	defer e.mu.Unlock()

	tools, err := e.selectTools(opts.Tool)
	if err != nil {
		return nil, err
	}
	if !opts.DryRun && e.Queue == nil && len(tools) > 0 {
		return nil, errors.New("no work queue configured")
	}

	run := &report.Run{
		ID:          e.newID(),
		StartedAt:   e.now().UTC(),
		WorkDir:     e.WorkDir,
		DryRun:      opts.DryRun,
		Interpreted: e.interpreting(opts),
		Tools:       []report.ToolRun{},
		Items:       []workitem.Item{},
	}
	log := e.logger().With("run_id", run.ID)

	if len(tools) == 0 {
		if e.Disabled {
			log.Info("external tool discovery is disabled")
		} else {
			log.Info("no external tools configured")
		}
		e.save(run)
		return run, nil
	}

	ro := e.Runner
	ro.WorkDir = e.WorkDir
	ro.Timeout = e.Timeout
	ro.Logger = log
	orch := runner.New(tools, ro)
	defer func() {
		if err := orch.Close(); err != nil {
			log.Warn("failed to clean up tool output", "error", err)
		}
	}()

	log.Info("starting discovery", "tools", len(tools), "dry_run", opts.DryRun, "interpret", run.Interpreted)
	results := orch.ExecuteAll(ctx, opts.Timeout)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discovery interrupted: %w", err)
	}

	// A dry run must not mark output as seen, or the real run that follows
	// would drop its summaries as duplicates.
	asm := e.Assembler
	if opts.DryRun {
		asm = &workitem.Assembler{
			MaxPerTool: e.Assembler.MaxPerTool,
			Now:        e.Assembler.Now,
			NewID:      e.Assembler.NewID,
			Logger:     e.Assembler.Logger,
		}
	}

	var (
		queueErr error
		failed   int
	)
	for _, res := range results {
		tr, items, key := e.process(ctx, run, res, asm, opts.DryRun, log)
		if !opts.DryRun && len(items) > 0 {
			queued, err := e.enqueue(ctx, items)
			if err != nil {
				failed += len(items) - queued
				if queueErr == nil {
					queueErr = fmt.Errorf("queueing item for %s: %w", res.Name, err)
				}
				if key != "" {
					asm.Forget(key)
				}
				log.Error("failed to queue work items", "tool", res.Name,
					"queued", queued, "failed", len(items)-queued, "error", err)
				tr.QueueError = err.Error()
				tr.Items = queued
				items = items[:queued]
			}
		}
		run.Tools = append(run.Tools, tr)
		run.Items = append(run.Items, items...)
	}

	e.save(run)
	log.Info(run.Summary())
	if queueErr != nil {
		return run, fmt.Errorf("%d work items not queued: %w", failed, queueErr)
	}
	return run, nil
}

// enqueue adds items in order and stops at the first failure. It returns
// how many were added.
func (e *Engine) enqueue(ctx context.Context, items []workitem.Item) (int, error) {
	for i, it := range items {
		if err := e.Queue.Add(ctx, it); err != nil {
			return i, err
		}
	}
	return len(items), nil
}

// process decides what a single result turns into. For a summary it also
// returns the dedup key that was recorded.
func (e *Engine) process(ctx context.Context, run *report.Run, res *runner.Result, asm *workitem.Assembler, dryRun bool, log *slog.Logger) (report.ToolRun, []workitem.Item, string) {
	tr := report.ToolRun{
		Name:     res.Name,
		Command:  res.Command,
		Status:   res.Status(),
		ExitCode: res.ExitCode,
		Duration: res.Duration.Seconds(),
		Error:    res.Error,
		Path:     report.PathSkipped,
	}
	if reason := skipReason(res); reason != "" {
		tr.SkipReason = reason
		log.Info("skipping tool", "tool", res.Name, "reason", reason)
		return tr, nil, ""
	}
	tr.IsJSON = res.IsJSON()
	out := workitem.FromResult(res, run.ID)

	if run.Interpreted {
		if dryRun {
			tr.Path = report.PathInterpreted
			tr.Prompt = e.Bridge.Prompt(res.Name, res.Command, res.OutputPath)
			return tr, nil, ""
		}
		resp := e.Bridge.Interpret(ctx, res.Name, res.Command, res.OutputPath)
		if resp.Success {
			accepted, rejected := e.Parser.Scan(resp.Output)
			for _, c := range rejected {
				tr.Rejected = append(tr.Rejected, c.Raw+": "+c.Error)
			}
			items := asm.FromCommands(out, accepted)
			tr.Path = report.PathInterpreted
			tr.Items = len(items)
			tr.Dropped = len(accepted) - len(items)
			log.Info("interpreted tool output", "tool", res.Name,
				"commands", len(accepted), "rejected", len(rejected), "items", len(items))
			return tr, items, ""
		}
		tr.Fallback = resp.Error
		log.Warn("interpretation failed, summarizing instead", "tool", res.Name, "error", resp.Error)
	}

	items := asm.Summarize(out)
	if len(items) == 0 {
		tr.SkipReason = "duplicate of an earlier summary"
		return tr, nil, ""
	}
	tr.Path = report.PathSummary
	tr.Items = len(items)
	return tr, items, workitem.DedupKey(out.Name, out.Stdout)
}

func skipReason(res *runner.Result) string {
	switch {
	case res.NotFound:
		return "tool not found"
	case res.TimedOut:
		return "timed out"
	case !res.Success:
		return "execution failed"
	case res.ExitCode == 0:
		return "no issues (exit code 0)"
	case !res.HasOutput():
		return "no output"
	}
	return ""
}

func (e *Engine) selectTools(name string) ([]tool.Spec, error) {
	if e.Disabled {
		return nil, nil
	}
	if name == "" {
		return e.Tools, nil
	}
	for _, t := range e.Tools {
		if strings.EqualFold(t.Name, name) {
			return []tool.Spec{t}, nil
		}
	}
	available := "none"
	if len(e.Tools) > 0 {
		available = strings.Join(tool.Names(e.Tools), ", ")
	}
	return nil, fmt.Errorf("%w %q (configured: %s)", ErrUnknownTool, name, available)
}

func (e *Engine) interpreting(opts Options) bool {
	if !opts.Interpret && !e.Interpret {
		return false
	}
	if e.Bridge == nil {
		e.logger().Warn("interpretation requested but no interpreter is configured, summarizing instead")
		return false
	}
	return true
}

func (e *Engine) save(run *report.Run) {
	if e.Store == nil {
		return
	}
	if err := e.Store.Save(run); err != nil {
		e.logger().Warn("failed to save discovery run", "run_id", run.ID, "error", err)
	}
}

// Health describes the engine configuration.
type Health struct {
	Enabled         bool     `json:"enabled"`
	Tools           []string `json:"tools"`
	ToolCount       int      `json:"tool_count"`
	WorkDir         string   `json:"work_dir"`
	Interpretation  bool     `json:"use_interpretation"`
	Interpreter     bool     `json:"interpreter_configured"`
	MaxTasksPerTool int      `json:"max_tasks_per_tool"`
	TimeoutSeconds  float64  `json:"timeout_seconds"`
}

// Health reports the engine's configuration.
func (e *Engine) Health() Health {
	e.init()
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = runner.DefaultTimeout
	}
	names := tool.Names(e.Tools)
	return Health{
		Enabled:         !e.Disabled,
		Tools:           names,
		ToolCount:       len(names),
		WorkDir:         e.WorkDir,
		Interpretation:  e.Interpret,
		Interpreter:     e.Bridge != nil,
		MaxTasksPerTool: maxPerTool(e.Assembler),
		TimeoutSeconds:  timeout.Seconds(),
	}
}

// init fills in the parser and assembler when they were left nil.
func (e *Engine) init() {
	e.initOnce.Do(func() {
		if e.Parser == nil {
			e.Parser = &grammar.Parser{DefaultType: InterpretedType, Logger: e.Logger}
		}
		if e.Assembler == nil {
			e.Assembler = &workitem.Assembler{Logger: e.Logger}
		}
	})
}

func maxPerTool(a *workitem.Assembler) int {
	if a.MaxPerTool > 0 {
		return a.MaxPerTool
	}
	return workitem.DefaultMaxPerTool
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
