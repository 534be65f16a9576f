package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/sift/internal/discovery"
	"github.com/deixis/sift/internal/report"
)

type discoverParams struct {
	Tool           string `json:"tool,omitempty" jsonschema:"run only this configured tool (case-insensitive). Defaults to all tools."`
	DryRun         bool   `json:"dry_run,omitempty" jsonschema:"build work items without queueing them. With interpretation, renders the prompt without calling the interpreter."`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"per-tool timeout in seconds, overriding the configured timeout"`
	Interpret      bool   `json:"interpret,omitempty" jsonschema:"hand each tool's output to the configured interpreter for this run"`
}

func (h *handler) discoverHandler(ctx context.Context, req *mcp.CallToolRequest, params discoverParams) (*mcp.CallToolResult, any, error) {
	if params.TimeoutSeconds < 0 {
		return errorResult("timeout_seconds must not be negative")
	}
	run, err := h.currentEngine().Discover(ctx, discovery.Options{
		Tool:      params.Tool,
		DryRun:    params.DryRun,
		Timeout:   time.Duration(params.TimeoutSeconds) * time.Second,
		Interpret: params.Interpret,
	})
	if errors.Is(err, discovery.ErrUnknownTool) {
		return errorResult(err.Error())
	}
	if err != nil && run == nil {
		return errorResult(fmt.Sprintf("discovery failed: %v", err))
	}

	var b strings.Builder
	report.WriteText(&b, run)
	if err != nil {
		// The run finished but some items did not reach the queue.
		fmt.Fprintf(&b, "\nError: %v\n", err)
		return errorResult(b.String())
	}
	if len(run.Tools) > 0 {
		fmt.Fprintf(&b, "\nUse sift_inspect with run_id=%s and a tool name for details.\n", run.ID)
	}
	return textResult(b.String())
}

type toolsParams struct{}

func (h *handler) toolsHandler(ctx context.Context, req *mcp.CallToolRequest, _ toolsParams) (*mcp.CallToolResult, any, error) {
	e := h.currentEngine()
	health := e.Health()

	var b strings.Builder
	fmt.Fprintf(&b, "Work dir: %s\n", health.WorkDir)
	if !health.Enabled {
		fmt.Fprintln(&b, "External tool discovery is disabled.")
		return textResult(b.String())
	}
	fmt.Fprintf(&b, "Timeout: %s per tool\n", time.Duration(health.TimeoutSeconds*float64(time.Second)))
	fmt.Fprintf(&b, "Max work items per tool: %d\n", health.MaxTasksPerTool)
	switch {
	case health.Interpretation && health.Interpreter:
		fmt.Fprintln(&b, "Interpretation: on")
	case health.Interpreter:
		fmt.Fprintln(&b, "Interpretation: available (pass interpret=true)")
	default:
		fmt.Fprintln(&b, "Interpretation: no interpreter configured")
	}
	fmt.Fprintln(&b)

	statuses := e.Statuses()
	if len(statuses) == 0 {
		fmt.Fprintln(&b, "No external tools configured. Add them under discovery.external_tools.tools in .sift/config.yaml.")
		return textResult(b.String())
	}
	fmt.Fprintf(&b, "Tools (%d):\n", len(statuses))
	for _, st := range statuses {
		fmt.Fprintf(&b, "  %s: %s\n", st.Name, st.Command)
		switch {
		case st.Found:
			fmt.Fprintf(&b, "    found: %s\n", st.Path)
		case st.PackageRunner:
			fmt.Fprintf(&b, "    resolved by %s at run time\n", st.Executable)
		default:
			fmt.Fprintf(&b, "    NOT FOUND: %s", st.Executable)
			if st.Hint != "" {
				fmt.Fprintf(&b, " (%s)", st.Hint)
			}
			fmt.Fprintln(&b)
		}
	}
	return textResult(b.String())
}
