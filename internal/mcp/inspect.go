package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/sift/internal/report"
)

type inspectParams struct {
	RunID string `json:"run_id,omitempty" jsonschema:"the run ID from a sift_discover result. Omit to list recent runs."`
	Tool  string `json:"tool,omitempty" jsonschema:"tool name within the run (case-insensitive)"`
}

// recentLister is implemented by stores that can list what they hold.
type recentLister interface {
	Recent() []string
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		if params.Tool != "" {
			return errorResult("run_id is required when tool is set")
		}
		return h.listRuns()
	}

	run, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	var b strings.Builder
	if params.Tool == "" {
		report.WriteText(&b, run)
		return textResult(b.String())
	}

	tr, err := run.Tool(params.Tool)
	if err != nil {
		names := make([]string, len(run.Tools))
		for i, t := range run.Tools {
			names[i] = t.Name
		}
		return errorResult(fmt.Sprintf("%v. Tools in this run: %s", err, strings.Join(names, ", ")))
	}
	report.WriteTool(&b, run, tr)
	return textResult(b.String())
}

func (h *handler) listRuns() (*mcp.CallToolResult, any, error) {
	lister, ok := h.store.(recentLister)
	if !ok {
		return errorResult("run_id is required")
	}
	ids := lister.Recent()
	if len(ids) == 0 {
		return textResult("No runs yet. Use sift_discover first.")
	}
	var b strings.Builder
	fmt.Fprintln(&b, "Recent runs, newest first:")
	for _, id := range ids {
		run, err := h.store.Load(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "  %s  %s\n", run.StartedAt.Format("2006-01-02 15:04:05Z"), run.Summary())
	}
	return textResult(b.String())
}
