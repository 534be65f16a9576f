package report

import (
	"fmt"
	"io"
	"strings"
)

// WriteText writes a human-readable account of run: one line per tool,
// then the items produced.
func WriteText(w io.Writer, run *Run) {
	fmt.Fprintln(w, run.Summary())
	fmt.Fprintln(w)

	width := 0
	for _, t := range run.Tools {
		width = max(width, len(t.Name))
	}
	for _, t := range run.Tools {
		fmt.Fprintf(w, "  %-*s  %s\n", width, t.Name, toolLine(t))
	}
	if len(run.Tools) > 0 {
		fmt.Fprintln(w)
	}

	if len(run.Items) == 0 {
		fmt.Fprintln(w, "No work items.")
		return
	}
	verb := "Queued"
	if run.DryRun {
		verb = "Would queue"
	}
	fmt.Fprintf(w, "%s %d work items:\n", verb, len(run.Items))
	for _, it := range run.Items {
		fmt.Fprintf(w, "  [P%d %s] %s\n", it.Priority, it.Type, it.Title)
	}
}

func toolLine(t ToolRun) string {
	var b strings.Builder
	b.WriteString(t.Status)
	if t.Status == "completed" {
		fmt.Fprintf(&b, ", exit %d, %.1fs", t.ExitCode, t.Duration)
	}
	switch t.Path {
	case PathSkipped:
		fmt.Fprintf(&b, " -> skipped: %s", t.SkipReason)
		if t.Error != "" && t.Error != t.SkipReason {
			fmt.Fprintf(&b, " (%s)", t.Error)
		}
	case PathSummary:
		fmt.Fprintf(&b, " -> summarized, %d item", t.Items)
		if t.Fallback != "" {
			fmt.Fprintf(&b, " (interpretation failed: %s)", t.Fallback)
		}
	case PathInterpreted:
		if t.Prompt != "" {
			b.WriteString(" -> would be interpreted")
			break
		}
		fmt.Fprintf(&b, " -> interpreted, %d items", t.Items)
		if t.Dropped > 0 {
			fmt.Fprintf(&b, ", %d over the cap", t.Dropped)
		}
		if len(t.Rejected) > 0 {
			fmt.Fprintf(&b, ", %d malformed commands", len(t.Rejected))
		}
	}
	if t.QueueError != "" {
		fmt.Fprintf(&b, " (queue failed: %s)", t.QueueError)
	}
	return b.String()
}

// WriteTool writes everything recorded about one tool in run.
func WriteTool(w io.Writer, run *Run, t *ToolRun) {
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Tool: %s\n", t.Name)
	fmt.Fprintf(w, "Command: %s\n", t.Command)
	fmt.Fprintf(w, "Result: %s\n", toolLine(*t))
	if t.IsJSON {
		fmt.Fprintln(w, "Output: JSON")
	}
	if len(t.Rejected) > 0 {
		fmt.Fprintln(w, "\nMalformed commands:")
		for _, r := range t.Rejected {
			fmt.Fprintf(w, "  %s\n", r)
		}
	}
	if t.Prompt != "" {
		fmt.Fprintln(w, "\nPrompt:")
		for _, line := range strings.Split(strings.TrimRight(t.Prompt, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	items := run.ItemsFor(t.Name)
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\nItems (%d):\n", len(items))
	for _, it := range items {
		fmt.Fprintf(w, "\n  [P%d %s] %s\n", it.Priority, it.Type, it.Title)
		fmt.Fprintf(w, "  id: %s, source: %s, status: %s\n", it.ID, it.Source, it.Status)
		if it.Description != "" {
			for _, line := range strings.Split(strings.TrimRight(it.Description, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}
