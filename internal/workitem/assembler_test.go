package workitem

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/deixis/sift/internal/grammar"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestAssembler() *Assembler {
	n := 0
	return &Assembler{
		Now: func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("item-%d", n)
		},
	}
}

func findings(name, stdout string) ToolOutput {
	return ToolOutput{
		RunID:    "run-1",
		Name:     name,
		Command:  name + " .",
		Stdout:   stdout,
		ExitCode: 1,
		Duration: 1500 * time.Millisecond,
		Success:  true,
	}
}

func TestSummarize_Findings(t *testing.T) {
	a := newTestAssembler()
	items := a.Summarize(findings("eslint", "src/a.js:1:1 no-unused-vars\n"))

	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	it := items[0]
	if it.ID != "item-1" {
		t.Errorf("ID = %q", it.ID)
	}
	if it.Title != "Fix issues found by eslint" {
		t.Errorf("Title = %q", it.Title)
	}
	if it.Type != "refactor" || it.Priority != 3 || it.Status != "pending" {
		t.Errorf("Type/Priority/Status = %q/%d/%q", it.Type, it.Priority, it.Status)
	}
	if it.Source != "external_tool:eslint" {
		t.Errorf("Source = %q", it.Source)
	}
	for _, want := range []string{"**Command:** `eslint .`", "**Exit Code:** 1", "**Duration:** 1.50s", "no-unused-vars"} {
		if !strings.Contains(it.Description, want) {
			t.Errorf("Description missing %q:\n%s", want, it.Description)
		}
	}

	ctx := it.Context
	if ctx["tool_name"] != "eslint" || ctx["tool_command"] != "eslint ." || ctx["exit_code"] != 1 {
		t.Errorf("context provenance = %v", ctx)
	}
	if ctx["timestamp"] != "2026-03-14T09:26:53Z" {
		t.Errorf("timestamp = %v", ctx["timestamp"])
	}
	if ctx["discovered_by"] != "external_tool_discovery" {
		t.Errorf("discovered_by = %v", ctx["discovered_by"])
	}
	if ctx["run_id"] != "run-1" {
		t.Errorf("run_id = %v", ctx["run_id"])
	}
}

func TestSummarize_ExitZeroYieldsNothing(t *testing.T) {
	a := newTestAssembler()
	out := findings("ruff", "All checks passed!\n")
	out.ExitCode = 0
	if items := a.Summarize(out); len(items) != 0 {
		t.Errorf("len(items) = %d, want 0 for exit code 0", len(items))
	}
}

func TestSummarize_SkipsFailedAndSilentRuns(t *testing.T) {
	a := newTestAssembler()

	failed := findings("ruff", "partial")
	failed.Success = false
	if items := a.Summarize(failed); len(items) != 0 {
		t.Errorf("failed run: len(items) = %d, want 0", len(items))
	}

	silent := findings("ruff", "  \n")
	if items := a.Summarize(silent); len(items) != 0 {
		t.Errorf("silent run: len(items) = %d, want 0", len(items))
	}
}

func TestSummarize_StderrOnly(t *testing.T) {
	a := newTestAssembler()
	out := findings("mypy", "")
	out.Stderr = "error: cannot find module"
	items := a.Summarize(out)
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if !strings.Contains(items[0].Description, "**Stderr:**") {
		t.Errorf("Description = %q, want stderr section", items[0].Description)
	}
	if strings.Contains(items[0].Description, "**Output Preview:**") {
		t.Error("Description has an output section for empty stdout")
	}
}

func TestSummarize_Deduplicates(t *testing.T) {
	a := newTestAssembler()
	head := strings.Repeat("x", 1000)

	if items := a.Summarize(findings("bandit", head+"first tail")); len(items) != 1 {
		t.Fatalf("first: len(items) = %d, want 1", len(items))
	}
	// Identical first 1000 characters: duplicate.
	if items := a.Summarize(findings("bandit", head+"different tail")); len(items) != 0 {
		t.Errorf("second: len(items) = %d, want 0", len(items))
	}
	// Same output from another tool is not a duplicate.
	if items := a.Summarize(findings("semgrep", head+"first tail")); len(items) != 1 {
		t.Errorf("other tool: len(items) = %d, want 1", len(items))
	}
}

func TestForget(t *testing.T) {
	a := newTestAssembler()
	out := findings("bandit", "b.py:3: assert used")

	if items := a.Summarize(out); len(items) != 1 {
		t.Fatalf("first: len(items) = %d, want 1", len(items))
	}
	a.Forget(DedupKey(out.Name, out.Stdout))
	if items := a.Summarize(out); len(items) != 1 {
		t.Errorf("after Forget: len(items) = %d, want 1", len(items))
	}
	// Forgetting an unknown key is harmless.
	newTestAssembler().Forget("nope")
}

func TestSummarize_OutputPreviewAndTruncation(t *testing.T) {
	a := newTestAssembler()
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("finding %02d %s", i, strings.Repeat("y", 30)))
	}
	out := findings("pylint", strings.Join(lines, "\n"))
	out.Stderr = strings.Repeat("warn\n", 15)
	it := a.Summarize(out)[0]

	preview := it.Context["output_preview"].(string)
	if !strings.HasSuffix(preview, "...") || len(preview) != 503 {
		t.Errorf("len(output_preview) = %d, want 500 + ...", len(preview))
	}
	if !strings.Contains(it.Description, "finding 19") {
		t.Error("Description is missing line 20")
	}
	if strings.Contains(it.Description, "finding 20") {
		t.Error("Description includes line 21, want 20 lines")
	}
	if n := strings.Count(it.Description, "... (truncated)"); n != 2 {
		t.Errorf("truncation markers = %d, want 2", n)
	}
	if n := strings.Count(it.Description, "warn"); n != 10 {
		t.Errorf("stderr lines = %d, want 10", n)
	}
}

func TestFromCommands(t *testing.T) {
	a := newTestAssembler()
	cmds := []grammar.Command{
		{Title: "Fix XSS", Type: "security", Priority: 5, Urgent: true, Status: "pending", Valid: true},
		{Title: "", Valid: false, Error: "command must have a title"},
		{Title: "Add tests", Type: "test", Priority: 2, Status: "hold", Description: "cover parser", Valid: true},
	}
	items := a.FromCommands(findings("semgrep", "..."), cmds)

	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Title != "Fix XSS" || items[0].Priority != 5 || items[0].Type != "security" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].Source != "discover:semgrep" {
		t.Errorf("Source = %q", items[0].Source)
	}
	if items[0].Context["urgent"] != true || items[0].Context["discovered_by"] != "interpreter" {
		t.Errorf("context = %v", items[0].Context)
	}
	if items[1].Status != "hold" || items[1].Description != "cover parser" {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestFromCommands_Cap(t *testing.T) {
	a := newTestAssembler()
	a.MaxPerTool = 3
	var cmds []grammar.Command
	for i := 0; i < 7; i++ {
		cmds = append(cmds, grammar.Command{Title: fmt.Sprintf("task %d", i), Valid: true, Priority: 3})
	}
	items := a.FromCommands(findings("eslint", "..."), cmds)
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[2].Title != "task 2" {
		t.Errorf("items[2].Title = %q, want the first three kept", items[2].Title)
	}
}

func TestLimit_DefaultCap(t *testing.T) {
	a := newTestAssembler()
	items := make([]Item, DefaultMaxPerTool+5)
	if got := len(a.Limit("x", items)); got != DefaultMaxPerTool {
		t.Errorf("len = %d, want %d", got, DefaultMaxPerTool)
	}
}

func TestDedupKey(t *testing.T) {
	if DedupKey("a", "out") == DedupKey("b", "out") {
		t.Error("keys for different tools collide")
	}
	if DedupKey("a", strings.Repeat("z", 1000)+"1") != DedupKey("a", strings.Repeat("z", 1000)+"2") {
		t.Error("keys differ beyond the first 1000 characters")
	}
	if len(DedupKey("a", "")) != 64 {
		t.Error("DedupKey is not a hex SHA-256")
	}
}
