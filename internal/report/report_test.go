package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/deixis/sift/internal/workitem"
)

func sampleRun(id string) *Run {
	return &Run{
		ID:        id,
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		WorkDir:   "/repo",
		Tools: []ToolRun{
			{Name: "ESLint", Command: "npx eslint .", Status: "completed", ExitCode: 1, Path: PathSummary, Items: 1},
			{Name: "ruff", Command: "ruff check .", Status: "completed", Path: PathSkipped, SkipReason: "no issues (exit code 0)"},
			{Name: "bandit", Command: "bandit -r .", Status: "completed", ExitCode: 1, Path: PathInterpreted, Items: 2},
		},
		Items: []workitem.Item{
			{ID: "a", Title: "Fix issues found by ESLint", Context: map[string]any{"tool_name": "ESLint"}},
			{ID: "b", Title: "SQL injection", Context: map[string]any{"tool_name": "bandit"}},
			{ID: "c", Title: "Weak hash", Context: map[string]any{"tool_name": "bandit"}},
		},
	}
}

func TestRun_Tool(t *testing.T) {
	run := sampleRun("r1")
	tr, err := run.Tool("eslint")
	if err != nil {
		t.Fatalf("Tool: %v", err)
	}
	if tr.Command != "npx eslint ." {
		t.Errorf("Command = %q", tr.Command)
	}
	if _, err := run.Tool("mypy"); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestRun_ItemsFor(t *testing.T) {
	run := sampleRun("r1")
	if got := len(run.ItemsFor("BANDIT")); got != 2 {
		t.Errorf("len(ItemsFor(bandit)) = %d, want 2", got)
	}
	if got := len(run.ItemsFor("ruff")); got != 0 {
		t.Errorf("len(ItemsFor(ruff)) = %d, want 0", got)
	}
}

func TestRun_Summary(t *testing.T) {
	run := sampleRun("r1")
	run.DryRun = true
	want := "run r1 (dry run): 3 tools, 3 items, 1 summarized, 1 interpreted, 1 skipped"
	if got := run.Summary(); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStore(dir)
	if err := s.Save(sampleRun("r1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh store over the same directory sees the run.
	got, err := NewDiskStore(dir).Load("r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Tools) != 3 || len(got.Items) != 3 {
		t.Errorf("loaded run = %+v", got)
	}
	if !got.StartedAt.Equal(sampleRun("r1").StartedAt) {
		t.Errorf("StartedAt = %v", got.StartedAt)
	}
}

func TestDiskStore_TempDir(t *testing.T) {
	s := NewDiskStore("")
	if err := s.Save(sampleRun("r1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.Contains(s.Dir(), "sift-runs-") {
		t.Errorf("Dir = %q", s.Dir())
	}
	if _, err := s.Load("r1"); err != nil {
		t.Errorf("Load: %v", err)
	}
}

func TestDiskStore_RejectsPathIDs(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	for _, id := range []string{"", "../r1", "a/b"} {
		if _, err := s.Load(id); err == nil {
			t.Errorf("Load(%q) succeeded, want error", id)
		}
	}
}

// countingStore records backing-store traffic.
type countingStore struct {
	runs  map[string]*Run
	loads int
}

func (c *countingStore) Save(run *Run) error {
	c.runs[run.ID] = run
	return nil
}

func (c *countingStore) Load(id string) (*Run, error) {
	c.loads++
	r, ok := c.runs[id]
	if !ok {
		return nil, fmt.Errorf("no run %s", id)
	}
	return r, nil
}

func TestLRUStore(t *testing.T) {
	back := &countingStore{runs: map[string]*Run{}}
	s := NewLRUStore(2, back)

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := s.Save(sampleRun(id)); err != nil {
			t.Fatal(err)
		}
	}
	if got := strings.Join(s.Recent(), ","); got != "r3,r2" {
		t.Errorf("Recent = %s, want r3,r2", got)
	}

	// r1 was evicted, so it comes from the backing store and is cached again.
	if _, err := s.Load("r1"); err != nil {
		t.Fatalf("Load(r1): %v", err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}
	if got := strings.Join(s.Recent(), ","); got != "r1,r3" {
		t.Errorf("Recent = %s, want r1,r3", got)
	}

	if _, err := s.Load("r3"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("cache hit reached the backing store")
	}

	if _, err := s.Load("missing"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestWriteText(t *testing.T) {
	run := sampleRun("r1")
	run.Items[0].Priority, run.Items[0].Type = 3, "refactor"
	var b strings.Builder
	WriteText(&b, run)
	out := b.String()

	for _, want := range []string{
		"run r1: 3 tools, 3 items",
		"ESLint  completed, exit 1, 0.0s -> summarized, 1 item",
		"ruff    completed, exit 0, 0.0s -> skipped: no issues (exit code 0)",
		"Queued 3 work items:",
		"[P3 refactor] Fix issues found by ESLint",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTool(t *testing.T) {
	run := sampleRun("r1")
	tr, _ := run.Tool("bandit")
	tr.Rejected = []string{"sift add: command must have a title"}
	var b strings.Builder
	WriteTool(&b, run, tr)
	out := b.String()

	for _, want := range []string{"Tool: bandit", "Items (2):", "SQL injection", "Malformed commands:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
