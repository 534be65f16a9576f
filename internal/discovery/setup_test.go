//go:build unix

package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/deixis/sift/internal/config"
	"github.com/deixis/sift/internal/queue"
)

const setupConfig = `
version: 1
timeout: 30s
discovery:
  external_tools:
    max_tasks_per_tool: 5
    use_interpretation: true
    tools:
      - name: lint
        command: "printf 'x.go:3: bad\n'; exit 1"
interpreter:
  command: "cat >/dev/null; printf 'sift add \"Fix x.go\" --type bug_fix\n'"
`

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, config.Dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, config.Dir, config.FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := config.Load(root)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return res.Config
}

func TestFromConfig_EndToEnd(t *testing.T) {
	cfg := loadConfig(t, setupConfig)
	ctx := context.Background()

	e, closeFn, err := FromConfig(ctx, cfg, Setup{})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if e.WorkDir != cfg.Root() || e.Bridge == nil || !e.Interpret {
		t.Fatalf("engine = %+v", e)
	}

	run, err := e.Discover(ctx, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(cfg.QueuePath())
	if err != nil {
		t.Fatalf("queue file: %v", err)
	}
	defer f.Close()
	items, err := queue.ReadJSONL(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Fix x.go" || items[0].Type != "bug_fix" {
		t.Errorf("queued items = %+v", items)
	}

	if _, err := os.Stat(filepath.Join(cfg.RunsDir(), run.ID+".json")); err != nil {
		t.Errorf("run was not saved: %v", err)
	}
}

func TestFromConfig_DryRunLeavesQueueUntouched(t *testing.T) {
	cfg := loadConfig(t, setupConfig)
	e, closeFn, err := FromConfig(context.Background(), cfg, Setup{})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	if _, err := e.Discover(context.Background(), Options{DryRun: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.QueuePath()); !os.IsNotExist(err) {
		t.Errorf("queue file touched by a dry run: %v", err)
	}
}

func TestFromConfig_InvalidTools(t *testing.T) {
	cfg := loadConfig(t, "discovery:\n  external_tools:\n    tools:\n      - just-a-string\n")
	if _, _, err := FromConfig(context.Background(), cfg, Setup{}); err == nil {
		t.Error("expected configuration error")
	}
}

func TestFromConfig_NoInterpreter(t *testing.T) {
	cfg := loadConfig(t, "version: 1\n")
	e, closeFn, err := FromConfig(context.Background(), cfg, Setup{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if e.Bridge != nil {
		t.Error("Bridge set without an interpreter command")
	}
	if e.Health().MaxTasksPerTool != 50 {
		t.Errorf("MaxTasksPerTool = %d", e.Health().MaxTasksPerTool)
	}
}
