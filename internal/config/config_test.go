package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deixis/sift/internal/tool"
)

func writeConfig(t *testing.T, root, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, Dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, Dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_FromRepoRoot(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "version: 1\ntimeout: 10m\n")

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, dir)
	}
	if res.Config.Version != 1 {
		t.Errorf("Config.Version = %d, want 1", res.Config.Version)
	}
	if res.Config.Timeout() != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", res.Config.Timeout())
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "version: 2\n")

	sub := filepath.Join(root, "pkg", "foo")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != root {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, root)
	}
	if res.Config.Version != 2 {
		t.Errorf("Config.Version = %d, want 2", res.Config.Version)
	}
}

func TestLoad_GitRootWithoutConfig(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "src")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != root {
		t.Errorf("RepoRoot = %q, want %q", res.RepoRoot, root)
	}
	if got := res.Config.QueuePath(); got != filepath.Join(root, ".sift", "queue.jsonl") {
		t.Errorf("QueuePath = %q", got)
	}
}

func TestLoad_NoMarkers(t *testing.T) {
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q (fallback to workspace)", res.RepoRoot, dir)
	}
	// Should return default config.
	if res.Config.RawTimeout != "" {
		t.Errorf("expected default config, got RawTimeout = %q", res.Config.RawTimeout)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "timeout: [unclosed\n")
	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{root: "/repo"}
	if cfg.Timeout() != DefaultTimeout {
		t.Errorf("Timeout = %v", cfg.Timeout())
	}
	if !cfg.Enabled() {
		t.Error("Enabled = false, want true")
	}
	if cfg.MaxTasksPerTool() != 50 {
		t.Errorf("MaxTasksPerTool = %d, want 50", cfg.MaxTasksPerTool())
	}
	if cfg.UseInterpretation() {
		t.Error("UseInterpretation = true, want false")
	}
	if cfg.InterpreterTimeout() != DefaultInterpreterTimeout {
		t.Errorf("InterpreterTimeout = %v", cfg.InterpreterTimeout())
	}
	if cfg.TemplatesDir() != "/repo/.sift/templates" {
		t.Errorf("TemplatesDir = %q", cfg.TemplatesDir())
	}
	if cfg.MCPTool() != "interpret" {
		t.Errorf("MCPTool = %q", cfg.MCPTool())
	}
	if cfg.QueueKind() != "jsonl" {
		t.Errorf("QueueKind = %q", cfg.QueueKind())
	}
	if cfg.RunsDir() != "/repo/.sift/runs" {
		t.Errorf("RunsDir = %q", cfg.RunsDir())
	}
}

func TestTimeout_Invalid(t *testing.T) {
	for _, raw := range []string{"soon", "-1m", "0s"} {
		cfg := &Config{RawTimeout: raw}
		if cfg.Timeout() != DefaultTimeout {
			t.Errorf("Timeout(%q) = %v, want default", raw, cfg.Timeout())
		}
	}
}

const fullConfig = `
version: 1
timeout: 2m
discovery:
  external_tools:
    max_tasks_per_tool: 10
    use_interpretation: true
    tools:
      - name: eslint
        command: "npx eslint . --format json"
      - name: bandit
        command: "bandit -r . -f json"
interpreter:
  command: "claude -p"
  timeout: 90s
  template: security
  templates_dir: prompts
  mcp:
    tool: analyze
queue:
  kind: postgres
  path: /var/sift/queue.jsonl
  database_url: "$SIFT_TEST_DSN"
server:
  jwt_secret: "${SIFT_TEST_SECRET}"
`

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("SIFT_TEST_DSN", "postgres://localhost/sift")
	t.Setenv("SIFT_TEST_SECRET", "hunter2")
	dir := t.TempDir()
	writeConfig(t, dir, fullConfig)

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := res.Config

	tools, err := cfg.Tools()
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "eslint" || tools[1].Command != "bandit -r . -f json" {
		t.Errorf("Tools = %+v", tools)
	}
	if cfg.Timeout() != 2*time.Minute {
		t.Errorf("Timeout = %v", cfg.Timeout())
	}
	if cfg.MaxTasksPerTool() != 10 || !cfg.UseInterpretation() {
		t.Errorf("discovery = %+v", cfg.Discovery)
	}
	if cfg.InterpreterTimeout() != 90*time.Second {
		t.Errorf("InterpreterTimeout = %v", cfg.InterpreterTimeout())
	}
	if cfg.TemplatesDir() != filepath.Join(dir, "prompts") {
		t.Errorf("TemplatesDir = %q", cfg.TemplatesDir())
	}
	if cfg.MCPTool() != "analyze" {
		t.Errorf("MCPTool = %q", cfg.MCPTool())
	}
	if cfg.QueueKind() != "postgres" || cfg.QueuePath() != "/var/sift/queue.jsonl" {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.DatabaseURL() != "postgres://localhost/sift" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL())
	}
	if cfg.JWTSecret() != "hunter2" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret())
	}
}

func TestTools_Disabled(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "discovery:\n  external_tools:\n    enabled: false\n    tools:\n      - name: x\n        command: y\n")
	res, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	tools, err := res.Config.Tools()
	if err != nil || len(tools) != 0 {
		t.Errorf("Tools = %v, %v; want empty", tools, err)
	}
}

func TestTools_InvalidEntry(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "discovery:\n  external_tools:\n    tools:\n      - name: ok\n        command: echo\n      - name: broken\n")
	res, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	_, err = res.Config.Tools()
	var cerr *tool.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *tool.ConfigError", err)
	}
	if cerr.Error() != "external_tools[1]: missing required field 'command' for tool 'broken'" {
		t.Errorf("err = %q", cerr.Error())
	}
}
