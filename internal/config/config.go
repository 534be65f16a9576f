// Package config loads the optional .sift/config.yaml file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deixis/sift/internal/tool"
)

// Dir is the per-repository directory holding configuration, templates,
// the default queue file and temporary tool output.
const Dir = ".sift"

// FileName is the configuration file inside Dir.
const FileName = "config.yaml"

// Default values.
const (
	DefaultTimeout            = 5 * time.Minute
	DefaultMaxTasksPerTool    = 50
	DefaultInterpreterTimeout = 5 * time.Minute
	DefaultMCPTool            = "interpret"
	DefaultQueueKind          = "jsonl"
)

// Config holds the parsed configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version     int               `yaml:"version"`
	RawTimeout  string            `yaml:"timeout"` // e.g. "5m", "30s"
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Queue       QueueConfig       `yaml:"queue"`
	Server      ServerConfig      `yaml:"server"`

	root string
}

// DiscoveryConfig wraps the external tool section.
type DiscoveryConfig struct {
	ExternalTools ExternalToolsConfig `yaml:"external_tools"`
}

// ExternalToolsConfig lists the tools to run. Tools is kept raw so each
// entry can be validated with its index.
type ExternalToolsConfig struct {
	Enabled           *bool `yaml:"enabled"` // default true
	MaxTasksPerTool   int   `yaml:"max_tasks_per_tool"`
	UseInterpretation bool  `yaml:"use_interpretation"`
	Tools             []any `yaml:"tools"`
}

// InterpreterConfig selects the collaborator that reads tool output.
type InterpreterConfig struct {
	Command      string    `yaml:"command"` // CLI, prompt on stdin (e.g. "claude -p")
	RawTimeout   string    `yaml:"timeout"`
	Template     string    `yaml:"template"`
	TemplatesDir string    `yaml:"templates_dir"`
	MCP          MCPConfig `yaml:"mcp"`
}

// MCPConfig points at an MCP server subprocess used as interpreter.
type MCPConfig struct {
	Command string `yaml:"command"`
	Tool    string `yaml:"tool"`
}

// QueueConfig selects where work items go.
type QueueConfig struct {
	Kind        string `yaml:"kind"` // jsonl, postgres, stdout
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
}

// ServerConfig configures the HTTP MCP transport.
type ServerConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Root returns the repository root the config was loaded from.
func (c *Config) Root() string { return c.root }

// Timeout returns the configured per-tool timeout or the default.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.RawTimeout, DefaultTimeout)
}

// Enabled reports whether external tool discovery is switched on.
func (c *Config) Enabled() bool {
	e := c.Discovery.ExternalTools.Enabled
	return e == nil || *e
}

// MaxTasksPerTool returns the per-tool item cap or the default.
func (c *Config) MaxTasksPerTool() int {
	if n := c.Discovery.ExternalTools.MaxTasksPerTool; n > 0 {
		return n
	}
	return DefaultMaxTasksPerTool
}

// UseInterpretation reports whether tool output is handed to an interpreter.
func (c *Config) UseInterpretation() bool {
	return c.Discovery.ExternalTools.UseInterpretation
}

// Tools validates the configured tool list. A disabled section yields an
// empty list.
func (c *Config) Tools() ([]tool.Spec, error) {
	if !c.Enabled() {
		return nil, nil
	}
	return tool.ValidateList(c.Discovery.ExternalTools.Tools)
}

// InterpreterTimeout returns the interpreter timeout or the default.
func (c *Config) InterpreterTimeout() time.Duration {
	return parseDuration(c.Interpreter.RawTimeout, DefaultInterpreterTimeout)
}

// TemplatesDir returns the custom templates directory, relative paths
// resolved against the repository root.
func (c *Config) TemplatesDir() string {
	if c.Interpreter.TemplatesDir == "" {
		return filepath.Join(c.root, Dir, "templates")
	}
	return c.resolve(c.Interpreter.TemplatesDir)
}

// MCPTool returns the tool called on an MCP interpreter.
func (c *Config) MCPTool() string {
	if c.Interpreter.MCP.Tool != "" {
		return c.Interpreter.MCP.Tool
	}
	return DefaultMCPTool
}

// QueueKind returns the configured queue kind or jsonl.
func (c *Config) QueueKind() string {
	if c.Queue.Kind != "" {
		return c.Queue.Kind
	}
	return DefaultQueueKind
}

// QueuePath returns the JSONL queue file.
func (c *Config) QueuePath() string {
	if c.Queue.Path == "" {
		return filepath.Join(c.root, Dir, "queue.jsonl")
	}
	return c.resolve(c.Queue.Path)
}

// DatabaseURL returns the Postgres URL with $VAR references expanded.
func (c *Config) DatabaseURL() string {
	return tool.Expand(c.Queue.DatabaseURL, nil)
}

// JWTSecret returns the HTTP signing secret with $VAR references expanded.
func (c *Config) JWTSecret() string {
	return tool.Expand(c.Server.JWTSecret, nil)
}

// RunsDir is where discovery runs are persisted.
func (c *Config) RunsDir() string {
	return filepath.Join(c.root, Dir, "runs")
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing .sift or .git; falls back to workspace
}

// Load reads .sift/config.yaml from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for .sift or .git. If no config file exists, a default Config is
// returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		root, err = filepath.Abs(workspace)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace: %w", err)
		}
	}

	path := filepath.Join(root, Dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{root: root}, RepoRoot: root}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.root = root
	return &LoadResult{Config: cfg, RepoRoot: root}, nil
}

// findRepoRoot walks upward from dir looking for a directory containing
// .sift or .git.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, marker := range []string{Dir, ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s or .git directory found", Dir)
		}
		dir = parent
	}
}
