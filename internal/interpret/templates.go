package interpret

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed templates/*.md
var builtinFS embed.FS

// Built-in template names.
const (
	TemplateDefault  = "default"
	TemplateSecurity = "security"
	TemplateCoverage = "coverage"
	TemplateLint     = "lint"
)

// Tool-name fragments that select a built-in template, checked in this order.
var (
	securityFragments = []string{
		"bandit", "snyk", "npm audit", "safety", "trivy", "grype", "semgrep",
		"sonarqube", "checkmarx", "fortify", "dependency-check", "retire", "audit",
		"govulncheck", "gosec",
	}
	coverageFragments = []string{
		"coverage", "pytest-cov", "istanbul", "nyc", "codecov", "jacoco",
		"cobertura", "lcov",
	}
	lintFragments = []string{
		"eslint", "pylint", "flake8", "ruff", "mypy", "tsc", "prettier", "black",
		"stylelint", "rubocop", "golint", "clippy", "shellcheck", "hadolint",
		"golangci", "staticcheck",
	}
)

// Templates holds the built-in instruction templates plus any custom ones
// loaded from a directory. Custom templates shadow built-ins of the same
// name.
type Templates struct {
	builtin map[string]string
	custom  map[string]string
	dir     string
	logger  *slog.Logger
}

// LoadTemplates loads the built-in templates and every *.txt and *.md file in
// dir, keyed by file name without extension. A missing dir is not an error.
func LoadTemplates(dir string, logger *slog.Logger) (*Templates, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Templates{
		builtin: make(map[string]string),
		custom:  make(map[string]string),
		dir:     dir,
		logger:  logger,
	}

	entries, err := fs.Glob(builtinFS, "templates/*.md")
	if err != nil {
		return nil, fmt.Errorf("listing built-in templates: %w", err)
	}
	for _, path := range entries {
		b, err := builtinFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading built-in template %s: %w", path, err)
		}
		t.builtin[stem(path)] = string(b)
	}

	if dir == "" {
		return t, nil
	}
	for _, pattern := range []string{"*.txt", "*.md"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("listing templates in %s: %w", dir, err)
		}
		for _, path := range matches {
			b, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("failed to load template", "path", path, "error", err)
				continue
			}
			t.custom[stem(path)] = string(b)
			logger.Debug("loaded custom template", "name", stem(path), "path", path)
		}
	}
	return t, nil
}

// Dir returns the custom templates directory.
func (t *Templates) Dir() string { return t.dir }

// ForTool infers the template for a tool from fragments of its name. A
// custom template named after the tool is used when no fragment matches.
func (t *Templates) ForTool(toolName string) string {
	name := strings.ToLower(toolName)
	switch {
	case containsAny(name, securityFragments):
		return TemplateSecurity
	case containsAny(name, coverageFragments):
		return TemplateCoverage
	case containsAny(name, lintFragments):
		return TemplateLint
	}
	if _, ok := t.custom[name]; ok {
		return name
	}
	return TemplateDefault
}

// Render fills the ${tool_name}, ${command} and ${output_file_path}
// placeholders of the named template. Unknown names fall back to the
// default template with a warning.
func (t *Templates) Render(name, toolName, command, outputPath string) string {
	r := strings.NewReplacer(
		"${tool_name}", toolName,
		"${command}", command,
		"${output_file_path}", outputPath,
	)
	return r.Replace(t.source(name))
}

func (t *Templates) source(name string) string {
	if s, ok := t.custom[name]; ok {
		return s
	}
	if s, ok := t.builtin[name]; ok {
		return s
	}
	t.logger.Warn("unknown template, using default", "template", name)
	return t.builtin[TemplateDefault]
}

// List returns every template name, prefixed with "builtin:" or "custom:",
// mapped to its first non-empty line.
func (t *Templates) List() map[string]string {
	out := make(map[string]string, len(t.builtin)+len(t.custom))
	for name, s := range t.builtin {
		out["builtin:"+name] = firstLine(s)
	}
	for name, s := range t.custom {
		out["custom:"+name] = firstLine(s)
	}
	return out
}

// Names returns the available template names, sorted.
func (t *Templates) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range []map[string]string{t.builtin, t.custom} {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
