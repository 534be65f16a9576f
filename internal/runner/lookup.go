package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// packageRunners resolve and install their target themselves and print a
// better error than ours when it is missing, so their existence is not
// checked up front.
var packageRunners = map[string]bool{
	"npx":  true,
	"npm":  true,
	"yarn": true,
	"pnpm": true,
	"bunx": true,
	"pipx": true,
	"uvx":  true,
}

// IsPackageRunner reports whether exe is a script runner whose existence
// check is skipped.
func IsPackageRunner(exe string) bool {
	return packageRunners[exe]
}

// Executable returns the first whitespace-delimited token of command.
func Executable(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Lookup resolves exe the way the shell would before running it: absolute
// paths must exist, paths containing a separator are taken relative to dir,
// and bare names are searched on PATH.
func Lookup(exe, dir string) (string, error) {
	if exe == "" {
		return "", fmt.Errorf("empty command")
	}
	if filepath.IsAbs(exe) {
		if _, err := os.Stat(exe); err != nil {
			return "", err
		}
		return exe, nil
	}
	if strings.ContainsRune(exe, filepath.Separator) || strings.ContainsRune(exe, '/') {
		p := filepath.Join(dir, exe)
		if _, err := os.Stat(p); err != nil {
			return "", err
		}
		return p, nil
	}
	return exec.LookPath(exe)
}

// installInfo holds install metadata for a commonly configured tool.
type installInfo struct {
	// Install is the command that installs the tool.
	Install string
	// URL points at upstream install instructions.
	URL string
}

// knownTools maps executable names to install metadata. It is used only to
// make not-found messages actionable.
var knownTools = map[string]installInfo{
	"eslint":        {Install: "npm install --save-dev eslint"},
	"ruff":          {Install: "pip install ruff"},
	"bandit":        {Install: "pip install bandit"},
	"pylint":        {Install: "pip install pylint"},
	"mypy":          {Install: "pip install mypy"},
	"semgrep":       {Install: "pip install semgrep"},
	"shellcheck":    {URL: "https://github.com/koalaman/shellcheck#installing"},
	"hadolint":      {URL: "https://github.com/hadolint/hadolint#install"},
	"trivy":         {URL: "https://aquasecurity.github.io/trivy/latest/getting-started/installation/"},
	"staticcheck":   {Install: "go install honnef.co/go/tools/cmd/staticcheck@latest"},
	"govulncheck":   {Install: "go install golang.org/x/vuln/cmd/govulncheck@latest"},
	"gosec":         {Install: "go install github.com/securego/gosec/v2/cmd/gosec@latest"},
	"golangci-lint": {URL: "https://golangci-lint.run/welcome/install/"},
}

// InstallHint returns a short install instruction for exe, or "" when exe
// is not a known tool.
func InstallHint(exe string) string {
	info, ok := knownTools[filepath.Base(exe)]
	if !ok {
		return ""
	}
	if info.Install != "" {
		return "install with: " + info.Install
	}
	return "install instructions: " + info.URL
}

func notFoundMessage(exe string) string {
	msg := fmt.Sprintf("tool executable '%s' not found in PATH", exe)
	if hint := InstallHint(exe); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

// safeName maps a tool name onto a file name component.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || strings.Trim(s, ".") == "" {
		return "tool"
	}
	return s
}
