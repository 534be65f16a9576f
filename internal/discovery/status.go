package discovery

import (
	"github.com/deixis/sift/internal/runner"
	"github.com/deixis/sift/internal/tool"
)

// ToolStatus is whether a configured tool can be started.
type ToolStatus struct {
	Name          string `json:"name"`
	Command       string `json:"command"` // after environment expansion
	Executable    string `json:"executable"`
	Path          string `json:"path,omitempty"`
	Found         bool   `json:"found"`
	PackageRunner bool   `json:"package_runner"` // resolved by npx, uvx and friends at run time
	Hint          string `json:"hint,omitempty"`
}

// Statuses resolves every configured tool's executable without running it.
func (e *Engine) Statuses() []ToolStatus {
	out := make([]ToolStatus, 0, len(e.Tools))
	for _, spec := range e.Tools {
		out = append(out, e.status(spec))
	}
	return out
}

func (e *Engine) status(spec tool.Spec) ToolStatus {
	command := spec.ExpandedCommand(e.logger())
	exe := runner.Executable(command)
	st := ToolStatus{
		Name:          spec.Name,
		Command:       command,
		Executable:    exe,
		PackageRunner: runner.IsPackageRunner(exe),
	}
	path, err := runner.Lookup(exe, e.WorkDir)
	if err == nil {
		st.Path, st.Found = path, true
	} else if !st.PackageRunner {
		st.Hint = runner.InstallHint(exe)
	}
	return st
}
