// Package runner runs external analysis tools through the shell, capturing
// stdout to a file and stderr in memory, with a per-invocation timeout and
// temp-file cleanup that survives interruption.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/sift/internal/sigchain"
	"github.com/deixis/sift/internal/tool"
)

const (
	// DefaultTimeout applies when neither the caller nor the options set one.
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxStderr caps the stderr kept in memory per invocation.
	DefaultMaxStderr = 1 << 20
	// DefaultShell interprets tool commands.
	DefaultShell = "/bin/sh"

	defaultWaitDelay = 2 * time.Second
)

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	WorkDir   string        // directory tools run in; default the process cwd
	Timeout   time.Duration // default per-invocation timeout
	Shell     string        // shell used as "<shell> -c <command>"
	MaxStderr int           // bytes of stderr kept per invocation
	WaitDelay time.Duration // how long to wait for inherited pipes after the process exits
	Logger    *slog.Logger

	// Signals whose arrival triggers cleanup before being passed on to the
	// previously installed handler. Default os.Interrupt and SIGTERM.
	Signals []os.Signal
}

// Orchestrator runs a fixed list of tools one at a time. It owns a private
// temp directory holding one output file per tool; Close removes it and
// restores the signal handlers that were live before New.
type Orchestrator struct {
	tools     []tool.Spec
	workDir   string
	timeout   time.Duration
	shell     string
	maxStderr int
	waitDelay time.Duration
	logger    *slog.Logger
	sigReg    *sigchain.Registration

	mu      sync.Mutex
	tempDir string
	files   map[string]string // tool name -> output file name in tempDir
}

// New returns an orchestrator for tools and installs its signal handlers.
// Callers must Close it.
func New(tools []tool.Spec, opts Options) *Orchestrator {
	o := &Orchestrator{
		tools:     append([]tool.Spec(nil), tools...),
		workDir:   opts.WorkDir,
		timeout:   opts.Timeout,
		shell:     opts.Shell,
		maxStderr: opts.MaxStderr,
		waitDelay: opts.WaitDelay,
		logger:    opts.Logger,
	}
	if o.workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			o.workDir = wd
		}
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.shell == "" {
		o.shell = DefaultShell
	}
	if o.maxStderr <= 0 {
		o.maxStderr = DefaultMaxStderr
	}
	if o.waitDelay <= 0 {
		o.waitDelay = defaultWaitDelay
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	sigs := opts.Signals
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	o.sigReg = sigchain.Install(o.onSignal, sigs...)
	return o
}

// ToolNames returns the configured tool names in order.
func (o *Orchestrator) ToolNames() []string { return tool.Names(o.tools) }

// ToolCount returns the number of configured tools.
func (o *Orchestrator) ToolCount() int { return len(o.tools) }

// WorkDir returns the directory tools run in.
func (o *Orchestrator) WorkDir() string { return o.workDir }

// TempDir returns the output directory, or "" when it has not been created
// or has been cleaned up.
func (o *Orchestrator) TempDir() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tempDir
}

// ExecuteAll runs every configured tool in order and returns one result per
// tool. A failing tool does not stop the rest. timeout overrides the default
// per-invocation timeout when positive.
func (o *Orchestrator) ExecuteAll(ctx context.Context, timeout time.Duration) []*Result {
	if len(o.tools) == 0 {
		o.logger.Info("no external tools configured, nothing to execute")
		return nil
	}
	o.logger.Info("executing configured tools", "count", len(o.tools))

	results := make([]*Result, 0, len(o.tools))
	succeeded := 0
	for _, spec := range o.tools {
		res := o.Execute(ctx, spec, timeout)
		results = append(results, res)
		if res.Success {
			succeeded++
		}
		o.logger.Info("tool "+res.Status(),
			"tool", res.Name,
			"exit_code", res.ExitCode,
			"stdout_path", res.OutputPath,
			"stderr_len", len(res.Stderr))
	}
	o.logger.Info("tool execution complete",
		"succeeded", succeeded, "failed", len(results)-succeeded)
	return results
}

// Execute runs a single tool. It never returns an error: every way the
// invocation can fail is recorded on the result.
func (o *Orchestrator) Execute(ctx context.Context, spec tool.Spec, timeout time.Duration) *Result {
	if timeout <= 0 {
		timeout = o.timeout
	}
	command := tool.Expand(spec.Command, o.logger)
	res := &Result{
		RunID:    uuid.NewString(),
		Name:     spec.Name,
		Command:  command,
		ExitCode: -1,
		logger:   o.logger,
	}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	o.logger.Info("executing tool", "tool", spec.Name, "command", command)

	exe := Executable(command)
	if !IsPackageRunner(exe) {
		if _, err := Lookup(exe, o.workDir); err != nil {
			res.NotFound = true
			res.Stderr = "Executable not found: " + exe
			res.Error = notFoundMessage(exe)
			o.logger.Warn("tool executable not found", "tool", spec.Name, "executable", exe)
			return res
		}
	}

	if err := ctx.Err(); err != nil {
		return o.unexpected(res, err)
	}
	path, err := o.outputPath(spec.Name)
	if err != nil {
		return o.unexpected(res, err)
	}
	out, err := os.Create(path)
	if err != nil {
		return o.osError(res, err)
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, o.shell, "-c", command)
	cmd.Dir = o.workDir
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &limitWriter{buf: &stderr, limit: o.maxStderr}
	cmd.WaitDelay = o.waitDelay
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		out.Close()
		os.Remove(path)
		return o.osError(res, err)
	}
	runErr := cmd.Wait()
	out.Close()
	res.Stderr = stderr.String()

	switch {
	case runErr != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.Error = fmt.Sprintf("tool execution timed out after %s", timeout)
		if _, err := os.Stat(path); err == nil {
			res.OutputPath = path
		}
		o.logger.Error("tool timed out", "tool", spec.Name, "timeout", timeout)
		return res
	case runErr != nil && ctx.Err() != nil:
		res.OutputPath = path
		return o.unexpected(res, ctx.Err())
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		res.ExitCode = 0
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case errors.Is(runErr, exec.ErrWaitDelay):
		// The shell exited but a background child kept stderr open.
		res.ExitCode = cmd.ProcessState.ExitCode()
	default:
		res.OutputPath = path
		return o.unexpected(res, runErr)
	}
	res.Success = true
	res.OutputPath = path
	return res
}

func (o *Orchestrator) osError(res *Result, err error) *Result {
	res.Stderr = err.Error()
	res.Error = "OS error executing tool: " + err.Error()
	res.OutputPath = ""
	o.logger.Error("OS error executing tool", "tool", res.Name, "error", err)
	return res
}

func (o *Orchestrator) unexpected(res *Result, err error) *Result {
	res.Error = "unexpected error: " + err.Error()
	o.logger.Error("unexpected error executing tool", "tool", res.Name, "error", err)
	return res
}

// ensureTempDir creates the output directory on first use. It lives under
// the work dir rather than the system temp dir so that a sandboxed
// interpreter working in the project can read the files. o.mu must be held.
func (o *Orchestrator) ensureTempDir() (string, error) {
	if o.tempDir != "" {
		return o.tempDir, nil
	}
	parent := filepath.Join(o.workDir, ".sift", "temp")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating temp parent: %w", err)
	}
	dir, err := os.MkdirTemp(parent, "discover_")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	o.tempDir = dir
	o.files = make(map[string]string)
	o.logger.Debug("created temp dir", "path", dir)
	return dir, nil
}

// outputPath returns the output file for the named tool. Names that map to
// the same file name get a numeric suffix, so "my lint" and "my_lint"
// never share a file. Running the same tool again reuses its file.
func (o *Orchestrator) outputPath(name string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	dir, err := o.ensureTempDir()
	if err != nil {
		return "", err
	}
	if file, ok := o.files[name]; ok {
		return filepath.Join(dir, file), nil
	}
	taken := make(map[string]bool, len(o.files))
	for _, f := range o.files {
		taken[f] = true
	}
	base := safeName(name)
	file := base + "_output.txt"
	for n := 2; taken[file]; n++ {
		file = fmt.Sprintf("%s-%d_output.txt", base, n)
	}
	o.files[name] = file
	return filepath.Join(dir, file), nil
}

// Cleanup removes the temp directory and every output file in it. Results
// produced earlier read as empty afterwards. Further calls are no-ops.
func (o *Orchestrator) Cleanup() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tempDir == "" {
		return nil
	}
	dir := o.tempDir
	o.tempDir = ""
	o.files = nil
	if err := os.RemoveAll(dir); err != nil {
		o.logger.Warn("failed to clean up temp dir", "path", dir, "error", err)
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	o.logger.Debug("cleaned up temp dir", "path", dir)
	return nil
}

// Close cleans up and restores the signal handlers that were live before
// the orchestrator was created.
func (o *Orchestrator) Close() error {
	err := o.Cleanup()
	o.sigReg.Restore()
	return err
}

func (o *Orchestrator) onSignal(reg *sigchain.Registration, sig os.Signal) {
	o.logger.Info("signal received, cleaning up", "signal", sig.String())
	_ = o.Cleanup()
	reg.Forward(sig)
}

// limitWriter keeps the first limit bytes written to it. Anything past
// that is dropped, but every Write reports the full length so the process
// is never blocked or failed by a short write.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room < len(p) {
		w.buf.Write(p[:max(room, 0)])
		return len(p), nil
	}
	return w.buf.Write(p)
}
