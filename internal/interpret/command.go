package interpret

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandInterpreter runs an interpreter CLI through the shell, writing the
// prompt to its stdin and taking its stdout as the answer.
type CommandInterpreter struct {
	Command string        // e.g. "claude -p"
	Shell   string        // default /bin/sh
	Dir     string        // working directory, so the CLI can read the output file
	Timeout time.Duration // default 5m
}

func (c *CommandInterpreter) Interpret(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(c.Command) == "" {
		return nil, errors.New("no interpreter command configured")
	}
	shell := c.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, "-c", c.Command)
	cmd.Dir = c.Dir
	cmd.Stdin = strings.NewReader(req.Prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	resp := &Response{Output: stdout.String(), Duration: time.Since(start)}

	switch {
	case err == nil:
		resp.Success = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		resp.Error = fmt.Sprintf("interpreter timed out after %s", timeout)
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running interpreter: %w", err)
		}
		resp.Error = fmt.Sprintf("interpreter exited with code %d", exitErr.ExitCode())
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			resp.Error += ": " + msg
		}
	}
	return resp, nil
}
