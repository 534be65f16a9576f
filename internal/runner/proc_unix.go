//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the shell in its own process group and makes
// cancellation kill the whole group, so tools spawned by the shell do not
// outlive a timeout.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
