//go:build unix

package worker

import (
	"os/exec"
	"syscall"
)

// killProcessGroup puts the tool in its own process group so a timeout also
// kills the browser it spawned.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
