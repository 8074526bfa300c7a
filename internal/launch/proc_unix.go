//go:build !windows

package launch

import (
	"os/exec"
	"syscall"
)

// sysProcAttr puts the child in its own process group so interrupting it
// does not deliver SIGINT to the harness's group.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// interrupt delivers SIGINT to the child's process group.
func interrupt(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
}
