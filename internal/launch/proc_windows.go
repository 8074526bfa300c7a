//go:build windows

package launch

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// sysProcAttr creates the child in a new process group, which is what
// allows GenerateConsoleCtrlEvent to target it in isolation.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// interrupt sends CTRL_BREAK_EVENT to the child's process group. Windows
// has no SIGINT; CTRL_BREAK is the nearest cooperative equivalent a
// console process can handle.
func interrupt(cmd *exec.Cmd) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(cmd.Process.Pid))
}
