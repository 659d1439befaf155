//go:build windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setupProcAttr places the trainer in its own process group so a
// console ctrl event reaches it without taking down the supervisor.
func setupProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// interrupt delivers CTRL_BREAK to the trainer's process group, the
// Windows analogue of a terminal interrupt.
func interrupt(cmd *exec.Cmd) error {
	return syscall.GenerateConsoleCtrlEvent(syscall.CTRL_BREAK_EVENT, uint32(cmd.Process.Pid))
}
