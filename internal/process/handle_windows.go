//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

// handle owns a started child created in a new process group.
type handle struct {
	cmd *exec.Cmd
}

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// terminateTree sends CTRL_BREAK to the child's process group.
func (h *handle) terminateTree() error {
	if h.cmd.Process == nil {
		return nil
	}
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(h.cmd.Process.Pid))
}

// killTree force-kills the child and all of its descendants.
func (h *handle) killTree() error {
	if h.cmd.Process == nil {
		return nil
	}
	// taskkill /F = force, /T = tree
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(h.cmd.Process.Pid)).Run(); err != nil {
		return h.cmd.Process.Kill()
	}
	return nil
}
