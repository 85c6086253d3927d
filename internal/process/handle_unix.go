//go:build unix

package process

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// handle owns a started child that leads its own process group.
type handle struct {
	cmd *exec.Cmd
}

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree asks the whole process group to exit.
func (h *handle) terminateTree() error {
	return h.signalGroup(unix.SIGTERM)
}

// killTree forcibly kills the whole process group.
func (h *handle) killTree() error {
	return h.signalGroup(unix.SIGKILL)
}

func (h *handle) signalGroup(sig unix.Signal) error {
	if h.cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-h.cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
