//go:build !unix && !windows

package process

import "os/exec"

type handle struct {
	cmd *exec.Cmd
}

func setProcessGroup(*exec.Cmd) {}

func (h *handle) terminateTree() error { return h.killTree() }

func (h *handle) killTree() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}
