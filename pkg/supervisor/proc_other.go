//go:build !unix

package supervisor

import (
	"os"
	"syscall"
)

func sysProcAttr(_ *Credential) *syscall.SysProcAttr {
	return nil
}

func terminate(h *processHandle) error {
	if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
		return h.cmd.Process.Kill()
	}
	return nil
}

func forceKill(h *processHandle) error {
	return h.cmd.Process.Kill()
}
