//go:build unix

package supervisor

import (
	"errors"
	"os"
	"syscall"
)

// sysProcAttr puts the service in its own process group so signals reach the
// binary "go run" builds, not only the go command.
func sysProcAttr(cred *Credential) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{Setpgid: true}
	if cred != nil {
		attr.Credential = &syscall.Credential{Uid: cred.UID, Gid: cred.GID}
	}
	return attr
}

func terminate(h *processHandle) error {
	return signalGroup(h, syscall.SIGTERM)
}

func forceKill(h *processHandle) error {
	return signalGroup(h, syscall.SIGKILL)
}

func signalGroup(h *processHandle, sig syscall.Signal) error {
	err := syscall.Kill(-h.pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
