//go:build windows

package discovery

import (
	"os/exec"
	"syscall"
)

// setDetached puts the child in its own process group so it survives
// the proxy exiting.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
