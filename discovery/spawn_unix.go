//go:build !windows

package discovery

import (
	"os/exec"
	"syscall"
)

// setDetached puts the child in its own session so it survives the
// proxy exiting and never shares the proxy's controlling terminal.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
