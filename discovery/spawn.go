package discovery

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// spawnPrimary starts a detached primary server using our own binary.
// The child owns its lifetime from here: it publishes the primary
// record itself once its listener is up.
func spawnPrimary(host string, port int) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	cmd := exec.Command(exe, "--host", host, "--port", strconv.Itoa(port))
	cmd.Stdout = nil
	cmd.Stderr = nil
	setDetached(cmd)

	return cmd.Start()
}
