//go:build !windows

package supervisor

import (
	"os"
	"os/exec"
)

func setupProcAttr(cmd *exec.Cmd) {}

// interrupt asks the process to shut down cleanly, giving the trainer a
// chance to write its final checkpoint and status snapshot.
func interrupt(cmd *exec.Cmd) error {
	return cmd.Process.Signal(os.Interrupt)
}
