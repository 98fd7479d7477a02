//go:build windows

package shim

import (
	"os"
	"os/exec"

	"github.com/zvmhq/zvm/internal/zvmerr"
)

// Run spawns binary and waits for it, propagating its exit code, since
// Windows has no execve equivalent that replaces the calling process.
func Run(binary string, argv []string, env []string) error {
	cmd := exec.Command(binary, argv...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		return zvmerr.IOError.Wrap(err, "spawning %s", binary)
	}
	os.Exit(0)
	return nil
}
