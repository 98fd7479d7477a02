//go:build !windows

package shim

import (
	"syscall"

	"github.com/zvmhq/zvm/internal/zvmerr"
)

// Run replaces the current process image with binary via execve, per
// spec §6's POSIX shim contract. It does not return on success.
func Run(binary string, argv []string, env []string) error {
	args := append([]string{binary}, argv...)
	if err := syscall.Exec(binary, args, env); err != nil {
		return zvmerr.IOError.Wrap(err, "exec %s", binary)
	}
	return nil // unreachable on success
}
