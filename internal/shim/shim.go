// Package shim implements spec §6's shim interface: invoked as <toolname>,
// it resolves $ZVM_HOME/current/<tool>/<binary>, forwards argv and env, and
// replaces itself (POSIX) or spawns and waits (Windows), propagating the
// child's exit code.
package shim

import (
	"os"
	"path/filepath"

	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/zvmerr"
	"github.com/zvmhq/zvm/internal/zversion"
)

// Resolve computes the path to the active binary for tool, per the
// current/<tool> StoreLayout entry of spec §3.
func Resolve(p *pool.Context, tool zversion.ToolKind, binaryName string) (string, error) {
	path := filepath.Join(p.GetZvmHome(), "current", tool.String(), binaryName)
	if _, err := os.Stat(path); err != nil {
		return "", zvmerr.VersionNotFound.Wrap(err, "no active %s; run install first", tool)
	}
	return path, nil
}
