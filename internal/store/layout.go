// Package store implements spec §3's StoreLayout and spec §4.8's install
// orchestration: downloading into the store cache, verifying, extracting
// into versions/<tool>/<V>/, and atomically re-pointing current/<tool>.
package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/zvmerr"
	"github.com/zvmhq/zvm/internal/zversion"
)

// Layout resolves the fixed directory/file names under $ZVM_HOME.
type Layout struct {
	Root string // $ZVM_HOME
}

func NewLayout(p *pool.Context) Layout { return Layout{Root: p.GetZvmHome()} }

func (l Layout) StoreDir() string { return filepath.Join(l.Root, "store") }

func (l Layout) VersionsDir(tool zversion.ToolKind) string {
	return filepath.Join(l.Root, "versions", tool.String())
}

func (l Layout) VersionDir(tool zversion.ToolKind, v zversion.VersionId) string {
	return filepath.Join(l.VersionsDir(tool), v.String())
}

func (l Layout) VersionPointerFile(tool zversion.ToolKind) string {
	return filepath.Join(l.Root, "version", tool.String())
}

func (l Layout) CurrentLink(tool zversion.ToolKind) string {
	return filepath.Join(l.Root, "current", tool.String())
}

func (l Layout) LockFile() string { return filepath.Join(l.Root, ".zvm.lock") }

// EnsureDirs creates store/, versions/<tool>/, version/, and current/ ahead
// of an install, per spec §4.8 step 1.
func (l Layout) EnsureDirs(tool zversion.ToolKind) error {
	dirs := []string{
		l.StoreDir(),
		l.VersionsDir(tool),
		filepath.Join(l.Root, "version"),
		filepath.Join(l.Root, "current"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return zvmerr.IOError.Wrap(err, "creating %s", d)
		}
	}
	return nil
}

// ReadActiveVersion reads version/<tool>, trimming trailing whitespace per
// spec §6's persisted-state contract. Returns ok=false if the tool has
// never been installed.
func (l Layout) ReadActiveVersion(tool zversion.ToolKind) (v zversion.VersionId, ok bool, err error) {
	raw, readErr := os.ReadFile(l.VersionPointerFile(tool))
	if os.IsNotExist(readErr) {
		return zversion.VersionId{}, false, nil
	}
	if readErr != nil {
		return zversion.VersionId{}, false, zvmerr.IOError.Wrap(readErr, "reading %s", l.VersionPointerFile(tool))
	}
	s := strings.TrimRight(string(raw), " \t\r\n")
	parsed, parseErr := zversion.ParseVersionId(s)
	if parseErr != nil {
		return zversion.VersionId{}, false, parseErr
	}
	return parsed, true, nil
}

// WriteActiveVersion writes version/<tool> as "V\n", per spec §6.
func (l Layout) WriteActiveVersion(tool zversion.ToolKind, v zversion.VersionId) error {
	path := l.VersionPointerFile(tool)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zvmerr.IOError.Wrap(err, "creating %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(v.String()+"\n"), 0o644); err != nil {
		return zvmerr.IOError.Wrap(err, "writing %s", path)
	}
	return nil
}

// IsComplete reports whether versions/<tool>/<V>/ already contains the
// named binary, the short-circuit condition of spec §4.8 step 2.
func (l Layout) IsComplete(tool zversion.ToolKind, v zversion.VersionId, binaryName string) bool {
	bin := filepath.Join(l.VersionDir(tool, v), binaryName)
	info, err := os.Stat(bin)
	return err == nil && !info.IsDir()
}

// Lock acquires the cross-process advisory install lock at $ZVM_HOME/.zvm.lock,
// so two separately invoked zvm processes don't race on the same store —
// spec §5 only rules out concurrency within a single process.
func (l Layout) Lock() (*flock.Flock, error) {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return nil, zvmerr.IOError.Wrap(err, "creating %s", l.Root)
	}
	fl := flock.New(l.LockFile())
	if err := fl.Lock(); err != nil {
		return nil, zvmerr.IOError.Wrap(err, "acquiring lock %s", l.LockFile())
	}
	return fl, nil
}
