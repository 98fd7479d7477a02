package store

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/zvmhq/zvm/internal/zvmerr"
	"github.com/zvmhq/zvm/internal/zversion"
)

// SetActive atomically re-points current/<tool> at versions/<tool>/<V>,
// per spec §4.8 step 8: a symlink swap on POSIX, a directory copy on
// Windows. The active-atomicity property requires current/<tool> to, at
// every observation point, either point at a complete extraction or not
// exist at all.
func (l Layout) SetActive(tool zversion.ToolKind, v zversion.VersionId) error {
	target := l.VersionDir(tool, v)
	link := l.CurrentLink(tool)

	if runtime.GOOS == "windows" {
		return setActiveWindows(target, link)
	}
	return setActivePOSIX(target, link)
}

func setActivePOSIX(target, link string) error {
	rel, err := filepath.Rel(filepath.Dir(link), target)
	if err != nil {
		rel = target // fall back to an absolute link if no relative path exists
	}

	tmp := link + ".tmp-" + uuid.NewString()
	if err := os.Symlink(rel, tmp); err != nil {
		return zvmerr.IOError.Wrap(err, "creating symlink %s", tmp)
	}

	if err := os.Rename(tmp, link); err != nil {
		// rename(2) over an existing symlink is atomic on every POSIX
		// filesystem zvm targets; this fallback only fires on filesystems
		// that reject renaming onto an existing path (rare, e.g. some
		// FUSE mounts), accepting the brief gap spec §4.8 allows.
		os.Remove(tmp)
		os.Remove(link)
		if err := os.Symlink(rel, link); err != nil {
			return zvmerr.IOError.Wrap(err, "symlinking %s -> %s", link, rel)
		}
	}
	return nil
}

func setActiveWindows(target, link string) error {
	if err := os.RemoveAll(link); err != nil {
		return zvmerr.IOError.Wrap(err, "removing previous %s", link)
	}
	if err := copyTree(target, link); err != nil {
		os.RemoveAll(link)
		return zvmerr.IOError.Wrap(err, "copying %s to %s", target, link)
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
