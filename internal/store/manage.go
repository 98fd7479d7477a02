package store

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/zvmhq/zvm/internal/zvmerr"
	"github.com/zvmhq/zvm/internal/zversion"
)

// List enumerates versions/<tool>/, per the "list" CLI command of spec §6.
func (l Layout) List(tool zversion.ToolKind) ([]zversion.VersionId, error) {
	entries, err := os.ReadDir(l.VersionsDir(tool))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zvmerr.IOError.Wrap(err, "reading %s", l.VersionsDir(tool))
	}

	var out []zversion.VersionId
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, parseErr := zversion.ParseVersionId(e.Name())
		if parseErr != nil {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out, nil
}

// Remove deletes versions/<tool>/<V>, refusing to remove the active
// version, per spec §6's "remove" command contract.
func (l Layout) Remove(tool zversion.ToolKind, v zversion.VersionId) error {
	active, ok, err := l.ReadActiveVersion(tool)
	if err != nil {
		return err
	}
	if ok && active.Compare(v) == 0 {
		return zvmerr.UsageError.New("%s %s is the active version; switch away before removing it", tool, v)
	}
	dir := l.VersionDir(tool, v)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return zvmerr.VersionNotFound.New("%s %s is not installed", tool, v)
	}
	if err := os.RemoveAll(dir); err != nil {
		return zvmerr.IOError.Wrap(err, "removing %s", dir)
	}
	return nil
}

// Clean empties store/; with all=true it also removes every installed
// version except the currently active one for each tool kind, per spec
// §6's "clean --all" contract.
func (l Layout) Clean(all bool) error {
	entries, err := os.ReadDir(l.StoreDir())
	if err != nil && !os.IsNotExist(err) {
		return zvmerr.IOError.Wrap(err, "reading %s", l.StoreDir())
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(l.StoreDir(), e.Name())); err != nil {
			return zvmerr.IOError.Wrap(err, "removing %s", e.Name())
		}
	}

	if !all {
		return nil
	}
	for _, tool := range []zversion.ToolKind{zversion.Compiler, zversion.LanguageServer} {
		active, hasActive, err := l.ReadActiveVersion(tool)
		if err != nil {
			return err
		}
		versions, err := l.List(tool)
		if err != nil {
			return err
		}
		for _, v := range versions {
			if hasActive && active.Compare(v) == 0 {
				continue
			}
			if err := os.RemoveAll(l.VersionDir(tool, v)); err != nil {
				return zvmerr.IOError.Wrap(err, "removing %s", l.VersionDir(tool, v))
			}
		}
	}
	return nil
}
