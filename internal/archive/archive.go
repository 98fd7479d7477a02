// Package archive implements spec §4.7: extracting a downloaded artifact
// into versions/<tool>/<V>/, choosing the decoder by filename suffix,
// guarding against path traversal, and preserving only the executable bit
// of each entry's mode.
package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/zvmerr"
)

// Format is the archive kind selected by filename suffix.
type Format int

const (
	FormatUnknown Format = iota
	FormatTarXZ
	FormatTarGZ
	FormatZip
)

// FormatFromName chooses a Format from an artifact's canonical file name.
func FormatFromName(name string) Format {
	switch {
	case strings.HasSuffix(name, ".tar.xz"):
		return FormatTarXZ
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGZ
	case strings.HasSuffix(name, ".zip"):
		return FormatZip
	default:
		return FormatUnknown
	}
}

// modeFile, modeExecutable and modeDir are the only permission shapes
// extraction writes: of an archive entry's mode only the executable bit is
// kept, and everything else is normalized to a plain rw-r--r-- / rwxr-xr-x
// shape depending on whether that bit was set, per spec §4.7.
const (
	modeFile       os.FileMode = 0o644
	modeExecutable os.FileMode = 0o755
	modeDir        os.FileMode = 0o755
)

func normalizeMode(srcMode os.FileMode, isDir bool) os.FileMode {
	if isDir {
		return modeDir
	}
	if srcMode&0o111 != 0 {
		return modeExecutable
	}
	return modeFile
}

// Extract streams archivePath (named name for suffix detection) into
// destDir, applying the strip-root policy stripRoot (true for compiler
// archives, false for LSP archives). On any error destDir is removed before
// returning, per spec §4.7's cleanup contract.
func Extract(p *pool.Context, archivePath, name, destDir string, stripRoot bool) error {
	format := FormatFromName(name)
	if format == FormatUnknown {
		return zvmerr.UnsupportedArchiveFormat.New("unrecognized archive suffix for %q", name)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return zvmerr.IOError.Wrap(err, "creating %s", destDir)
	}

	var err error
	switch format {
	case FormatTarXZ:
		err = extractTarXZ(p, archivePath, destDir, stripRoot)
	case FormatTarGZ:
		err = extractTarGZ(p, archivePath, destDir, stripRoot)
	case FormatZip:
		err = extractZip(p, archivePath, destDir, stripRoot)
	}
	if err != nil {
		os.RemoveAll(destDir)
		return err
	}
	return nil
}

func extractTarXZ(p *pool.Context, archivePath, destDir string, stripRoot bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return zvmerr.IOError.Wrap(err, "opening %s", archivePath)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return zvmerr.ExtractFailed.Wrap(err, "reading xz header")
	}
	return extractTar(p, tar.NewReader(xr), destDir, stripRoot)
}

func extractTarGZ(p *pool.Context, archivePath, destDir string, stripRoot bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return zvmerr.IOError.Wrap(err, "opening %s", archivePath)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return zvmerr.ExtractFailed.Wrap(err, "reading gzip header")
	}
	defer gr.Close()
	return extractTar(p, tar.NewReader(gr), destDir, stripRoot)
}

func extractTar(p *pool.Context, tr *tar.Reader, destDir string, stripRoot bool) error {
	op, err := p.AcquireExtractOperation()
	if err != nil {
		return err
	}
	defer op.Release()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return zvmerr.ExtractFailed.Wrap(err, "reading tar entry")
		}

		relPath := hdr.Name
		if stripRoot {
			relPath = stripFirstComponent(relPath)
			if relPath == "" {
				continue
			}
		}

		target, err := safeJoin(destDir, relPath, op.Scratch(0))
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, normalizeMode(os.FileMode(hdr.Mode), true)); err != nil {
				return zvmerr.IOError.Wrap(err, "creating directory %s", target)
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := os.MkdirAll(filepath.Dir(target), modeDir); err != nil {
				return zvmerr.IOError.Wrap(err, "creating parent of %s", target)
			}
			if err := writeRegularFile(target, tr, normalizeMode(os.FileMode(hdr.Mode), false)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), modeDir); err != nil {
				return zvmerr.IOError.Wrap(err, "creating parent of %s", target)
			}
			linkTarget, err := safeSymlinkTarget(destDir, filepath.Dir(target), hdr.Linkname, op.Scratch(1))
			if err != nil {
				return err
			}
			if err := os.Symlink(linkTarget, target); err != nil {
				return zvmerr.IOError.Wrap(err, "creating symlink %s", target)
			}
		default:
			// Device nodes, fifos, etc: not part of a compiler or LSP
			// distribution archive; skip rather than fail the install.
		}
	}
}

func writeRegularFile(target string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return zvmerr.IOError.Wrap(err, "creating %s", target)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return zvmerr.IOError.Wrap(err, "writing %s", target)
	}
	return nil
}

// stripFirstComponent removes the archive's single top-level directory
// (e.g. "zig-x86_64-linux-0.13.0/lib/foo.zig" -> "lib/foo.zig"), per
// spec §4.7's compiler-archive policy. Entries that are exactly the root
// directory itself return "".
func stripFirstComponent(name string) string {
	name = strings.TrimPrefix(name, "./")
	i := strings.IndexByte(name, '/')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// safeJoin joins destDir and relPath, rejecting any entry whose normalized
// path escapes destDir (spec §4.7's path-traversal guard, the No-escape
// testable property). scratch is a pooled buffer whose length bounds the
// joined path: a longer path fails with PathTooLong. The path itself is
// built as a new string; scratch's bytes are not written.
func safeJoin(destDir, relPath string, scratch []byte) (string, error) {
	cleaned := filepath.Clean(relPath)
	if cleaned == "" || cleaned == "." {
		return "", zvmerr.PathEscape.New("archive entry %q resolves to the root", relPath)
	}
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", zvmerr.PathEscape.New("archive entry %q escapes extraction root", relPath)
	}

	full := destDir + string(os.PathSeparator) + cleaned
	if len(full) > len(scratch) {
		return "", zvmerr.PathTooLong.New("extracted path %q exceeds buffer of %d bytes", full, len(scratch))
	}
	return full, nil
}

// safeSymlinkTarget validates a tar/zip symlink entry's target so extraction
// never creates a symlink that a later entry's write could follow out of
// destDir. entryDir is the directory the symlink itself lives in (already
// inside destDir); an absolute linkname is rejected outright, and a relative
// one is resolved against entryDir and checked against destDir the same way
// safeJoin checks entry paths. scratch bounds the target's length.
func safeSymlinkTarget(destDir, entryDir, linkname string, scratch []byte) (string, error) {
	if linkname == "" {
		return "", zvmerr.PathEscape.New("archive entry has an empty symlink target")
	}
	if filepath.IsAbs(linkname) {
		return "", zvmerr.PathEscape.New("symlink target %q must be relative", linkname)
	}
	if len(linkname) > len(scratch) {
		return "", zvmerr.PathTooLong.New("symlink target %q exceeds buffer of %d bytes", linkname, len(scratch))
	}

	resolved := filepath.Clean(filepath.Join(entryDir, linkname))
	rel, err := filepath.Rel(destDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", zvmerr.PathEscape.New("symlink target %q escapes extraction root", linkname)
	}
	return linkname, nil
}

// extractZip implements the sibling-temp-directory strategy spec §4.7
// requires for zip: zip.Reader needs random access, so the archive is first
// extracted into a sibling temp directory and then moved into destDir.
func extractZip(p *pool.Context, archivePath, destDir string, stripRoot bool) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return zvmerr.ExtractFailed.Wrap(err, "opening zip %s", archivePath)
	}
	defer r.Close()

	tmpDir := filepath.Join(filepath.Dir(destDir), ".zvm-extract-"+uuid.NewString())
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return zvmerr.IOError.Wrap(err, "creating temp extraction dir %s", tmpDir)
	}
	defer os.RemoveAll(tmpDir)

	op, err := p.AcquireExtractOperation()
	if err != nil {
		return err
	}
	defer op.Release()

	for _, f := range r.File {
		relPath := f.Name
		if stripRoot {
			relPath = stripFirstComponent(relPath)
			if relPath == "" {
				continue
			}
		}

		target, err := safeJoin(tmpDir, relPath, op.Scratch(0))
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, modeDir); err != nil {
				return zvmerr.IOError.Wrap(err, "creating directory %s", target)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), modeDir); err != nil {
			return zvmerr.IOError.Wrap(err, "creating parent of %s", target)
		}

		if f.Mode()&os.ModeSymlink != 0 {
			rc, err := f.Open()
			if err != nil {
				return zvmerr.ExtractFailed.Wrap(err, "opening zip symlink entry %s", f.Name)
			}
			linkBytes, readErr := io.ReadAll(rc)
			rc.Close()
			if readErr != nil {
				return zvmerr.ExtractFailed.Wrap(readErr, "reading zip symlink target for %s", f.Name)
			}
			linkTarget, err := safeSymlinkTarget(tmpDir, filepath.Dir(target), string(linkBytes), op.Scratch(1))
			if err != nil {
				return err
			}
			if err := os.Symlink(linkTarget, target); err != nil {
				return zvmerr.IOError.Wrap(err, "creating symlink %s", target)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return zvmerr.ExtractFailed.Wrap(err, "opening zip entry %s", f.Name)
		}
		err = writeRegularFile(target, rc, normalizeMode(f.Mode(), false))
		rc.Close()
		if err != nil {
			return err
		}
	}

	return moveTree(tmpDir, destDir)
}

// moveTree moves every entry of src into dst with os.Rename (os.Rename on
// the tmp dir itself would work for the common case, but dst already exists
// as created by Extract's MkdirAll, so entries are moved one level down
// instead). There is no copy fallback: a rename that fails, for example
// across filesystems, fails the extraction.
func moveTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return zvmerr.IOError.Wrap(err, "reading %s", src)
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if err := os.Rename(from, to); err != nil {
			return zvmerr.IOError.Wrap(err, "moving %s to %s", from, to)
		}
	}
	return nil
}
