package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmhq/zvm/internal/pool"
)

func testPoolContext(t *testing.T) *pool.Context {
	t.Helper()
	t.Setenv("ZVM_HOME", t.TempDir())
	c, err := pool.New(zerolog.Nop())
	require.NoError(t, err)
	return c
}

func writeTarGZ(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.tar.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return path
}

func writeTarGZWithSymlink(t *testing.T, linkName, linkTarget string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.tar.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "bin/real", Size: 4, Mode: 0o755}))
	_, err = tw.Write([]byte("real"))
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     linkName,
		Typeflag: tar.TypeSymlink,
		Linkname: linkTarget,
	}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return path
}

func TestExtractTarGZStripsRootComponent(t *testing.T) {
	p := testPoolContext(t)
	archivePath := writeTarGZ(t, map[string]string{
		"zig-linux-x86_64-0.13.0/zig":          "binary",
		"zig-linux-x86_64-0.13.0/lib/std.zig":  "std",
	})

	dest := filepath.Join(t.TempDir(), "versions", "compiler", "0.13.0")
	require.NoError(t, Extract(p, archivePath, "zig-linux-x86_64-0.13.0.tar.gz", dest, true))

	data, err := os.ReadFile(filepath.Join(dest, "zig"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "lib", "std.zig"))
	require.NoError(t, err)
	assert.Equal(t, "std", string(data))
}

func TestExtractTarGZNoStripForLSP(t *testing.T) {
	p := testPoolContext(t)
	archivePath := writeTarGZ(t, map[string]string{"zls": "binary"})

	dest := filepath.Join(t.TempDir(), "versions", "lsp", "0.13.0")
	require.NoError(t, Extract(p, archivePath, "zls-linux-x86_64-0.13.0.tar.gz", dest, false))

	data, err := os.ReadFile(filepath.Join(dest, "zls"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	p := testPoolContext(t)
	archivePath := writeTarGZ(t, map[string]string{"../../etc/passwd": "pwned"})

	parent := t.TempDir()
	dest := filepath.Join(parent, "versions", "compiler", "0.13.0")
	err := Extract(p, archivePath, "evil.tar.gz", dest, false)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(parent, "etc", "passwd"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "partial extraction directory must be removed on error")
}

func TestExtractTarGZPreservesValidSymlink(t *testing.T) {
	p := testPoolContext(t)
	archivePath := writeTarGZWithSymlink(t, "bin/alias", "real")

	dest := filepath.Join(t.TempDir(), "versions", "compiler", "0.13.0")
	require.NoError(t, Extract(p, archivePath, "zig-linux-x86_64-0.13.0.tar.gz", dest, false))

	target, err := os.Readlink(filepath.Join(dest, "bin", "alias"))
	require.NoError(t, err)
	assert.Equal(t, "real", target)
}

func TestExtractTarGZRejectsSymlinkEscape(t *testing.T) {
	p := testPoolContext(t)
	archivePath := writeTarGZWithSymlink(t, "bin/alias", "../../../../etc/passwd")

	parent := t.TempDir()
	dest := filepath.Join(parent, "versions", "compiler", "0.13.0")
	err := Extract(p, archivePath, "evil.tar.gz", dest, false)
	require.Error(t, err)

	_, statErr := os.Lstat(filepath.Join(dest, "bin", "alias"))
	assert.True(t, os.IsNotExist(statErr), "escaping symlink must not be created")
}

func TestExtractTarGZRejectsAbsoluteSymlinkTarget(t *testing.T) {
	p := testPoolContext(t)
	archivePath := writeTarGZWithSymlink(t, "bin/alias", "/etc/passwd")

	dest := filepath.Join(t.TempDir(), "versions", "compiler", "0.13.0")
	err := Extract(p, archivePath, "evil.tar.gz", dest, false)
	require.Error(t, err)
}

func TestFormatFromName(t *testing.T) {
	assert.Equal(t, FormatTarXZ, FormatFromName("zig-linux-x86_64-0.13.0.tar.xz"))
	assert.Equal(t, FormatTarGZ, FormatFromName("zls-linux-x86_64-0.13.0.tar.gz"))
	assert.Equal(t, FormatZip, FormatFromName("zig-windows-x86_64-0.13.0.zip"))
	assert.Equal(t, FormatUnknown, FormatFromName("zig-0.13.0.rar"))
}

func TestStripFirstComponent(t *testing.T) {
	assert.Equal(t, "lib/std.zig", stripFirstComponent("zig-linux-x86_64-0.13.0/lib/std.zig"))
	assert.Equal(t, "", stripFirstComponent("zig-linux-x86_64-0.13.0"))
}
