package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/zversion"
)

func testLayout(t *testing.T) Layout {
	t.Helper()
	t.Setenv("ZVM_HOME", t.TempDir())
	p, err := pool.New(zerolog.Nop())
	require.NoError(t, err)
	return NewLayout(p)
}

func TestWriteAndReadActiveVersion(t *testing.T) {
	l := testLayout(t)
	v, err := zversion.ParseVersionId("0.13.0")
	require.NoError(t, err)

	_, ok, err := l.ReadActiveVersion(zversion.Compiler)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.WriteActiveVersion(zversion.Compiler, v))
	got, ok, err := l.ReadActiveVersion(zversion.Compiler)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestIsCompleteChecksBinaryPresence(t *testing.T) {
	l := testLayout(t)
	v, err := zversion.ParseVersionId("0.13.0")
	require.NoError(t, err)

	assert.False(t, l.IsComplete(zversion.Compiler, v, "zig"))

	require.NoError(t, l.EnsureDirs(zversion.Compiler))
	dir := l.VersionDir(zversion.Compiler, v)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zig"), []byte("binary"), 0o755))

	assert.True(t, l.IsComplete(zversion.Compiler, v, "zig"))
}
