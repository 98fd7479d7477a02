package store

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/zversion"
)

func TestSetActiveRepointsCurrent(t *testing.T) {
	t.Setenv("ZVM_HOME", t.TempDir())
	p, err := pool.New(zerolog.Nop())
	require.NoError(t, err)
	l := NewLayout(p)

	v1, _ := zversion.ParseVersionId("0.12.0")
	v2, _ := zversion.ParseVersionId("0.13.0")
	require.NoError(t, l.EnsureDirs(zversion.Compiler))

	for _, v := range []zversion.VersionId{v1, v2} {
		dir := l.VersionDir(zversion.Compiler, v)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "zig"), []byte(v.String()), 0o755))
	}

	require.NoError(t, l.SetActive(zversion.Compiler, v1))
	data, err := os.ReadFile(filepath.Join(l.CurrentLink(zversion.Compiler), "zig"))
	require.NoError(t, err)
	assert.Equal(t, "0.12.0", string(data))

	require.NoError(t, l.SetActive(zversion.Compiler, v2))
	data, err = os.ReadFile(filepath.Join(l.CurrentLink(zversion.Compiler), "zig"))
	require.NoError(t, err)
	assert.Equal(t, "0.13.0", string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Lstat(l.CurrentLink(zversion.Compiler))
		require.NoError(t, err)
		assert.True(t, info.Mode()&os.ModeSymlink != 0)
	}
}
