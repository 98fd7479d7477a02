package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
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

func TestFetchPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"0.13.0": {}}`))
	}))
	defer srv.Close()

	p := testPoolContext(t)
	op, err := p.AcquireHTTPOperation()
	require.NoError(t, err)
	defer op.Release()

	body, err := New().Fetch(context.Background(), srv.URL, nil, op, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"0.13.0": {}}`, string(body))
}

func TestFetchDecodesGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(`{"version": "master"}`))
		gz.Close()
	}))
	defer srv.Close()

	p := testPoolContext(t)
	op, err := p.AcquireHTTPOperation()
	require.NoError(t, err)
	defer op.Release()
	scratch, err := p.AcquireHTTPOperation()
	require.NoError(t, err)
	defer scratch.Release()

	body, err := New().Fetch(context.Background(), srv.URL, nil, op, scratch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "master"}`, string(body))
}

func TestFetchNon200StatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := testPoolContext(t)
	op, err := p.AcquireHTTPOperation()
	require.NoError(t, err)
	defer op.Release()

	_, err = New().Fetch(context.Background(), srv.URL, nil, op, nil)
	assert.Error(t, err)
}

func TestDownloadFileWritesBodyAndChecksSize(t *testing.T) {
	const payload = "tarball contents"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "artifact.tar.xz")
	written, err := New().DownloadFile(context.Background(), srv.URL, nil, dest, nil)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), written)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}
