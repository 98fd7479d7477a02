// Package pool implements the process-wide resource pool and context
// described in spec §4.1: every buffer a zvm invocation touches is acquired
// from a fixed-count pre-allocated set, and acquisition never blocks — an
// empty pool is a typed PoolExhausted error, not a stall.
//
// The pool is modeled as an explicit value (Context) rather than package
// globals, per spec §9's Design Notes: tests construct a fresh Context
// pointed at a temporary home directory instead of mutating shared state.
package pool

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/zvmhq/zvm/internal/zvmerr"
)

// Capacities of the static pool, per spec §3/§4.1. These bound the number of
// concurrent in-flight operations a single process can have outstanding and
// therefore its worst-case memory footprint.
const (
	PathBufferCapacity      = 8
	PathBufferSize          = 4096 // PATH_MAX on Linux; generous headroom elsewhere.
	VersionEntryCapacity    = 16
	VersionEntrySize        = 32 // matches zversion.MaxVersionIDLength
	HTTPOperationCapacity   = 4
	HTTPResponseBufferSize  = 8 << 20 // >= 8 MiB per spec §4.1
	ExtractOperationCapacity = 4
)

// slab is a fixed-count pool of equally-sized byte buffers, gated by a
// semaphore for the non-blocking PoolExhausted contract and a plain index
// freelist (guarded by a mutex, per spec §5's re-entrancy note) for handing
// back a specific backing slice.
type slab struct {
	sem  *semaphore.Weighted
	what string

	mu      sync.Mutex
	free    []int
	storage [][]byte
}

func newSlab(count, size int, what string) *slab {
	storage := make([][]byte, count)
	free := make([]int, count)
	for i := range storage {
		storage[i] = make([]byte, size)
		free[i] = count - 1 - i
	}
	return &slab{
		sem:     semaphore.NewWeighted(int64(count)),
		what:    what,
		free:    free,
		storage: storage,
	}
}

func (s *slab) acquire() (int, []byte, error) {
	if !s.sem.TryAcquire(1) {
		return 0, nil, zvmerr.PoolExhausted.New("%s pool exhausted", s.what)
	}
	s.mu.Lock()
	idx := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.mu.Unlock()
	return idx, s.storage[idx], nil
}

func (s *slab) release(idx int) {
	s.mu.Lock()
	s.free = append(s.free, idx)
	s.mu.Unlock()
	s.sem.Release(1)
}

// Context is the process-wide static resource context. One Context is
// constructed per process (or per test) and threaded explicitly through call
// sites; it owns no mutable global state outside its own slabs.
type Context struct {
	Log zerolog.Logger

	home    string
	zvmHome string

	pathBuffers    *slab
	versionEntries *slab
	httpOps        *slab
	extractOpsA    *slab // first scratch buffer of each extract operation
	extractOpsB    *slab // second scratch buffer of each extract operation
}

// New constructs a Context, resolving $ZVM_HOME per spec §3 and
// pre-allocating every pool slab up front.
func New(log zerolog.Logger) (*Context, error) {
	home, err := os.UserHomeDir()
	if (err != nil || home == "") && runtime.GOOS != "windows" {
		home = os.Getenv("HOME")
	}
	if home == "" {
		home = os.Getenv("USERPROFILE")
	}
	if home == "" {
		return nil, zvmerr.HomeNotFound.New("could not resolve user home directory")
	}

	return &Context{
		Log:     log,
		home:    home,
		zvmHome: resolveZvmHome(home),

		pathBuffers:    newSlab(PathBufferCapacity, PathBufferSize, "path buffer"),
		versionEntries: newSlab(VersionEntryCapacity, VersionEntrySize, "version entry"),
		httpOps:        newSlab(HTTPOperationCapacity, HTTPResponseBufferSize, "http operation"),
		extractOpsA:    newSlab(ExtractOperationCapacity, PathBufferSize, "extract operation"),
		extractOpsB:    newSlab(ExtractOperationCapacity, PathBufferSize, "extract operation"),
	}, nil
}

func resolveZvmHome(home string) string {
	if v := os.Getenv("ZVM_HOME"); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" && runtime.GOOS != "windows" {
		return filepath.Join(xdg, ".zm")
	}
	if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return filepath.Join(profile, ".zm")
		}
	}
	return filepath.Join(home, ".local", "share", ".zm")
}

// GetHomeDir returns the resolved user home directory.
func (c *Context) GetHomeDir() string { return c.home }

// GetZvmHome returns the resolved $ZVM_HOME root (spec §3 StoreLayout).
func (c *Context) GetZvmHome() string { return c.zvmHome }
