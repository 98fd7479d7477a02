package pool

import "github.com/zvmhq/zvm/internal/zvmerr"

// PathBuffer is a pool handle over a fixed PATH_MAX-sized byte buffer.
type PathBuffer struct {
	s     *slab
	idx   int
	n     int
	store []byte
}

// AcquirePathBuffer borrows a path buffer handle, failing with
// zvmerr.PoolExhausted if none are free.
func (c *Context) AcquirePathBuffer() (*PathBuffer, error) {
	idx, store, err := c.pathBuffers.acquire()
	if err != nil {
		return nil, err
	}
	return &PathBuffer{s: c.pathBuffers, idx: idx, store: store}, nil
}

// Slice returns the full mutable backing range of the buffer.
func (b *PathBuffer) Slice() []byte { return b.store }

// Set finalizes the buffer's contents to the given prefix, per spec §4.1.
func (b *PathBuffer) Set(prefix []byte) error {
	if len(prefix) > len(b.store) {
		return zvmerr.PathTooLong.New("path of %d bytes exceeds buffer of %d bytes", len(prefix), len(b.store))
	}
	copy(b.store, prefix)
	b.n = len(prefix)
	return nil
}

// String returns the finalized portion of the buffer as written by Set.
func (b *PathBuffer) String() string { return string(b.store[:b.n]) }

// Release returns the buffer to the pool. Calling Release twice is a no-op.
func (b *PathBuffer) Release() {
	if b.s == nil {
		return
	}
	b.n = 0
	clear(b.store)
	b.s.release(b.idx)
	b.s = nil
}

// VersionEntry is a pool handle over a fixed name buffer, used while walking
// release index and versions/ directory entries.
type VersionEntry struct {
	s     *slab
	idx   int
	n     int
	store []byte
}

func (c *Context) AcquireVersionEntry() (*VersionEntry, error) {
	idx, store, err := c.versionEntries.acquire()
	if err != nil {
		return nil, err
	}
	return &VersionEntry{s: c.versionEntries, idx: idx, store: store}, nil
}

func (v *VersionEntry) Set(name string) error {
	if len(name) > len(v.store) {
		return zvmerr.BufferTooSmall.New("version id of %d bytes exceeds entry of %d bytes", len(name), len(v.store))
	}
	copy(v.store, name)
	v.n = len(name)
	return nil
}

func (v *VersionEntry) String() string { return string(v.store[:v.n]) }

func (v *VersionEntry) Release() {
	if v.s == nil {
		return
	}
	v.n = 0
	v.s.release(v.idx)
	v.s = nil
}

// HTTPOperation is a pool handle over a fixed response buffer usable across
// one HTTP request (spec §4.1: "each with a fixed response buffer").
type HTTPOperation struct {
	s     *slab
	idx   int
	n     int
	store []byte
}

func (c *Context) AcquireHTTPOperation() (*HTTPOperation, error) {
	idx, store, err := c.httpOps.acquire()
	if err != nil {
		return nil, err
	}
	return &HTTPOperation{s: c.httpOps, idx: idx, store: store}, nil
}

// Buffer returns the full backing byte slice for this operation.
func (h *HTTPOperation) Buffer() []byte { return h.store }

// SetLen records how many bytes of Buffer are valid.
func (h *HTTPOperation) SetLen(n int) { h.n = n }

// Bytes returns the valid portion of the buffer.
func (h *HTTPOperation) Bytes() []byte { return h.store[:h.n] }

func (h *HTTPOperation) Release() {
	if h.s == nil {
		return
	}
	h.n = 0
	h.s.release(h.idx)
	h.s = nil
}

// ExtractOperation is a pool handle over two scratch path buffers used by
// the archive extractor (spec §3: "two scratch path buffers").
type ExtractOperation struct {
	a, b       *slab
	idxA, idxB int
	storeA     []byte
	storeB     []byte
}

func (c *Context) AcquireExtractOperation() (*ExtractOperation, error) {
	idxA, storeA, err := c.extractOpsA.acquire()
	if err != nil {
		return nil, err
	}
	idxB, storeB, err := c.extractOpsB.acquire()
	if err != nil {
		c.extractOpsA.release(idxA)
		return nil, err
	}
	return &ExtractOperation{
		a: c.extractOpsA, b: c.extractOpsB,
		idxA: idxA, idxB: idxB,
		storeA: storeA, storeB: storeB,
	}, nil
}

// Scratch returns the nth (0 or 1) scratch path buffer.
func (e *ExtractOperation) Scratch(n int) []byte {
	if n == 0 {
		return e.storeA
	}
	return e.storeB
}

func (e *ExtractOperation) Release() {
	if e.a == nil {
		return
	}
	e.a.release(e.idxA)
	e.b.release(e.idxB)
	e.a, e.b = nil, nil
}
