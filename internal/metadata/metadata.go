// Package metadata parses the two release-index JSON documents described in
// spec §4.2: the compiler index (a flat object keyed by version) and the LSP
// index (keyed by version with per-arch-os artifacts). Parsing is bounded —
// oversize documents fail before N_MAX is exceeded — and unknown fields are
// ignored by construction, since decoding targets only the subset of fields
// the resolver needs.
package metadata

import (
	"bytes"
	"encoding/json"

	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/zvmerr"
	"github.com/zvmhq/zvm/internal/zversion"
)

// orderedTopLevelKeys walks body's top-level JSON object with a streaming
// token decoder to recover key order, since unmarshaling into a Go map
// discards it — spec §4.2 requires the parsed version list to preserve
// manifest order.
func orderedTopLevelKeys(body []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, zvmerr.UsageError.New("expected a JSON object at top level")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, zvmerr.UsageError.New("expected string object key")
		}
		keys = append(keys, key)
		// Skip the value: decode it into a RawMessage and discard, which
		// advances past nested objects/arrays without re-parsing them.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// NMax is the parser's cap on distinct versions per spec §4.2 ("N_MAX (>= 100)").
const NMax = 256

// Artifact is a single (tool, version, platform) download descriptor.
type Artifact struct {
	Tarball string `json:"tarball"`
	Shasum  string `json:"shasum"`
	Size    int64  `json:"size"`
}

// Entry is one version's worth of per-platform artifacts, plus the version
// string actually printed by the tool (needed because "master" rows carry
// their own resolved version under the "version" key, per spec §4.2).
type Entry struct {
	Version   zversion.VersionId
	Resolved  string // for non-master entries, equal to Version.String()
	Artifacts map[string]Artifact
}

// Index is an ordered release index: entries preserve manifest order, per
// spec §4.2's parser contract.
type Index struct {
	entries []Entry
	byKey   map[string]int
}

// Lookup returns the Entry for a given version key, if present.
func (idx *Index) Lookup(v zversion.VersionId) (Entry, bool) {
	i, ok := idx.byKey[v.String()]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Versions returns version keys in manifest order, per spec §4.2.
func (idx *Index) Versions() []zversion.VersionId {
	out := make([]zversion.VersionId, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = e.Version
	}
	return out
}

// rawCompilerIndex mirrors the compiler manifest shape: a map from version
// key to a map from platform key to Artifact, plus scalar top-level fields
// (like "version" for master) that are not platform maps. json.RawMessage
// lets us tell the two apart without a custom decoder per field.
type rawCompilerIndex map[string]json.RawMessage

// decodeRow decodes one version row, keeping every field whose value decodes
// as an Artifact and skipping the rest (scalars such as master's "version"
// or "date"), so unknown fields never fail the parse. The raw fields are
// returned as well for callers that need a scalar.
func decodeRow(row json.RawMessage) (map[string]Artifact, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil {
		return nil, nil, err
	}
	platforms := make(map[string]Artifact, len(fields))
	for key, val := range fields {
		var a Artifact
		if json.Unmarshal(val, &a) == nil {
			platforms[key] = a
		}
	}
	return platforms, fields, nil
}

// ParseCompilerIndex decodes the compiler release index (spec §4.2).
// body must already be bounded (callers pass the bytes read into a pooled
// HTTP operation buffer, which itself enforces ResponseTooLarge). Each
// candidate key is staged through a pooled VersionEntry before parsing, the
// same handle spec §3 describes as used "while walking release index...
// entries" — an oversize key is tolerated as a malformed row, not a crash.
func ParseCompilerIndex(p *pool.Context, body []byte) (*Index, error) {
	var raw rawCompilerIndex
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, zvmerr.UsageError.Wrap(err, "decoding compiler release index")
	}

	ordered, err := orderedTopLevelKeys(body)
	if err != nil {
		return nil, zvmerr.UsageError.Wrap(err, "recovering manifest key order")
	}
	keys := make([]string, 0, len(raw))
	for _, k := range ordered {
		if k == "version" {
			continue // scalar top-level field, not a version row
		}
		if _, ok := raw[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) > NMax {
		return nil, zvmerr.ResponseTooLarge.New("compiler index has %d versions, exceeds N_MAX=%d", len(keys), NMax)
	}

	entry, err := p.AcquireVersionEntry()
	if err != nil {
		return nil, err
	}
	defer entry.Release()

	idx := &Index{byKey: make(map[string]int, len(keys))}
	for _, k := range keys {
		if err := entry.Set(k); err != nil {
			continue // oversize key: tolerated per spec §4.2
		}
		vid, err := zversion.ParseVersionId(entry.String())
		if err != nil {
			continue // unknown/malformed key: tolerated per spec §4.2
		}
		platforms, fields, err := decodeRow(raw[k])
		if err != nil {
			continue
		}
		resolved := k
		if k == "master" {
			for _, v := range []json.RawMessage{fields["version"], raw["version"]} {
				var s string
				if v != nil && json.Unmarshal(v, &s) == nil && s != "" {
					resolved = s
					break
				}
			}
		}
		idx.byKey[k] = len(idx.entries)
		idx.entries = append(idx.entries, Entry{Version: vid, Resolved: resolved, Artifacts: platforms})
	}
	return idx, nil
}

// ParseLSPIndex decodes the LSP release index (spec §4.2): a list-like
// structure keyed by version, each value a platform-keyed artifact map.
func ParseLSPIndex(p *pool.Context, body []byte) (*Index, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, zvmerr.UsageError.Wrap(err, "decoding LSP release index")
	}

	ordered, err := orderedTopLevelKeys(body)
	if err != nil {
		return nil, zvmerr.UsageError.Wrap(err, "recovering manifest key order")
	}
	keys := make([]string, 0, len(raw))
	for _, k := range ordered {
		if _, ok := raw[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) > NMax {
		return nil, zvmerr.ResponseTooLarge.New("LSP index has %d versions, exceeds N_MAX=%d", len(keys), NMax)
	}

	entry, err := p.AcquireVersionEntry()
	if err != nil {
		return nil, err
	}
	defer entry.Release()

	idx := &Index{byKey: make(map[string]int, len(keys))}
	for _, k := range keys {
		if err := entry.Set(k); err != nil {
			continue
		}
		vid, err := zversion.ParseVersionId(entry.String())
		if err != nil {
			continue
		}
		platforms, _, err := decodeRow(raw[k])
		if err != nil {
			continue
		}
		idx.byKey[k] = len(idx.entries)
		idx.entries = append(idx.entries, Entry{Version: vid, Resolved: k, Artifacts: platforms})
	}
	return idx, nil
}
