// Package mirror implements the mirror strategy of spec §4.5: an ordered
// list of (base_url, label) pairs, with ZVM_MIRROR selecting a starting
// index, and a retry loop that only advances on errors the rest of the
// pipeline marks retryable.
package mirror

import (
	_ "embed"
	"net/url"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/zvmhq/zvm/internal/zvmerr"
)

//go:embed mirrors.toml
var defaultListTOML string

// Mirror is one candidate host for artifact downloads.
type Mirror struct {
	Label   string `toml:"label"`
	BaseURL string `toml:"base_url"`
}

type mirrorDoc struct {
	Mirrors []Mirror `toml:"mirror"`
}

// List is the ordered mirror list for one process.
type List struct {
	mirrors []Mirror
	start   int
}

// NewList builds a List from an explicit mirror set, bypassing the embedded
// mirrors.toml document. Exported chiefly so install-pipeline tests can
// point every mirror at an httptest.Server instead of real hosts.
func NewList(mirrors []Mirror) *List {
	return &List{mirrors: mirrors}
}

// DefaultList decodes the embedded mirrors.toml document, per spec's
// configuration-as-data design for the mirror set.
func DefaultList() (*List, error) {
	var doc mirrorDoc
	if _, err := toml.Decode(defaultListTOML, &doc); err != nil {
		return nil, zvmerr.UsageError.Wrap(err, "decoding embedded mirror list")
	}
	if len(doc.Mirrors) == 0 {
		return nil, zvmerr.UsageError.New("embedded mirror list is empty")
	}
	return &List{mirrors: doc.Mirrors}, nil
}

// WithEnvSelection applies ZVM_MIRROR, a 0-based index into the list that
// picks which mirror to try first; the remainder of the list still follows
// in order after it, wrapping around to index 0.
func (l *List) WithEnvSelection(zvmMirrorEnv string) (*List, error) {
	if zvmMirrorEnv == "" {
		return l, nil
	}
	idx, err := strconv.Atoi(zvmMirrorEnv)
	if err != nil || idx < 0 || idx >= len(l.mirrors) {
		return nil, zvmerr.UsageError.New("ZVM_MIRROR=%q is not a valid index into %d mirrors", zvmMirrorEnv, len(l.mirrors))
	}
	return &List{mirrors: l.mirrors, start: idx}, nil
}

// Ordered returns the mirrors in the order an install attempt should try
// them: starting at the selected index and wrapping around.
func (l *List) Ordered() []Mirror {
	out := make([]Mirror, 0, len(l.mirrors))
	for i := 0; i < len(l.mirrors); i++ {
		out = append(out, l.mirrors[(l.start+i)%len(l.mirrors)])
	}
	return out
}

// CandidateURL builds the URL to fetch manifestURL from when trying m, per
// spec §4.5 step 1: the primary host's absolute URL is used as-is, and for
// every other mirror the host portion is replaced while path and filename
// are preserved.
func CandidateURL(manifestURL string, m Mirror, isPrimary bool) (string, error) {
	if isPrimary {
		return manifestURL, nil
	}
	u, err := url.Parse(manifestURL)
	if err != nil {
		return "", zvmerr.UsageError.Wrap(err, "parsing manifest URL %q", manifestURL)
	}
	base, err := url.Parse(m.BaseURL)
	if err != nil {
		return "", zvmerr.UsageError.Wrap(err, "parsing mirror base URL %q", m.BaseURL)
	}
	u.Scheme = base.Scheme
	u.Host = base.Host
	return u.String(), nil
}

// Attempt runs fn against each mirror in order, advancing only when err
// satisfies zvmerr.Retryable (spec §4.5 steps 2-4): a trust-category error
// is returned immediately without trying further mirrors.
func Attempt(l *List, fn func(m Mirror, index int, isPrimary bool) error) error {
	ordered := l.Ordered()
	var lastErr error
	for i, m := range ordered {
		err := fn(m, i, m.Label == "primary")
		if err == nil {
			return nil
		}
		if !zvmerr.Retryable(err) {
			return err
		}
		lastErr = err
	}
	return zvmerr.DownFailed.Wrap(lastErr, "exhausted %d mirrors", len(ordered))
}
