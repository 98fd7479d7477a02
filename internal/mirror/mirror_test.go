package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmhq/zvm/internal/zvmerr"
)

func TestDefaultListOrdering(t *testing.T) {
	l, err := DefaultList()
	require.NoError(t, err)
	ordered := l.Ordered()
	require.NotEmpty(t, ordered)
	assert.Equal(t, "primary", ordered[0].Label)
}

func TestWithEnvSelectionRotatesStart(t *testing.T) {
	l, err := DefaultList()
	require.NoError(t, err)

	selected, err := l.WithEnvSelection("1")
	require.NoError(t, err)
	ordered := selected.Ordered()
	assert.Equal(t, l.Ordered()[1].Label, ordered[0].Label)
	assert.Len(t, ordered, len(l.Ordered()))
}

func TestWithEnvSelectionRejectsOutOfRange(t *testing.T) {
	l, err := DefaultList()
	require.NoError(t, err)
	_, err = l.WithEnvSelection("999")
	assert.Error(t, err)
}

func TestCandidateURLReplacesHostForNonPrimary(t *testing.T) {
	m := Mirror{Label: "community-east", BaseURL: "https://mirror.example"}
	url, err := CandidateURL("https://ziglang.org/download/0.13.0/zig.tar.xz", m, false)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/download/0.13.0/zig.tar.xz", url)
}

func TestCandidateURLPrimaryUnchanged(t *testing.T) {
	url, err := CandidateURL("https://ziglang.org/download/0.13.0/zig.tar.xz", Mirror{Label: "primary"}, true)
	require.NoError(t, err)
	assert.Equal(t, "https://ziglang.org/download/0.13.0/zig.tar.xz", url)
}

func TestAttemptAdvancesOnRetryableError(t *testing.T) {
	l, err := DefaultList()
	require.NoError(t, err)

	var tried []string
	err = Attempt(l, func(m Mirror, index int, isPrimary bool) error {
		tried = append(tried, m.Label)
		if len(tried) < len(l.Ordered()) {
			return zvmerr.HashMismatch.New("bad hash")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Len(t, tried, len(l.Ordered()))
}

func TestAttemptStopsImmediatelyOnTrustError(t *testing.T) {
	l, err := DefaultList()
	require.NoError(t, err)

	calls := 0
	err = Attempt(l, func(m Mirror, index int, isPrimary bool) error {
		calls++
		return zvmerr.SignatureVerificationFailed.New("bad signature")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
