package zversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionId(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"0.13.0", false},
		{"0.13.0-dev.123+abc", false},
		{"master", false},
		{"", true},
		{"not-a-version", true},
		{"99999999999999999999.0.0", true},
		{"this-version-id-is-definitely-longer-than-32-bytes", true},
	}
	for _, tC := range cases {
		t.Run(tC.in, func(t *testing.T) {
			_, err := ParseVersionId(tC.in)
			if tC.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVersionIdCompareIsBytewise(t *testing.T) {
	a, err := ParseVersionId("0.9.0")
	require.NoError(t, err)
	b, err := ParseVersionId("0.13.0")
	require.NoError(t, err)

	// Bytewise comparison, not semver ordering: "0.9.0" > "0.13.0" because
	// '9' > '1' at the first differing byte.
	assert.Equal(t, 1, a.Compare(b))
	assert.Equal(t, -1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestVersionIdJSONRoundTrip(t *testing.T) {
	v, err := ParseVersionId("0.13.0")
	require.NoError(t, err)

	b, err := v.MarshalJSON()
	require.NoError(t, err)

	var out VersionId
	require.NoError(t, out.UnmarshalJSON(b))
	assert.Equal(t, v, out)
}

func TestToolKindConventions(t *testing.T) {
	assert.True(t, Compiler.StripArchiveRoot())
	assert.False(t, LanguageServer.StripArchiveRoot())
	assert.Equal(t, "version", Compiler.VersionCheckArgv())
	assert.Equal(t, "--version", LanguageServer.VersionCheckArgv())
}

func TestPlatformString(t *testing.T) {
	p := Platform{OS: Linux, Arch: X86_64}
	assert.Equal(t, "linux-x86_64", p.String())
}
