// Package integrity implements spec §4.6: streaming SHA-256 verification,
// declared-size verification, and minisign signature verification for
// compiler artifacts.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"

	"github.com/zvmhq/zvm/internal/zvmerr"
)

// VerifyDigest streams r through SHA-256 and compares the result
// constant-time against expectedHex, per spec §4.6.
func VerifyDigest(r io.Reader, expectedHex string) error {
	expected, err := hex.DecodeString(expectedHex)
	if err != nil || len(expected) != sha256.Size {
		return zvmerr.HashMismatch.New("manifest digest %q is not a valid SHA-256 hex string", expectedHex)
	}

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return zvmerr.IOError.Wrap(err, "hashing artifact")
	}
	got := h.Sum(nil)

	if subtle.ConstantTimeCompare(got, expected) != 1 {
		return zvmerr.HashMismatch.New("SHA-256 mismatch: got %x, want %s", got, expectedHex)
	}
	return nil
}

// VerifySize compares an observed size against an expected size, per
// spec §4.6. It is the single chokepoint both httpclient and the install
// pipeline route their size checks through: httpclient passes the bytes
// written as observed and the Content-Length header as expected; the install
// pipeline passes the bytes written as observed and the manifest's declared
// size as expected.
func VerifySize(observed int64, hasObserved bool, expected int64) error {
	if !hasObserved {
		return zvmerr.IncorrectSize.New("no observed size to verify against expected size %d", expected)
	}
	if observed != expected {
		return zvmerr.IncorrectSize.New("observed size %d does not match expected size %d", observed, expected)
	}
	return nil
}
