// minisign.go implements the minisign signature format of spec §4.6: a
// tagged union over two hash conventions (legacy raw-byte signing under
// algorithm "Ed", prehashed Blake2b-512 signing under "ED"), expressed here
// as a Go sum type rather than the inheritance spec §9's Design Notes warns
// against — a two-case switch on PublicKey.Algorithm / Signature.Algorithm.
package integrity

import (
	"bufio"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/zvmhq/zvm/internal/zvmerr"
)

// Algorithm is the minisign two-byte algorithm tag.
type Algorithm [2]byte

var (
	AlgorithmLegacy   = Algorithm{'E', 'd'} // raw bytes signed directly
	AlgorithmPrehash  = Algorithm{'E', 'D'} // Blake2b-512 digest signed
)

func (a Algorithm) String() string { return string(a[:]) }

// PublicKey is a decoded minisign public key: algorithm tag, 8-byte key id,
// and the 32-byte Ed25519 key.
type PublicKey struct {
	Algorithm Algorithm
	KeyID     [8]byte
	Key       ed25519.PublicKey
}

// DecodePublicKey parses the base64 blob shipped as a build-time constant
// (spec §4.6: "base64 of algo[2] ‖ key_id[8] ‖ key[32], 56 chars").
func DecodePublicKey(b64 string) (PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return PublicKey{}, zvmerr.InvalidEncoding.Wrap(err, "decoding public key base64")
	}
	if len(raw) != 2+8+32 {
		return PublicKey{}, zvmerr.InvalidEncoding.New("public key has %d bytes, want 42", len(raw))
	}
	var pk PublicKey
	copy(pk.Algorithm[:], raw[0:2])
	copy(pk.KeyID[:], raw[2:10])
	pk.Key = append(ed25519.PublicKey(nil), raw[10:42]...)
	return pk, nil
}

// Encode serializes a PublicKey back to its base64 form. Round-tripping
// through DecodePublicKey(pk.Encode()) reproduces pk, per the round-trip
// property demanded of the public key type.
func (pk PublicKey) Encode() string {
	raw := make([]byte, 0, 42)
	raw = append(raw, pk.Algorithm[:]...)
	raw = append(raw, pk.KeyID[:]...)
	raw = append(raw, pk.Key...)
	return base64.StdEncoding.EncodeToString(raw)
}

// Signature is a decoded minisign .minisig file: the three-line format of
// spec §4.6.
type Signature struct {
	Algorithm      Algorithm
	KeyID          [8]byte
	Sig            [64]byte
	TrustedComment string
	GlobalSig      [64]byte
}

// DecodeSignature parses the three significant lines of a minisign
// signature file, tolerating an optional "untrusted comment:" prefix line
// before the base64 line, per spec §4.6.
func DecodeSignature(text string) (Signature, error) {
	sc := bufio.NewScanner(strings.NewReader(text))
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "untrusted comment:") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return Signature{}, zvmerr.InvalidEncoding.Wrap(err, "scanning signature file")
	}
	if len(lines) < 3 {
		return Signature{}, zvmerr.InvalidEncoding.New("signature file has %d significant lines, want 3", len(lines))
	}

	sigLine, commentLine, globalLine := lines[0], lines[1], lines[2]

	sigRaw, err := base64.StdEncoding.DecodeString(sigLine)
	if err != nil || len(sigRaw) != 2+8+64 {
		return Signature{}, zvmerr.InvalidEncoding.New("signature line is not a valid 74-byte base64 blob")
	}

	const trustedPrefix = "trusted comment: "
	if !strings.HasPrefix(commentLine, trustedPrefix) {
		return Signature{}, zvmerr.InvalidEncoding.New("second line missing %q prefix", trustedPrefix)
	}
	comment := strings.TrimPrefix(commentLine, trustedPrefix)
	if len(comment) > 1024 {
		return Signature{}, zvmerr.InvalidEncoding.New("trusted comment exceeds 1KB")
	}

	globalRaw, err := base64.StdEncoding.DecodeString(globalLine)
	if err != nil || len(globalRaw) != 64 {
		return Signature{}, zvmerr.InvalidEncoding.New("global signature line is not a valid 64-byte base64 blob")
	}

	var sig Signature
	copy(sig.Algorithm[:], sigRaw[0:2])
	copy(sig.KeyID[:], sigRaw[2:10])
	copy(sig.Sig[:], sigRaw[10:74])
	sig.TrustedComment = comment
	copy(sig.GlobalSig[:], globalRaw)
	return sig, nil
}

// Encode serializes a Signature back to the three-line minisign text form.
// Round-tripping DecodeSignature(sig.Encode()) reproduces sig's three
// lines, per the round-trip property.
func (s Signature) Encode() string {
	sigRaw := make([]byte, 0, 74)
	sigRaw = append(sigRaw, s.Algorithm[:]...)
	sigRaw = append(sigRaw, s.KeyID[:]...)
	sigRaw = append(sigRaw, s.Sig[:]...)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", base64.StdEncoding.EncodeToString(sigRaw))
	fmt.Fprintf(&b, "trusted comment: %s\n", s.TrustedComment)
	fmt.Fprintf(&b, "%s\n", base64.StdEncoding.EncodeToString(s.GlobalSig[:]))
	return b.String()
}

// VerifySignature performs the two checks spec §4.6 requires: the payload
// signature against either the raw artifact bytes or its Blake2b-512
// prehash (selected by Signature.Algorithm), and the global signature over
// sig ‖ trusted_comment.
func VerifySignature(artifact io.Reader, sig Signature, pub PublicKey) error {
	if sig.KeyID != pub.KeyID {
		return zvmerr.KeyIDMismatch.New("signature key id %x does not match public key id %x", sig.KeyID, pub.KeyID)
	}

	payload, err := payloadToVerify(artifact, sig.Algorithm)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub.Key, payload, sig.Sig[:]) {
		return zvmerr.SignatureVerificationFailed.New("artifact signature verification failed")
	}

	globalMsg := append(append([]byte{}, sig.Sig[:]...), []byte(sig.TrustedComment)...)
	if !ed25519.Verify(pub.Key, globalMsg, sig.GlobalSig[:]) {
		return zvmerr.SignatureVerificationFailed.New("global signature verification failed")
	}
	return nil
}

func payloadToVerify(artifact io.Reader, algo Algorithm) ([]byte, error) {
	switch algo {
	case AlgorithmLegacy:
		buf, err := io.ReadAll(artifact)
		if err != nil {
			return nil, zvmerr.IOError.Wrap(err, "reading artifact for legacy signature verification")
		}
		return buf, nil
	case AlgorithmPrehash:
		h, err := blake2b.New512(nil)
		if err != nil {
			return nil, zvmerr.UnsupportedAlgorithm.Wrap(err, "constructing blake2b-512 hasher")
		}
		if _, err := io.Copy(h, artifact); err != nil {
			return nil, zvmerr.IOError.Wrap(err, "prehashing artifact")
		}
		return h.Sum(nil), nil
	default:
		return nil, zvmerr.UnsupportedAlgorithm.New("unsupported minisign algorithm %q", algo)
	}
}
