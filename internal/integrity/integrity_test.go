package integrity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyDigestSuccess(t *testing.T) {
	payload := []byte("hello, zig")
	sum := sha256.Sum256(payload)
	require.NoError(t, VerifyDigest(bytes.NewReader(payload), hex.EncodeToString(sum[:])))
}

func TestVerifyDigestMismatch(t *testing.T) {
	payload := []byte("hello, zig")
	wrong := sha256.Sum256([]byte("tampered"))
	err := VerifyDigest(bytes.NewReader(payload), hex.EncodeToString(wrong[:]))
	assert.Error(t, err)
}

func TestVerifySizeMatches(t *testing.T) {
	assert.NoError(t, VerifySize(100, true, 100))
}

func TestVerifySizeMismatch(t *testing.T) {
	err := VerifySize(90, true, 100)
	assert.Error(t, err)
}

func TestVerifySizeMissingObserved(t *testing.T) {
	err := VerifySize(0, false, 100)
	assert.Error(t, err)
}

func TestPublicKeyRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	pk := PublicKey{Algorithm: AlgorithmLegacy, Key: pub}
	copy(pk.KeyID[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	decoded, err := DecodePublicKey(pk.Encode())
	require.NoError(t, err)
	assert.Equal(t, pk.Algorithm, decoded.Algorithm)
	assert.Equal(t, pk.KeyID, decoded.KeyID)
	assert.True(t, pub.Equal(decoded.Key))
}

func TestSignatureRoundTrip(t *testing.T) {
	sig := Signature{
		Algorithm:      AlgorithmPrehash,
		TrustedComment: "timestamp:1700000000",
	}
	copy(sig.KeyID[:], []byte{9, 9, 9, 9, 9, 9, 9, 9})
	copy(sig.Sig[:], bytes.Repeat([]byte{0xAB}, 64))
	copy(sig.GlobalSig[:], bytes.Repeat([]byte{0xCD}, 64))

	text := sig.Encode()
	decoded, err := DecodeSignature(text)
	require.NoError(t, err)
	assert.Equal(t, sig, decoded)
}

func TestDecodeSignatureToleratesUntrustedCommentPrefix(t *testing.T) {
	sig := Signature{Algorithm: AlgorithmLegacy, TrustedComment: "x"}
	withPrefix := "untrusted comment: signature from minisign\n" + sig.Encode()
	decoded, err := DecodeSignature(withPrefix)
	require.NoError(t, err)
	assert.Equal(t, sig.Algorithm, decoded.Algorithm)
}

func TestVerifySignatureLegacyAndPrehash(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	payload := []byte("zig-linux-x86_64-0.13.0.tar.xz contents")

	for _, algo := range []Algorithm{AlgorithmLegacy, AlgorithmPrehash} {
		t.Run(algo.String(), func(t *testing.T) {
			toSign, err := payloadToVerify(bytes.NewReader(payload), algo)
			require.NoError(t, err)

			sig := Signature{Algorithm: algo, TrustedComment: "trusted"}
			copy(sig.Sig[:], ed25519.Sign(priv, toSign))
			globalMsg := append(append([]byte{}, sig.Sig[:]...), []byte(sig.TrustedComment)...)
			copy(sig.GlobalSig[:], ed25519.Sign(priv, globalMsg))

			pk := PublicKey{Algorithm: algo, Key: pub}

			err = VerifySignature(bytes.NewReader(payload), sig, pk)
			assert.NoError(t, err)
		})
	}
}

func TestVerifySignatureKeyIDMismatch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	payload := []byte("data")

	sig := Signature{Algorithm: AlgorithmLegacy}
	copy(sig.KeyID[:], []byte{1, 1, 1, 1, 1, 1, 1, 1})
	copy(sig.Sig[:], ed25519.Sign(priv, payload))

	pk := PublicKey{Algorithm: AlgorithmLegacy, Key: pub}
	copy(pk.KeyID[:], []byte{2, 2, 2, 2, 2, 2, 2, 2})

	err = VerifySignature(bytes.NewReader(payload), sig, pk)
	assert.Error(t, err)
}

func TestDecodePublicKeyRejectsBadLength(t *testing.T) {
	_, err := DecodePublicKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}

func TestDecodeSignatureRejectsMissingTrustedPrefix(t *testing.T) {
	bad := strings.Join([]string{
		base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0}, 74)),
		"not the trusted comment line",
		base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0}, 64)),
	}, "\n")
	_, err := DecodeSignature(bad)
	assert.Error(t, err)
}
