// Package zvmerr defines the error taxonomy shared across zvm's install
// pipeline. Each category is an errorx.Type so call sites can branch on
// errorx.IsOfType instead of string matching, and every error that crosses a
// package boundary carries a stable kind usable in --json output.
package zvmerr

import "github.com/joomcode/errorx"

var (
	// Input errors: the caller asked for something that doesn't exist.
	Input          = errorx.NewNamespace("input")
	VersionNotFound = errorx.NewType(Input, "version_not_found")
	UnsupportedPlatform = errorx.NewType(Input, "unsupported_platform")
	UsageError = errorx.NewType(Input, "usage_error")

	// Resource errors: the static pool or filesystem paths are exhausted.
	Resource       = errorx.NewNamespace("resource")
	PoolExhausted  = errorx.NewType(Resource, "pool_exhausted")
	BufferTooSmall = errorx.NewType(Resource, "buffer_too_small")
	PathTooLong    = errorx.NewType(Resource, "path_too_long")
	HomeNotFound   = errorx.NewType(Resource, "home_not_found")

	// Transport errors: all but ResponseTooLarge are recoverable by trying
	// the next mirror (see Retryable).
	Transport          = errorx.NewNamespace("transport")
	HTTPRequestFailed  = errorx.NewType(Transport, "http_request_failed")
	ResponseTooLarge   = errorx.NewType(Transport, "response_too_large")
	DownFailed         = errorx.NewType(Transport, "down_failed")
	IncorrectSize      = errorx.NewType(Transport, "incorrect_size")

	// Integrity errors: also recoverable by trying the next mirror.
	Integrity     = errorx.NewNamespace("integrity")
	HashMismatch  = errorx.NewType(Integrity, "hash_mismatch")

	// Trust errors: never retried, abort the install immediately.
	Trust                       = errorx.NewNamespace("trust")
	SignatureVerificationFailed = errorx.NewType(Trust, "signature_verification_failed")
	UnsupportedAlgorithm        = errorx.NewType(Trust, "unsupported_algorithm")
	InvalidEncoding             = errorx.NewType(Trust, "invalid_encoding")
	KeyIDMismatch               = errorx.NewType(Trust, "key_id_mismatch")

	// Archive errors.
	Archive                 = errorx.NewNamespace("archive")
	UnsupportedArchiveFormat = errorx.NewType(Archive, "unsupported_archive_format")
	ExtractFailed           = errorx.NewType(Archive, "extract_failed")
	PathEscape              = errorx.NewType(Archive, "path_escape")

	// Filesystem errors.
	Filesystem       = errorx.NewNamespace("filesystem")
	PermissionDenied = errorx.NewType(Filesystem, "permission_denied")
	IOError          = errorx.NewType(Filesystem, "io_error")
)

// Retryable reports whether a mirror strategy should advance to the next
// mirror after observing err, per spec §4.5: HTTPRequestFailed,
// DownFailed, IncorrectSize and HashMismatch advance; every other error,
// including ResponseTooLarge and all trust errors, does not.
func Retryable(err error) bool {
	switch {
	case errorx.IsOfType(err, HTTPRequestFailed),
		errorx.IsOfType(err, HashMismatch),
		errorx.IsOfType(err, IncorrectSize),
		errorx.IsOfType(err, DownFailed):
		return true
	default:
		return false
	}
}

// Kind returns the stable, machine-readable error kind used by the --json
// output contract ({"error": "<kind>", ...}), or "internal_error" if err was
// not constructed through this package.
func Kind(err error) string {
	e := errorx.Cast(err)
	if e == nil || e.Type() == nil {
		return "internal_error"
	}
	return e.Type().FullName()
}
