// Package zversion implements the ToolKind, VersionId, and Platform types of
// spec §3: the small, fixed-shape data model the rest of the install
// pipeline is built on.
package zversion

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/blang/semver/v4"

	"github.com/zvmhq/zvm/internal/zvmerr"
)

// ToolKind is the tagged variant spec §3 describes: it selects the manifest
// URL, the active-link name, and whether the archive's top-level directory
// must be stripped during extraction.
type ToolKind int

const (
	Compiler ToolKind = iota
	LanguageServer
)

func (k ToolKind) String() string {
	switch k {
	case Compiler:
		return "compiler"
	case LanguageServer:
		return "lsp"
	default:
		return "unknown"
	}
}

// StripArchiveRoot reports whether extraction should strip the archive's
// single top-level directory, per spec §4.7: compiler archives contain
// "<tool>-<version>/"; LSP archives do not.
func (k ToolKind) StripArchiveRoot() bool { return k == Compiler }

// VersionCheckArgv returns the argv convention the managed tool uses to
// print its own version, per spec §4.8 step 9 and the Open Question in §9:
// this is a contract of the managed tools, not of zvm, and the two kinds
// genuinely differ.
func (k ToolKind) VersionCheckArgv() string {
	if k == Compiler {
		return "version"
	}
	return "--version"
}

// MaxVersionIDLength bounds VersionId per spec §3.
const MaxVersionIDLength = 32

var semverSuffixedRe = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+(-[0-9A-Za-z.+-]+)?$`)

// VersionId is a bounded-length string matching either a semantic version
// N.N.N[-suffix] or the literal "master". Comparisons are bytewise, per
// spec §3 — not semver-aware — but construction validates the shape using
// blang/semver so a malformed request fails fast instead of silently
// resolving to the wrong artifact.
type VersionId struct {
	value string
}

// Master is the literal VersionId naming the rolling development release.
var Master = VersionId{value: "master"}

// ParseVersionId validates and constructs a VersionId from user input.
func ParseVersionId(s string) (VersionId, error) {
	if len(s) == 0 || len(s) > MaxVersionIDLength {
		return VersionId{}, zvmerr.VersionNotFound.New("version id must be 1-%d bytes, got %d", MaxVersionIDLength, len(s))
	}
	if s == "master" {
		return VersionId{value: s}, nil
	}
	if !semverSuffixedRe.MatchString(s) {
		return VersionId{}, zvmerr.VersionNotFound.New("%q is not a valid version (expected N.N.N[-suffix] or \"master\")", s)
	}
	// blang/semver additionally validates numeric overflow and suffix
	// grammar beyond what the regexp captures.
	if _, err := semver.Parse(normalizeForSemver(s)); err != nil {
		return VersionId{}, zvmerr.VersionNotFound.New("%q is not a valid semantic version: %v", s, err)
	}
	return VersionId{value: s}, nil
}

func normalizeForSemver(s string) string { return s }

// IsMaster reports whether this VersionId is the literal "master".
func (v VersionId) IsMaster() bool { return v.value == "master" }

// String returns the underlying version string.
func (v VersionId) String() string { return v.value }

// Compare performs the bytewise comparison spec §3 requires: not semantic
// version ordering, a plain strings.Compare over the two values.
func (v VersionId) Compare(other VersionId) int {
	switch {
	case v.value < other.value:
		return -1
	case v.value > other.value:
		return 1
	default:
		return 0
	}
}

func (v VersionId) MarshalJSON() ([]byte, error) { return json.Marshal(v.value) }

func (v *VersionId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseVersionId(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// OS is the operating-system half of a Platform tuple.
type OS int

const (
	Linux OS = iota
	MacOS
	Windows
)

func (o OS) String() string {
	switch o {
	case Linux:
		return "linux"
	case MacOS:
		return "macos"
	case Windows:
		return "windows"
	default:
		return "unknown"
	}
}

// Arch is the architecture half of a Platform tuple.
type Arch int

const (
	X86_64 Arch = iota
	Aarch64
	Arm
	Riscv64
	Powerpc64le
	Powerpc
)

func (a Arch) String() string {
	switch a {
	case X86_64:
		return "x86_64"
	case Aarch64:
		return "aarch64"
	case Arm:
		return "arm"
	case Riscv64:
		return "riscv64"
	case Powerpc64le:
		return "powerpc64le"
	case Powerpc:
		return "powerpc"
	default:
		return "unknown"
	}
}

// Platform is the (os, arch) pair spec §3 defines. String gives a generic
// "os-arch" form only; it is not the manifest lookup key, because the three
// key conventions (compiler, compiler-master, lsp) differ. Manifest keys
// come from PlatformKey in resolver.go.
type Platform struct {
	OS   OS
	Arch Arch
}

func (p Platform) String() string { return fmt.Sprintf("%s-%s", p.OS, p.Arch) }
