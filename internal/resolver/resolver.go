// Package resolver implements spec §4.3: given a (ToolKind, VersionId,
// Platform) request and an already-fetched Index, find the artifact for the
// current platform and the canonical file name it will be stored under.
package resolver

import (
	"fmt"
	"strings"

	"github.com/zvmhq/zvm/internal/metadata"
	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/zvmerr"
	"github.com/zvmhq/zvm/internal/zversion"
)

// Result is the outcome of a successful resolve.
type Result struct {
	Entry        metadata.Entry
	Artifact     metadata.Artifact
	CanonicalName string
}

// Resolve looks up requested within idx for platform, applying the
// tool-specific platform key convention of spec §4.3 step 3. The canonical
// file name is staged through a pooled PathBuffer rather than a fresh heap
// allocation, per spec §4.1.
func Resolve(p *pool.Context, kind zversion.ToolKind, requested zversion.VersionId, platform zversion.Platform, idx *metadata.Index) (Result, error) {
	entry, ok := idx.Lookup(requested)
	if !ok {
		return Result{}, zvmerr.VersionNotFound.New("%s %s not found in release index", kind, requested)
	}

	key := PlatformKey(kind, requested, platform)
	artifact, ok := entry.Artifacts[key]
	if !ok {
		return Result{}, zvmerr.UnsupportedPlatform.New("%s %s has no artifact for platform key %q", kind, requested, key)
	}

	name, err := boundedArtifactBaseName(p, artifact.Tarball)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Entry:         entry,
		Artifact:      artifact,
		CanonicalName: name,
	}, nil
}

// boundedArtifactBaseName computes ArtifactBaseName through an acquired
// PathBuffer, giving the canonical file name the same PATH_MAX-bounded,
// pre-allocated backing spec §4.1 requires of path-shaped values.
func boundedArtifactBaseName(p *pool.Context, url string) (string, error) {
	buf, err := p.AcquirePathBuffer()
	if err != nil {
		return "", err
	}
	defer buf.Release()
	if err := buf.Set([]byte(ArtifactBaseName(url))); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PlatformKey computes the manifest's platform lookup key, per spec §4.3
// step 3: compiler archives key by "os-arch", with the ARM convention
// "armv7a" — except master builds, which use the bare "arm" arch name; LSP
// archives key by "arch-os".
func PlatformKey(kind zversion.ToolKind, requested zversion.VersionId, platform zversion.Platform) string {
	archStr := platform.Arch.String()
	if platform.Arch == zversion.Arm && kind == zversion.Compiler && !requested.IsMaster() {
		archStr = "armv7a"
	}

	if kind == zversion.LanguageServer {
		return fmt.Sprintf("%s-%s", archStr, platform.OS)
	}
	return fmt.Sprintf("%s-%s", platform.OS, archStr)
}

// ArtifactBaseName strips a URL down to its final path component, the
// canonical file name spec §4.3 step 5 defines.
func ArtifactBaseName(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}
