// install.go implements the install state machine of spec §4.8: IDLE ->
// RESOLVING -> DOWNLOADING (retrying across mirrors on transport/integrity
// errors) -> VERIFYING (trust failure terminal) -> EXTRACTING -> ACTIVATING
// -> DONE.
package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/zvmhq/zvm/internal/archive"
	"github.com/zvmhq/zvm/internal/httpclient"
	"github.com/zvmhq/zvm/internal/integrity"
	"github.com/zvmhq/zvm/internal/metadata"
	"github.com/zvmhq/zvm/internal/mirror"
	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/resolver"
	"github.com/zvmhq/zvm/internal/zvmerr"
	"github.com/zvmhq/zvm/internal/zversion"
)

// State names the install state machine's nodes, for logging and tests.
type State string

const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving"
	StateDownloading State = "downloading"
	StateVerifying   State = "verifying"
	StateExtracting  State = "extracting"
	StateActivating  State = "activating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Request describes one install/use invocation.
type Request struct {
	Tool          zversion.ToolKind
	Version       zversion.VersionId
	Platform      zversion.Platform
	BinaryName    string // executable name to check/verify inside the extracted tree
	SignaturePubKey *integrity.PublicKey // nil to skip minisign verification (LSP artifacts)
}

// Progress reports state transitions and byte-level progress; either field
// may be invoked with a zero value to signal only the other.
type Progress struct {
	OnState    func(State)
	OnBytes    func(downloaded, total int64)
}

// Installer runs the install pipeline against one Layout and pool Context.
type Installer struct {
	Pool    *pool.Context
	Layout  Layout
	HTTP    *httpclient.Client
	Mirrors *mirror.List
}

// Install runs the full state machine described in spec §4.8. On success,
// current/<tool> points at the newly-installed version.
func (in *Installer) Install(ctx context.Context, req Request, idx *metadata.Index, prog Progress) error {
	setState := func(s State) {
		if prog.OnState != nil {
			prog.OnState(s)
		}
	}

	setState(StateResolving)
	if err := in.Layout.EnsureDirs(req.Tool); err != nil {
		return err
	}
	if in.Layout.IsComplete(req.Tool, req.Version, req.BinaryName) {
		setState(StateActivating)
		if err := in.Layout.WriteActiveVersion(req.Tool, req.Version); err != nil {
			return err
		}
		if err := in.Layout.SetActive(req.Tool, req.Version); err != nil {
			return err
		}
		setState(StateDone)
		return in.finishActivation(req)
	}

	result, err := resolver.Resolve(in.Pool, req.Tool, req.Version, req.Platform, idx)
	if err != nil {
		return err
	}

	setState(StateDownloading)
	storePath := filepath.Join(in.Layout.StoreDir(), result.CanonicalName)
	if err := in.downloadAndVerify(ctx, result, storePath, prog); err != nil {
		setState(StateFailed)
		return err
	}

	setState(StateVerifying)
	if req.SignaturePubKey != nil {
		if err := in.verifySignature(ctx, storePath, result, *req.SignaturePubKey); err != nil {
			os.Remove(storePath)
			setState(StateFailed)
			return err
		}
	}

	setState(StateExtracting)
	destDir := in.Layout.VersionDir(req.Tool, req.Version)
	if err := archive.Extract(in.Pool, storePath, result.CanonicalName, destDir, req.Tool.StripArchiveRoot()); err != nil {
		setState(StateFailed)
		return err
	}

	setState(StateActivating)
	if err := in.Layout.WriteActiveVersion(req.Tool, req.Version); err != nil {
		return err
	}
	if err := in.Layout.SetActive(req.Tool, req.Version); err != nil {
		return err
	}

	setState(StateDone)
	return in.finishActivation(req)
}

// finishActivation runs the non-fatal post-install check: it confirms that
// current/<tool>/<binary> exists and logs a warning, not an error, if it does
// not. It does not run the binary and does not compare the version the
// binary reports with the requested one.
func (in *Installer) finishActivation(req Request) error {
	bin := filepath.Join(in.Layout.CurrentLink(req.Tool), req.BinaryName)
	if _, err := os.Stat(bin); err != nil {
		in.Pool.Log.Warn().Err(err).Str("binary", bin).Msg("post-install binary check failed")
	}
	return nil
}

// downloadAndVerify runs spec §4.8 steps 3-4: try each mirror in order,
// verify size and digest, and on a verification failure delete the cached
// file and let the mirror loop advance.
func (in *Installer) downloadAndVerify(ctx context.Context, result resolver.Result, storePath string, prog Progress) error {
	partPath := storePath + ".part"
	var onProgress func(n int64)
	if prog.OnBytes != nil {
		onProgress = func(n int64) { prog.OnBytes(n, result.Artifact.Size) }
	}
	return mirror.Attempt(in.Mirrors, func(m mirror.Mirror, index int, isPrimary bool) error {
		url, err := mirror.CandidateURL(result.Artifact.Tarball, m, isPrimary)
		if err != nil {
			return err
		}

		written, err := in.HTTP.DownloadFile(ctx, url, nil, partPath, onProgress)
		if err != nil {
			os.Remove(partPath)
			return err
		}
		if err := integrity.VerifySize(written, true, result.Artifact.Size); err != nil {
			os.Remove(partPath)
			return err
		}

		if err := verifyDigestOfFile(partPath, result.Artifact.Shasum); err != nil {
			os.Remove(partPath)
			return err
		}

		if err := os.Rename(partPath, storePath); err != nil {
			return zvmerr.IOError.Wrap(err, "renaming %s to %s", partPath, storePath)
		}
		return nil
	})
}

func verifyDigestOfFile(path, expectedHex string) error {
	f, err := os.Open(path)
	if err != nil {
		return zvmerr.IOError.Wrap(err, "opening %s for digest verification", path)
	}
	defer f.Close()
	return integrity.VerifyDigest(f, expectedHex)
}

func (in *Installer) verifySignature(ctx context.Context, storePath string, result resolver.Result, pub integrity.PublicKey) error {
	sigURL := result.Artifact.Tarball + ".minisig"
	op, err := in.Pool.AcquireHTTPOperation()
	if err != nil {
		return err
	}
	defer op.Release()

	sigBody, err := in.HTTP.Fetch(ctx, sigURL, nil, op, nil)
	if err != nil {
		return err
	}
	sig, err := integrity.DecodeSignature(string(sigBody))
	if err != nil {
		return err
	}

	f, err := os.Open(storePath)
	if err != nil {
		return zvmerr.IOError.Wrap(err, "opening %s for signature verification", storePath)
	}
	defer f.Close()
	return integrity.VerifySignature(f, sig, pub)
}
