package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/zvmhq/zvm/internal/httpclient"
	"github.com/zvmhq/zvm/internal/integrity"
	"github.com/zvmhq/zvm/internal/metadata"
	"github.com/zvmhq/zvm/internal/mirror"
	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/store"
	"github.com/zvmhq/zvm/internal/zvmerr"
	"github.com/zvmhq/zvm/internal/zversion"
)

// Version identifies the build of zvm; set by CI via -ldflags.
var Version = "dev"

const defaultHelp = `zvm manages compiler and language server toolchain versions

Usage:

  zvm <command> [options]

The commands are:

  install       install a version
  use           switch the active version
  remove        delete an installed version
  list          enumerate installed versions
  list-remote   fetch and print available remote versions
  current       show the active version
  clean         empty the download cache
  env           print a PATH-setup snippet for your shell
  version       show zvm's own version
`

const compilerIndexURL = "https://ziglang.org/download/index.json"
const lspIndexURL = "https://releases.zigtools.org/zls/index.json"

// publicKeyB64 is the shipped minisign public key used to verify compiler
// artifacts, per spec §4.6 and §6 ("a build-time constant").
const publicKeyB64 = "RWRGiCkK3UDQeVZIL4V8e1CmNVhpvg6xgl1A2ur_DO32FFCoGHI5EBdR"

func run(args []string) (int, error) {
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).With().Timestamp().Logger()

	switch arg {
	case "", "help", "--help", "-h":
		fmt.Print(defaultHelp)
		return 2, nil
	case "version", "--version":
		fmt.Printf("zvm version: %s\n", Version)
		return 0, nil
	case "install":
		return runInstall(args[1:], log)
	case "use":
		return runUse(args[1:], log)
	case "remove":
		return runRemove(args[1:], log)
	case "list":
		return runList(args[1:], log)
	case "list-remote":
		return runListRemote(args[1:], log)
	case "current":
		return runCurrent(args[1:], log)
	case "clean":
		return runClean(args[1:], log)
	case "env":
		return runEnv(args[1:], log)
	default:
		fmt.Printf("zvm %s: unknown command\n", arg)
		return 2, nil
	}
}

func newContext(log zerolog.Logger) (*pool.Context, int, error) {
	p, err := pool.New(log)
	if err != nil {
		return nil, 1, err
	}
	return p, 0, nil
}

func toolFromFlag(zls bool) zversion.ToolKind {
	if zls {
		return zversion.LanguageServer
	}
	return zversion.Compiler
}

func binaryName(tool zversion.ToolKind) string {
	name := "zig"
	if tool == zversion.LanguageServer {
		name = "zls"
	}
	if hostOS() == zversion.Windows {
		return name + ".exe"
	}
	return name
}

func buildInstaller(p *pool.Context) (*store.Installer, error) {
	list, err := mirror.DefaultList()
	if err != nil {
		return nil, err
	}
	list, err = list.WithEnvSelection(os.Getenv("ZVM_MIRROR"))
	if err != nil {
		return nil, err
	}
	return &store.Installer{
		Pool:    p,
		Layout:  store.NewLayout(p),
		HTTP:    httpclient.New(),
		Mirrors: list,
	}, nil
}

func fetchIndex(ctx context.Context, p *pool.Context, httpc *httpclient.Client, tool zversion.ToolKind) (*metadata.Index, error) {
	url := compilerIndexURL
	if tool == zversion.LanguageServer {
		url = lspIndexURL
	}

	op, err := p.AcquireHTTPOperation()
	if err != nil {
		return nil, err
	}
	defer op.Release()
	gzipScratch, err := p.AcquireHTTPOperation()
	if err != nil {
		return nil, err
	}
	defer gzipScratch.Release()

	body, err := httpc.FetchJSON(ctx, url, nil, op, gzipScratch)
	if err != nil {
		return nil, err
	}
	if tool == zversion.LanguageServer {
		return metadata.ParseLSPIndex(p, body)
	}
	return metadata.ParseCompilerIndex(p, body)
}

func currentPlatform() zversion.Platform {
	return zversion.Platform{OS: hostOS(), Arch: hostArch()}
}

func runInstall(args []string, log zerolog.Logger) (int, error) {
	fs := pflag.NewFlagSet("install", pflag.ContinueOnError)
	zls := fs.Bool("zls", false, "install the language server instead of the compiler")
	jsonOut := fs.Bool("json", false, "emit machine-readable JSON on error")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}
	if fs.NArg() < 1 {
		return usageErr(*jsonOut, "install: a version argument is required")
	}

	p, code, err := newContext(log)
	if err != nil {
		return reportErr(*jsonOut, err, code)
	}

	tool := toolFromFlag(*zls)
	vid, err := zversion.ParseVersionId(fs.Arg(0))
	if err != nil {
		return reportErr(*jsonOut, err, 2)
	}

	httpc := httpclient.New()
	ctx := context.Background()
	idx, err := fetchIndex(ctx, p, httpc, tool)
	if err != nil {
		return reportErr(*jsonOut, err, 1)
	}

	installer, err := buildInstaller(p)
	if err != nil {
		return reportErr(*jsonOut, err, 1)
	}

	layout := installer.Layout
	lock, err := layout.Lock()
	if err != nil {
		return reportErr(*jsonOut, err, 1)
	}
	defer lock.Unlock()

	var pub *integrity.PublicKey
	if tool == zversion.Compiler {
		decoded, err := integrity.DecodePublicKey(publicKeyB64)
		if err != nil {
			return reportErr(*jsonOut, err, 1)
		}
		pub = &decoded
	}

	req := store.Request{
		Tool:            tool,
		Version:         vid,
		Platform:        currentPlatform(),
		BinaryName:      binaryName(tool),
		SignaturePubKey: pub,
	}

	err = installer.Install(ctx, req, idx, store.Progress{
		OnState: func(s store.State) { log.Info().Str("state", string(s)).Msg("install") },
	})
	if err != nil {
		return reportErr(*jsonOut, err, 1)
	}
	return 0, nil
}

func runUse(args []string, log zerolog.Logger) (int, error) {
	fs := pflag.NewFlagSet("use", pflag.ContinueOnError)
	zls := fs.Bool("zls", false, "switch the language server instead of the compiler")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}
	if fs.NArg() < 1 {
		return usageErr(false, "use: a version argument is required")
	}

	p, code, err := newContext(log)
	if err != nil {
		return reportErr(false, err, code)
	}
	tool := toolFromFlag(*zls)
	vid, err := zversion.ParseVersionId(fs.Arg(0))
	if err != nil {
		return reportErr(false, err, 2)
	}

	layout := store.NewLayout(p)
	if !layout.IsComplete(tool, vid, binaryName(tool)) {
		return reportErr(false, zvmerr.VersionNotFound.New("%s %s is not installed", tool, vid), 1)
	}
	if err := layout.WriteActiveVersion(tool, vid); err != nil {
		return reportErr(false, err, 1)
	}
	if err := layout.SetActive(tool, vid); err != nil {
		return reportErr(false, err, 1)
	}
	return 0, nil
}

func runRemove(args []string, log zerolog.Logger) (int, error) {
	fs := pflag.NewFlagSet("remove", pflag.ContinueOnError)
	zls := fs.Bool("zls", false, "remove the language server instead of the compiler")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}
	if fs.NArg() < 1 {
		return usageErr(false, "remove: a version argument is required")
	}

	p, code, err := newContext(log)
	if err != nil {
		return reportErr(false, err, code)
	}
	tool := toolFromFlag(*zls)
	vid, err := zversion.ParseVersionId(fs.Arg(0))
	if err != nil {
		return reportErr(false, err, 2)
	}

	layout := store.NewLayout(p)
	if err := layout.Remove(tool, vid); err != nil {
		return reportErr(false, err, 1)
	}
	return 0, nil
}

func runList(args []string, log zerolog.Logger) (int, error) {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	zls := fs.Bool("zls", false, "list the language server instead of the compiler")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}

	p, code, err := newContext(log)
	if err != nil {
		return reportErr(false, err, code)
	}
	tool := toolFromFlag(*zls)
	layout := store.NewLayout(p)
	versions, err := layout.List(tool)
	if err != nil {
		return reportErr(false, err, 1)
	}
	for _, v := range versions {
		fmt.Println(v.String())
	}
	return 0, nil
}

func runListRemote(args []string, log zerolog.Logger) (int, error) {
	fs := pflag.NewFlagSet("list-remote", pflag.ContinueOnError)
	zls := fs.Bool("zls", false, "list remote language server versions instead of the compiler")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}

	p, code, err := newContext(log)
	if err != nil {
		return reportErr(false, err, code)
	}
	tool := toolFromFlag(*zls)
	idx, err := fetchIndex(context.Background(), p, httpclient.New(), tool)
	if err != nil {
		return reportErr(false, err, 1)
	}
	for _, v := range idx.Versions() {
		fmt.Println(v.String())
	}
	return 0, nil
}

func runCurrent(args []string, log zerolog.Logger) (int, error) {
	p, code, err := newContext(log)
	if err != nil {
		return reportErr(false, err, code)
	}
	layout := store.NewLayout(p)
	for _, tool := range []zversion.ToolKind{zversion.Compiler, zversion.LanguageServer} {
		v, ok, err := layout.ReadActiveVersion(tool)
		if err != nil {
			return reportErr(false, err, 1)
		}
		if ok {
			fmt.Printf("%s: %s\n", tool, v.String())
		}
	}
	return 0, nil
}

func runClean(args []string, log zerolog.Logger) (int, error) {
	fs := pflag.NewFlagSet("clean", pflag.ContinueOnError)
	all := fs.Bool("all", false, "also remove every installed version except the active one")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}

	p, code, err := newContext(log)
	if err != nil {
		return reportErr(false, err, code)
	}
	layout := store.NewLayout(p)
	if err := layout.Clean(*all); err != nil {
		return reportErr(false, err, 1)
	}
	return 0, nil
}

func runEnv(args []string, log zerolog.Logger) (int, error) {
	fs := pflag.NewFlagSet("env", pflag.ContinueOnError)
	shell := fs.String("shell", os.Getenv("SHELL"), "target shell (bash, zsh, fish, powershell)")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}

	p, code, err := newContext(log)
	if err != nil {
		return reportErr(false, err, code)
	}
	binDir := p.GetZvmHome() + "/current"

	switch {
	case strings.Contains(*shell, "fish"):
		fmt.Printf("set -gx PATH %s/compiler %s/lsp $PATH\n", binDir, binDir)
	case strings.Contains(*shell, "powershell"), os.Getenv("COMSPEC") != "" && *shell == "":
		fmt.Printf("$env:PATH = \"%s\\compiler;%s\\lsp;$env:PATH\"\n", binDir, binDir)
	default:
		fmt.Printf("export PATH=\"%s/compiler:%s/lsp:$PATH\"\n", binDir, binDir)
	}
	return 0, nil
}

func usageErr(jsonOut bool, msg string) (int, error) {
	return reportErr(jsonOut, zvmerr.UsageError.New("%s", msg), 2)
}

func reportErr(jsonOut bool, err error, fallbackCode int) (int, error) {
	if jsonOut {
		fmt.Fprintf(os.Stderr, `{"error": %q, "message": %q}`+"\n", zvmerr.Kind(err), err.Error())
	} else {
		fmt.Fprintln(os.Stderr, "zvm error:", err)
	}
	return fallbackCode, nil
}

func main() {
	exitCode, err := run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode)
}
