// Command zvm-shim is installed under each managed tool's name (zig, zls)
// on $PATH; it resolves the active version via internal/shim and re-invokes
// it with the caller's argv and env, per spec §6's shim interface.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/zvmhq/zvm/internal/pool"
	"github.com/zvmhq/zvm/internal/shim"
	"github.com/zvmhq/zvm/internal/zversion"
)

func toolForName(name string) (zversion.ToolKind, string, bool) {
	switch name {
	case "zig", "zig.exe":
		return zversion.Compiler, name, true
	case "zls", "zls.exe":
		return zversion.LanguageServer, name, true
	default:
		return 0, "", false
	}
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	invokedAs := filepath.Base(os.Args[0])
	tool, binaryName, ok := toolForName(invokedAs)
	if !ok {
		fmt.Fprintf(os.Stderr, "zvm-shim: invoked under unrecognized name %q\n", invokedAs)
		os.Exit(2)
	}

	p, err := pool.New(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zvm-shim:", err)
		os.Exit(1)
	}

	binary, err := shim.Resolve(p, tool, binaryName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zvm-shim:", err)
		os.Exit(1)
	}

	if err := shim.Run(binary, os.Args[1:], os.Environ()); err != nil {
		fmt.Fprintln(os.Stderr, "zvm-shim:", err)
		os.Exit(1)
	}
}
