package main

import (
	"runtime"

	"github.com/zvmhq/zvm/internal/zversion"
)

func hostOS() zversion.OS {
	switch runtime.GOOS {
	case "darwin":
		return zversion.MacOS
	case "windows":
		return zversion.Windows
	default:
		return zversion.Linux
	}
}

func hostArch() zversion.Arch {
	switch runtime.GOARCH {
	case "amd64":
		return zversion.X86_64
	case "arm64":
		return zversion.Aarch64
	case "arm":
		return zversion.Arm
	case "riscv64":
		return zversion.Riscv64
	case "ppc64le":
		return zversion.Powerpc64le
	case "ppc64":
		return zversion.Powerpc
	default:
		return zversion.X86_64
	}
}
