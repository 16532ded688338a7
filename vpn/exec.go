// Package vpn provides OpenVPN session management functionality.
// This file contains OpenVPN executable resolution.
package vpn

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/bastiaanwilliams/OCL/common"
)

// platformBinaryName returns the bundled binary name for this OS.
func platformBinaryName() string {
	switch runtime.GOOS {
	case "windows":
		return "openvpn.exe"
	case "darwin":
		return "openvpn_macos"
	default:
		return "openvpn"
	}
}

// bundledExecutable returns the path of the OpenVPN binary shipped in
// bin/ next to the application, or "" when not present.
func bundledExecutable() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	path := filepath.Join(filepath.Dir(exe), "bin", platformBinaryName())
	if common.FileExists(path) {
		return path
	}
	return ""
}

// ResolveExecutable locates the OpenVPN binary. A bundled copy wins
// over one found on PATH.
func ResolveExecutable() (string, error) {
	if path := bundledExecutable(); path != "" {
		common.LogDebug("Using bundled OpenVPN binary: %s", path)
		return path, nil
	}

	path, err := exec.LookPath("openvpn")
	if err != nil {
		return "", common.WrapError(common.ErrExecutableNotFound,
			"install OpenVPN or ship it in bin/ next to the application")
	}
	return path, nil
}
