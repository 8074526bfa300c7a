// Package target resolves the path of the rust-red binary under test.
//
// The binary is built separately (cargo build, possibly cross-compiled),
// so the harness never builds it; it only locates the build output for a
// configured target triple and profile:
//
//	<root>/target[/<triple>]/<profile>/rust-red[.exe]
//
// Configuration is environment-variable driven so CI and the
// cross-architecture runner can redirect the harness at a different
// build output without touching test code.
package target

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Environment variables consulted by FromEnv.
const (
	// EnvRoot points at the rust-red checkout containing target/.
	// Defaults to the current working directory.
	EnvRoot = "RUSTRED_ROOT"

	// EnvBuildTarget names a target triple subdirectory, set when the
	// binary was cross-compiled (e.g. "aarch64-unknown-linux-gnu").
	EnvBuildTarget = "RUSTRED_BUILD_TARGET"

	// EnvBuildProfile selects the cargo profile directory.
	EnvBuildProfile = "RUSTRED_BUILD_PROFILE"
)

// DefaultProfile is used when EnvBuildProfile is unset.
const DefaultProfile = "release"

const binaryName = "rust-red"

// Config identifies one build output of the target binary.
type Config struct {
	// Root is the checkout directory containing target/.
	Root string

	// Triple is the optional cross-compilation target triple.
	Triple string

	// Profile is the cargo profile ("debug", "release", ...).
	Profile string
}

// FromEnv builds a Config from the process environment, applying
// defaults for unset variables.
func FromEnv() Config {
	cfg := Config{
		Root:    os.Getenv(EnvRoot),
		Triple:  os.Getenv(EnvBuildTarget),
		Profile: os.Getenv(EnvBuildProfile),
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
	return cfg
}

// ExecutablePath returns the expected binary location for this config.
// The path is computed, not checked; use Resolve to require existence.
func (c Config) ExecutablePath() string {
	name := binaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	parts := []string{c.Root, "target"}
	if c.Triple != "" {
		parts = append(parts, c.Triple)
	}
	profile := c.Profile
	if profile == "" {
		profile = DefaultProfile
	}
	parts = append(parts, profile, name)

	return filepath.Join(parts...)
}

// Resolve returns the binary path after verifying it exists and is a
// regular file. The returned error carries the path so callers can tell
// the user exactly where the harness looked.
func (c Config) Resolve() (string, error) {
	path := c.ExecutablePath()

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("target binary not found at %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("target binary path %s is a directory", path)
	}
	return path, nil
}
