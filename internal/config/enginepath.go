package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrEngineNotFound = errors.New("engine binary not found")

var systemEnginePaths = []string{
	"/usr/games/stockfish",
	"/usr/bin/stockfish",
	"/usr/local/bin/stockfish",
}

type EngineSource string

const (
	SourceExplicit EngineSource = "explicit"
	SourceSystem   EngineSource = "system"
	SourceBundled  EngineSource = "bundled"
)

type EngineLocation struct {
	Path   string
	Source EngineSource
	// Skipped lists candidates that were configured but unusable.
	Skipped []string
}

// ResolveEnginePath picks the engine binary: the explicit path, then the
// system locations, then <EnginesDir>/<name>/<version>/<os>/stockfish[.exe].
// The first executable regular file wins.
func ResolveEnginePath(cfg *AppConfig) (EngineLocation, error) {
	return resolveEnginePath(cfg, systemEnginePaths)
}

func resolveEnginePath(cfg *AppConfig, systemPaths []string) (EngineLocation, error) {
	var loc EngineLocation
	var tried []string

	if p := strings.TrimSpace(cfg.EnginePath); p != "" {
		if isExecutableFile(p) {
			loc.Path, loc.Source = p, SourceExplicit
			return loc, nil
		}
		loc.Skipped = append(loc.Skipped, p)
		tried = append(tried, p)
	}

	for _, p := range systemPaths {
		if isExecutableFile(p) {
			loc.Path, loc.Source = p, SourceSystem
			return loc, nil
		}
		tried = append(tried, p)
	}

	bundled := BundledEnginePath(cfg)
	if isExecutableFile(bundled) {
		abs, err := filepath.Abs(bundled)
		if err == nil {
			bundled = abs
		}
		loc.Path, loc.Source = bundled, SourceBundled
		return loc, nil
	}
	tried = append(tried, bundled)
	return loc, fmt.Errorf("%w: tried %s", ErrEngineNotFound, strings.Join(tried, ", "))
}

func BundledEnginePath(cfg *AppConfig) string {
	binary := "stockfish"
	if cfg.EngineOS == "windows" {
		binary = "stockfish.exe"
	}
	return filepath.Join(cfg.EnginesDir, cfg.EngineName, cfg.EngineVersion, cfg.EngineOS, binary)
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
