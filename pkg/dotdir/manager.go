// Package dotdir resolves the .memories/ directory that holds config.toml.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the memories directory.
	dirName = ".memories"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .memories/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.memories/ dir
//  3. Home ~/.memories/ dir
//
// Returns an empty string when none of them exist.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating memories directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, dirName); isDir(local) {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// No home directory is not fatal: callers fall back to defaults.
		return "", nil
	}
	if dir := filepath.Join(home, dirName); isDir(dir) {
		return dir, nil
	}

	return "", nil
}

// EnsureHome creates ~/.memories/ if needed and returns its absolute path.
func (m *Manager) EnsureHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating memories directory %s: %w", dir, err)
	}

	return dir, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
