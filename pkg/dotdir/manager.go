// Package dotdir resolves the .drift/ directory that holds config.toml and,
// by default, the sqlite event journal.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the drift directory.
	DirName = ".drift"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .drift/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.drift/ dir
//  3. Home ~/.drift/ dir
//  4. If none found, attempt to create ~/.drift/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, DirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating drift directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// localDirExists checks whether a .drift/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, DirName))
	return err == nil && info.IsDir()
}

// InitLocal creates a .drift/ directory under cwd. It reports false when the
// directory already existed.
func (m *Manager) InitLocal(cwd string) (string, bool, error) {
	dir := filepath.Join(cwd, DirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		return dir, false, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating %s directory: %w", DirName, err)
	}
	return dir, true, nil
}
