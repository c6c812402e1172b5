package choices

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName is the directory name used under the XDG config home.
const AppName = "filer"

// Dir returns the directory holding filer choices. Priority:
// 1) $XDG_CONFIG_HOME/filer (if XDG_CONFIG_HOME is set)
// 2) ~/.config/filer
func Dir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, AppName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// Path joins elem onto the choices directory without creating anything.
func Path(elem ...string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

// SavePath is like Path but creates the parent directory of the result.
func SavePath(elem ...string) (string, error) {
	path, err := Path(elem...)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create choices dir: %w", err)
	}
	return path, nil
}
