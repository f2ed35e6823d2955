package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureFile writes DefaultYAML to path unless a file is already there. It
// reports whether the file was created.
func EnsureFile(path string) (bool, error) {
	if path == "" {
		return false, errors.New("no config file path")
	}
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return false, fmt.Errorf("'%s' is not a supported configuration type: use '.yaml' or '.yml'", ext)
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("unable to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("unable to create directory: %w", err)
	}
	// O_EXCL keeps a file another process just wrote
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unable to write config file: %w", err)
	}
	if _, err := f.WriteString(DefaultYAML); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return false, fmt.Errorf("unable to write config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("unable to write config file: %w", err)
	}
	return true, nil
}
