package library

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
)

// writeOnce writes data to path unless path already holds exactly data.
// It reports whether a new file was created.
func writeOnce(path string, data []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if bytes.Equal(existing, data) {
			return false, nil
		}
		return false, ErrExists
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}

	if err := writeAtomic(path, data, false); err != nil {
		return false, err
	}
	return true, nil
}

// writeAtomic writes data to a temporary file next to path, syncs it and
// renames it into place. Unless replace is set, an existing path is left
// untouched and ErrExists returned.
func writeAtomic(path string, data []byte, replace bool) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if !replace {
		// link fails if path appeared since the caller checked
		if err := os.Link(tmpPath, path); err != nil {
			_ = os.Remove(tmpPath)
			if errors.Is(err, os.ErrExist) {
				return ErrExists
			}
			return err
		}
		return os.Remove(tmpPath)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// WriteTrack writes track as a WAV file at path, replacing any existing
// file atomically.
func WriteTrack(path string, track *dtypes.AssembledTrack) error {
	if track == nil {
		return errors.New("no track to write")
	}
	var buf bytes.Buffer
	if err := audio.EncodeWAV(&buf, track.Format, track.PCM); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
			return &dtypes.PersistenceError{Op: "create", Path: dir, Err: err}
		}
	}
	if err := writeAtomic(path, buf.Bytes(), true); err != nil {
		return &dtypes.PersistenceError{Op: "write", Path: path, Err: err}
	}
	return nil
}
