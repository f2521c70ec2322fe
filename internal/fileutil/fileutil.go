// Package fileutil provides filesystem helpers for the CLI: atomic
// output writes and overwrite checks. Core conversion packages operate
// on bytes and never touch the filesystem.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CheckOverwrite returns an error when path exists and force is false,
// so a conversion never silently clobbers an output file.
func CheckOverwrite(path string, force bool) error {
	if force {
		return nil
	}
	if Exists(path) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return nil
}

// WriteFileAtomic writes data to path through a temporary file in the
// same directory followed by a rename, so readers never observe a
// partially written output.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
