package docstore

import (
	"io/fs"
	"os"
	"path/filepath"
)

// writeFileAtomic replaces path with data so that a crash leaves either the
// previous file or the new one, never a truncated mix. The temp file lives
// in the same directory so the rename stays on one file system.
func writeFileAtomic(path string, data []byte, mode fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create temp", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err = tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return &IOError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	syncDir(dir)
	return nil
}

// syncDir persists the rename. Best effort: not every platform supports
// fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
