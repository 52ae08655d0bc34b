package docstore

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound matches an *IOError whose file does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned by Create when the path is already taken.
	ErrExists = errors.New("document already exists")
	// ErrClosed is returned by operations on a closed or deleted Store.
	ErrClosed = errors.New("store closed")
	// ErrCorruptOrWrongKey is returned when an existing file cannot be
	// decrypted or decoded. The file is left untouched.
	ErrCorruptOrWrongKey = errors.New("document corrupt or wrong key")
	// ErrLabelMismatch is returned when a file was written for another
	// document kind.
	ErrLabelMismatch = errors.New("document label mismatch")
)

// IOError reports a file system failure on a document path.
type IOError struct {
	Op   string // "read", "write", "stat", "rename", ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNotFound) hold for missing files.
func (e *IOError) Is(target error) bool {
	return target == ErrNotFound && errors.Is(e.Err, fs.ErrNotExist)
}

func corruptError(path string, err error) error {
	return fmt.Errorf("%s: %w: %w", path, ErrCorruptOrWrongKey, err)
}
