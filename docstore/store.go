package docstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmcleod/sealbox/crypto"
	"github.com/jmcleod/sealbox/internal/util"
	"github.com/jmcleod/sealbox/storage"
)

// Defaulter is implemented by documents whose default value is not the zero
// value. Default is called on a freshly zeroed document before it is created
// or decoded into.
type Defaulter interface {
	Default()
}

// Store binds a file path to its decrypted in-memory document.
type Store[D any] struct {
	path       string
	id         string
	doc        D
	generation uint64
	opts       options
	closed     bool
}

func newDocument[D any]() D {
	var doc D
	if d, ok := any(&doc).(Defaulter); ok {
		d.Default()
	}
	return doc
}

func newStore[D any](path string, opts []Option) (*Store[D], error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &IOError{Op: "abs", Path: path, Err: err}
	}
	return &Store[D]{
		path: path,
		id:   abs,
		opts: newOptions(opts),
	}, nil
}

// Open loads the document at path, or creates it if the file does not
// exist. A file that exists but cannot be read, decrypted or decoded is
// reported as an error and left untouched.
func Open[D any](path string, key *crypto.Key, opts ...Option) (*Store[D], error) {
	s, err := Load[D](path, key, opts...)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return Create[D](path, key, opts...)
}

// Load decrypts the document at path. A missing file yields ErrNotFound.
func Load[D any](path string, key *crypto.Key, opts ...Option) (*Store[D], error) {
	s, err := newStore[D](path, opts)
	if err != nil {
		return nil, err
	}
	if err := s.load(key); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store[D]) load(key *crypto.Key) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return &IOError{Op: "read", Path: s.path, Err: err}
	}

	var env storage.Envelope
	if err := env.UnmarshalBinary(data); err != nil {
		return corruptError(s.path, err)
	}

	buf, err := key.Open()
	if err != nil {
		return err
	}
	plaintext, err := storage.Open(buf.Bytes(), &env)
	buf.Destroy()
	if err != nil {
		return corruptError(s.path, err)
	}
	defer util.WipeBytes(plaintext)

	h, err := decodeHeader(env.AssociatedData)
	if err != nil {
		return corruptError(s.path, err)
	}
	if h.Label != s.opts.label {
		return fmt.Errorf("%s: %w: want %q, found %q", s.path, ErrLabelMismatch, s.opts.label, h.Label)
	}
	c := s.opts.cache
	if c != nil {
		if known := c.MaxGeneration(s.id); h.Generation < known {
			return fmt.Errorf("%s: %w: generation %d, expected at least %d", s.path, ErrRollbackDetected, h.Generation, known)
		}
	}

	doc := newDocument[D]()
	if err := decodeDocument(plaintext, &doc); err != nil {
		return corruptError(s.path, err)
	}
	if c != nil {
		if err := c.SetMaxGeneration(s.id, h.Generation); err != nil {
			return fmt.Errorf("%s: recording generation: %w", s.path, err)
		}
	}
	s.doc = doc
	s.generation = h.Generation

	s.opts.logger.Debug("document loaded",
		"path", s.path,
		"label", s.opts.label,
		"generation", s.generation,
		"size", len(data),
	)
	return nil
}

// Create writes a default document to path and returns its Store. An
// existing file yields ErrExists unless WithOverwrite is given.
func Create[D any](path string, key *crypto.Key, opts ...Option) (*Store[D], error) {
	s, err := newStore[D](path, opts)
	if err != nil {
		return nil, err
	}
	if !s.opts.overwrite {
		_, err := os.Lstat(path)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%s: %w", path, ErrExists)
		case !errors.Is(err, os.ErrNotExist):
			return nil, &IOError{Op: "stat", Path: path, Err: err}
		}
	}

	s.doc = newDocument[D]()
	// Continue from the highest generation seen so a re-created document
	// never looks like a rollback.
	if c := s.opts.cache; c != nil {
		s.generation = c.MaxGeneration(s.id)
	}
	if err := s.Save(key); err != nil {
		return nil, err
	}
	s.opts.logger.Info("document created", "path", s.path, "label", s.opts.label)
	return s, nil
}

// Save encrypts the current document under a fresh nonce and atomically
// replaces the file.
func (s *Store[D]) Save(key *crypto.Key) error {
	if s.closed {
		return ErrClosed
	}

	next := s.generation + 1
	ad, err := encodeHeader(header{Label: s.opts.label, Generation: next})
	if err != nil {
		return err
	}
	plaintext, err := encodeDocument(&s.doc)
	if err != nil {
		return err
	}

	buf, err := key.Open()
	if err != nil {
		util.WipeBytes(plaintext)
		return err
	}
	env, err := storage.SealWithAD(buf.Bytes(), plaintext, ad)
	buf.Destroy()
	if err != nil {
		util.WipeBytes(plaintext)
		return err
	}

	data, err := env.MarshalBinary()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data, s.opts.fileMode); err != nil {
		return err
	}

	s.generation = next
	if c := s.opts.cache; c != nil {
		if err := c.SetMaxGeneration(s.id, next); err != nil {
			return fmt.Errorf("%s: recording generation: %w", s.path, err)
		}
	}

	s.opts.logger.Debug("document saved",
		"path", s.path,
		"label", s.opts.label,
		"generation", next,
		"size", len(data),
	)
	return nil
}

// Mutate returns a pointer to the in-memory document. Changes are not
// persisted until Save. Returns nil on a closed Store.
func (s *Store[D]) Mutate() *D {
	if s.closed {
		return nil
	}
	return &s.doc
}

// Document returns a copy of the in-memory document. Reference types inside
// the document (maps, slices) are shared with the Store.
func (s *Store[D]) Document() D {
	return s.doc
}

// Path returns the file path the Store was opened with.
func (s *Store[D]) Path() string { return s.path }

// Generation returns the generation of the last load or save.
func (s *Store[D]) Generation() uint64 { return s.generation }

// Closed reports whether the Store has been closed or deleted.
func (s *Store[D]) Closed() bool { return s.closed }

// Close saves the document and releases it. The Store is unusable
// afterwards, even when the final save fails.
func (s *Store[D]) Close(key *crypto.Key) error {
	if s.closed {
		return ErrClosed
	}
	err := s.Save(key)
	s.release()
	return err
}

// Delete removes the file irreversibly and closes the Store.
func (s *Store[D]) Delete() error {
	if s.closed {
		return ErrClosed
	}
	s.release()
	if err := Remove(s.path); err != nil {
		return err
	}
	s.opts.logger.Info("document deleted", "path", s.path, "label", s.opts.label)
	return nil
}

func (s *Store[D]) release() {
	var zero D
	s.doc = zero
	s.closed = true
}

// Remove deletes the document file at path. A missing file yields
// ErrNotFound.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return &IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
