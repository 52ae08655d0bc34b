package docstore

import (
	"io/fs"
	"log/slog"
)

const defaultFileMode fs.FileMode = 0o600

// Option configures a Store.
type Option func(*options)

type options struct {
	label     string
	overwrite bool
	cache     GenerationCache
	logger    *slog.Logger
	fileMode  fs.FileMode
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.New(slog.DiscardHandler),
		fileMode: defaultFileMode,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLabel binds the store to a document kind. The label is embedded in
// the authenticated header, and loading a file written under another label
// fails with ErrLabelMismatch.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithOverwrite lets Create replace an existing file.
func WithOverwrite() Option {
	return func(o *options) {
		o.overwrite = true
	}
}

// WithGenerationCache enables rollback detection against the given cache.
func WithGenerationCache(cache GenerationCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithLogger sets the structured logger. Keys and document contents are
// never logged. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFileMode sets the permission bits of written files. Default: 0600.
func WithFileMode(mode fs.FileMode) Option {
	return func(o *options) {
		o.fileMode = mode
	}
}
