package docstore

import (
	"os"

	"github.com/jmcleod/sealbox/storage"
)

// Info describes the clear parts of a document file. Nothing in it is
// authenticated until the document is loaded with the right key.
type Info struct {
	Path           string         `json:"path"`
	Version        uint8          `json:"version"`
	Scheme         storage.Scheme `json:"scheme"`
	NonceSize      int            `json:"nonce_size"`
	Label          string         `json:"label"`
	Generation     uint64         `json:"generation"`
	CiphertextSize int            `json:"ciphertext_size"`
}

// Inspect reads the envelope at path and decodes its header without a key.
func Inspect(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, &IOError{Op: "read", Path: path, Err: err}
	}
	var env storage.Envelope
	if err := env.UnmarshalBinary(data); err != nil {
		return Info{}, corruptError(path, err)
	}
	h, err := decodeHeader(env.AssociatedData)
	if err != nil {
		return Info{}, corruptError(path, err)
	}
	return Info{
		Path:           path,
		Version:        env.Ver,
		Scheme:         env.Scheme,
		NonceSize:      len(env.Nonce),
		Label:          h.Label,
		Generation:     h.Generation,
		CiphertextSize: len(env.Ciphertext),
	}, nil
}
