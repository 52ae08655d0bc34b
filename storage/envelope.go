// Package storage defines the ciphertext envelope, the only unit ever
// written to disk.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jmcleod/sealbox/crypto"
	"github.com/jmcleod/sealbox/internal/util"
)

const (
	// EnvelopeVersion is the current binary layout version.
	EnvelopeVersion = 1

	envelopeMagic = "SBX\x00"
	// magic + ver + scheme + nonce len + ad len + ciphertext len
	envelopeFixedSize = 4 + 1 + 1 + 2 + 4 + 4
)

// Scheme identifies the AEAD construction used to seal an envelope.
type Scheme uint8

const (
	SchemeXChaCha20Poly1305 Scheme = 1
)

func (s Scheme) String() string {
	switch s {
	case SchemeXChaCha20Poly1305:
		return "xchacha20poly1305"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

var (
	// ErrSerialization matches every envelope decoding failure.
	ErrSerialization = errors.New("serialization error")

	ErrMalformedEnvelope  = fmt.Errorf("%w: malformed envelope", ErrSerialization)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported envelope version", ErrSerialization)
	ErrUnsupportedScheme  = fmt.Errorf("%w: unsupported envelope scheme", ErrSerialization)
)

// Envelope bundles a nonce with the ciphertext it sealed and the optional
// associated data bound into the authentication tag. Associated data is
// stored in clear so a file can be opened without outside context.
//
// Binary layout, big-endian:
//
//	"SBX\x00" | ver u8 | scheme u8 | nonce len u16 | nonce
//	| ad len u32 | ad | ciphertext len u32 | ciphertext
type Envelope struct {
	Ver            uint8
	Scheme         Scheme
	Nonce          []byte
	AssociatedData []byte
	Ciphertext     []byte
}

// MarshalBinary encodes the envelope. The output is deterministic.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	if len(e.Nonce) > 0xFFFF {
		return nil, fmt.Errorf("%w: nonce too long", ErrMalformedEnvelope)
	}
	if uint64(len(e.AssociatedData)) > 0xFFFFFFFF || uint64(len(e.Ciphertext)) > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: payload too long", ErrMalformedEnvelope)
	}

	out := make([]byte, 0, envelopeFixedSize+len(e.Nonce)+len(e.AssociatedData)+len(e.Ciphertext))
	out = append(out, envelopeMagic...)
	out = append(out, e.Ver, byte(e.Scheme))
	out = binary.BigEndian.AppendUint16(out, uint16(len(e.Nonce)))
	out = append(out, e.Nonce...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.AssociatedData)))
	out = append(out, e.AssociatedData...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.Ciphertext)))
	out = append(out, e.Ciphertext...)
	return out, nil
}

// UnmarshalBinary decodes data into e. It rejects an unknown magic,
// version or scheme, truncated input and trailing bytes.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	if len(data) < envelopeFixedSize || string(data[:4]) != envelopeMagic {
		return ErrMalformedEnvelope
	}
	r := envelopeReader{buf: data[4:]}
	ver := r.byte()
	scheme := Scheme(r.byte())
	if r.err == nil && ver != EnvelopeVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, ver)
	}
	if r.err == nil && scheme != SchemeXChaCha20Poly1305 {
		return fmt.Errorf("%w: %d", ErrUnsupportedScheme, uint8(scheme))
	}
	nonce := r.bytes(int(r.uint16()))
	ad := r.bytes(int(r.uint32()))
	ciphertext := r.bytes(int(r.uint32()))
	if r.err != nil {
		return r.err
	}
	if len(r.buf) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedEnvelope, len(r.buf))
	}

	*e = Envelope{
		Ver:            ver,
		Scheme:         scheme,
		Nonce:          util.CopyBytes(nonce),
		AssociatedData: util.CopyBytes(ad),
		Ciphertext:     util.CopyBytes(ciphertext),
	}
	return nil
}

type envelopeReader struct {
	buf []byte
	err error
}

func (r *envelopeReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf) {
		r.err = fmt.Errorf("%w: truncated", ErrMalformedEnvelope)
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *envelopeReader) byte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *envelopeReader) uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *envelopeReader) uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *envelopeReader) bytes(n int) []byte {
	b := r.next(n)
	if len(b) == 0 {
		return nil
	}
	return b
}

// Seal encrypts plaintext into an envelope without associated data.
func Seal(key, plaintext []byte) (*Envelope, error) {
	ciphertext, nonce, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Ver:        EnvelopeVersion,
		Scheme:     SchemeXChaCha20Poly1305,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// SealWithAD encrypts plaintext in place and embeds associatedData in the
// envelope. The storage of plaintext becomes the envelope's ciphertext, so
// the caller must not use plaintext afterwards.
func SealWithAD(key, plaintext, associatedData []byte) (*Envelope, error) {
	buf := plaintext
	nonce, err := crypto.EncryptInPlace(&buf, key, associatedData)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Ver:            EnvelopeVersion,
		Scheme:         SchemeXChaCha20Poly1305,
		Nonce:          nonce,
		AssociatedData: util.CopyBytes(associatedData),
		Ciphertext:     buf,
	}, nil
}

// Open decrypts an envelope. Authentication failures surface as
// crypto.ErrAuthentication.
func Open(key []byte, env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrMalformedEnvelope
	}
	if env.Ver != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Ver)
	}
	if env.Scheme != SchemeXChaCha20Poly1305 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedScheme, uint8(env.Scheme))
	}
	if len(env.AssociatedData) == 0 {
		return crypto.Decrypt(env.Ciphertext, key, env.Nonce)
	}

	// Decrypt a copy so the envelope keeps its ciphertext.
	buf := util.CopyBytes(env.Ciphertext)
	if err := crypto.DecryptInPlace(&buf, key, env.Nonce, env.AssociatedData); err != nil {
		return nil, err
	}
	return buf, nil
}
