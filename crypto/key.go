package crypto

import (
	"github.com/awnumar/memguard"

	"github.com/jmcleod/sealbox/internal/util"
)

// KeySize is the length of every symmetric key in this package.
const KeySize = util.XChaChaKeySize

// Key holds 32 bytes of symmetric key material in a memguard Enclave, so the
// key is encrypted while at rest in process memory. Call Destroy when done.
type Key struct {
	enclave *memguard.Enclave
}

// NewKey takes ownership of raw and wipes it.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		util.WipeBytes(raw)
		return nil, ErrInvalidKeySize
	}
	return &Key{enclave: memguard.NewEnclave(raw)}, nil
}

// GenerateKey returns a random key.
func GenerateKey() (*Key, error) {
	raw, err := util.NewXChaChaKey()
	if err != nil {
		return nil, err
	}
	return NewKey(raw)
}

// DeriveKeyFromPassword runs DeriveKey and seals the result in a Key.
func DeriveKeyFromPassword(password []byte, salt Salt, opts ...KDFOption) (*Key, error) {
	raw, err := DeriveKey(password, salt, opts...)
	if err != nil {
		return nil, err
	}
	return NewKey(raw)
}

// Open decrypts the key into a locked buffer. The caller must Destroy the
// returned buffer.
func (k *Key) Open() (*memguard.LockedBuffer, error) {
	if k == nil || k.enclave == nil {
		return nil, ErrKeyDestroyed
	}
	return k.enclave.Open()
}

// Subkey derives an independent Key for the given purpose.
func (k *Key) Subkey(info string) (*Key, error) {
	buf, err := k.Open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	raw, err := DeriveSubkey(buf.Bytes(), info)
	if err != nil {
		return nil, err
	}
	return NewKey(raw)
}

// Destroy drops the enclave. The Key must not be used afterwards.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	k.enclave = nil
}

// Destroyed reports whether Destroy has been called.
func (k *Key) Destroyed() bool {
	return k == nil || k.enclave == nil
}
