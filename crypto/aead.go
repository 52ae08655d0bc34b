package crypto

import (
	"crypto/cipher"

	"github.com/jmcleod/sealbox/internal/util"
)

const (
	// NonceSize is the XChaCha20-Poly1305 nonce length (192 bits). Nonces
	// this large can be drawn at random for the lifetime of a key.
	NonceSize = util.XChaChaNonceSize
	// TagSize is the Poly1305 authentication tag length.
	TagSize = util.XChaChaTagSize
)

// Encrypt seals plaintext under key with a fresh random nonce and returns
// the ciphertext (with the tag appended) and the nonce. The nonce is needed
// to decrypt and must be stored alongside the ciphertext.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, err
	}
	nonce, err = util.NewXChaChaNonce()
	if err != nil {
		return nil, nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens a ciphertext produced by Encrypt. Every authentication
// failure is reported as ErrAuthentication.
func Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	if len(ciphertext) < TagSize {
		return nil, ErrBufferTooSmall
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// EncryptInPlace replaces the contents of buf with ciphertext||tag, reusing
// buf's backing array when its capacity has room for the tag. The associated
// data is not encrypted but is bound into the tag; pass nil for none.
// It returns the fresh nonce.
func EncryptInPlace(buf *[]byte, key, associatedData []byte) ([]byte, error) {
	if buf == nil {
		return nil, ErrNilBuffer
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, err := util.NewXChaChaNonce()
	if err != nil {
		return nil, err
	}
	*buf = aead.Seal((*buf)[:0], nonce, *buf, associatedData)
	return nonce, nil
}

// DecryptInPlace reverses EncryptInPlace. On success buf is truncated to the
// plaintext. Associated data must be identical to what was used to encrypt.
// On failure the contents of buf are unspecified.
func DecryptInPlace(buf *[]byte, key, nonce, associatedData []byte) error {
	if buf == nil {
		return ErrNilBuffer
	}
	aead, err := newAEAD(key)
	if err != nil {
		return err
	}
	if len(nonce) != NonceSize {
		return ErrInvalidNonceSize
	}
	if len(*buf) < TagSize {
		return ErrBufferTooSmall
	}
	plaintext, err := aead.Open((*buf)[:0], nonce, *buf, associatedData)
	if err != nil {
		return ErrAuthentication
	}
	*buf = plaintext
	return nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return util.NewXChaCha(key)
}
