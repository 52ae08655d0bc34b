package util

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	XChaChaKeySize   = chacha20poly1305.KeySize
	XChaChaNonceSize = chacha20poly1305.NonceSizeX
	XChaChaTagSize   = chacha20poly1305.Overhead
)

// NewXChaCha returns an XChaCha20-Poly1305 AEAD for a 32-byte key.
func NewXChaCha(rawKey []byte) (cipher.AEAD, error) {
	if len(rawKey) != XChaChaKeySize {
		return nil, fmt.Errorf("invalid XChaCha20-Poly1305 key size: got %d, want %d", len(rawKey), XChaChaKeySize)
	}
	aead, err := chacha20poly1305.NewX(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305: %w", err)
	}
	return aead, nil
}

// NewXChaChaNonce returns a fresh random 24-byte nonce.
func NewXChaChaNonce() ([]byte, error) {
	nonce, err := RandomBytes(XChaChaNonceSize)
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return nonce, nil
}

func NewXChaChaKey() ([]byte, error) {
	rawKey, err := RandomBytes(XChaChaKeySize)
	if err != nil {
		return nil, fmt.Errorf("generating XChaCha20-Poly1305 key: %w", err)
	}
	return rawKey, nil
}
