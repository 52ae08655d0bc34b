package crypto

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is the single outcome of every failed decryption:
	// wrong key, wrong nonce, mismatched associated data or tampering.
	ErrAuthentication = errors.New("authentication failed")
	// ErrBufferTooSmall indicates a ciphertext shorter than the authentication tag.
	ErrBufferTooSmall = errors.New("buffer smaller than authentication tag")
	// ErrInvalidKeySize indicates key material that is not KeySize bytes.
	ErrInvalidKeySize = errors.New("invalid key size")
	// ErrInvalidNonceSize indicates a nonce that is not NonceSize bytes.
	ErrInvalidNonceSize = errors.New("invalid nonce size")
	// ErrNilBuffer is returned by the in-place functions for a nil buffer pointer.
	ErrNilBuffer = errors.New("buffer must not be nil")
	// ErrPasswordMismatch is returned by VerifyPassword for a wrong password
	// and for a malformed hash alike.
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrKeyDestroyed is returned when a destroyed Key is used.
	ErrKeyDestroyed = errors.New("key destroyed")
	// ErrKDF matches every *KDFError.
	ErrKDF = errors.New("key derivation failed")
)

// KDFKind identifies why key derivation rejected its inputs.
type KDFKind int

const (
	KDFSaltTooShort KDFKind = iota + 1
	KDFSaltTooLong
	KDFPwdTooLong
	KDFMemoryTooLittle
	KDFMemoryTooMuch
	KDFTimeTooSmall
	KDFTimeTooMuch
	KDFThreadsTooFew
	KDFOutputTooShort
	KDFB64Encoding
)

func (k KDFKind) String() string {
	switch k {
	case KDFSaltTooShort:
		return "salt is too short"
	case KDFSaltTooLong:
		return "salt is too long"
	case KDFPwdTooLong:
		return "password is too long"
	case KDFMemoryTooLittle:
		return "memory cost is too small"
	case KDFMemoryTooMuch:
		return "memory cost is too large"
	case KDFTimeTooSmall:
		return "time cost is too small"
	case KDFTimeTooMuch:
		return "time cost is too large"
	case KDFThreadsTooFew:
		return "not enough threads"
	case KDFOutputTooShort:
		return "output is too short"
	case KDFB64Encoding:
		return "B64 encoding invalid"
	default:
		return fmt.Sprintf("kdf kind %d", int(k))
	}
}

// KDFError reports invalid key derivation parameters.
type KDFError struct {
	Kind KDFKind
	Err  error // underlying error, if any
}

func (e *KDFError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kdf: %s: %v", e.Kind, e.Err)
	}
	return "kdf: " + e.Kind.String()
}

func (e *KDFError) Unwrap() error {
	return e.Err
}

func (e *KDFError) Is(target error) bool {
	return target == ErrKDF
}

func kdfError(kind KDFKind) error {
	return &KDFError{Kind: kind}
}
