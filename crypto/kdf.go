package crypto

import (
	"math"

	"github.com/jmcleod/sealbox/internal/util"
)

// Argon2idParams configures Argon2id key derivation.
type Argon2idParams = util.Argon2idParams

// Named KDF profiles for different deployment scenarios.
const (
	KDFProfileInteractive = util.KDFProfileInteractive // reference defaults
	KDFProfileModerate    = util.KDFProfileModerate
	KDFProfileSensitive   = util.KDFProfileSensitive
)

const (
	// SaltLen is the size of salts produced by GenerateSalt.
	SaltLen = 16
	// MinSaltLen and MaxSaltLen bound the decoded salt accepted by DeriveKey.
	MinSaltLen = 8
	MaxSaltLen = 64

	maxPasswordLen = math.MaxUint32
	minOutputLen   = 4
)

// Salt is a KDF salt in its canonical form: unpadded standard base64.
type Salt string

// GenerateSalt returns a fresh random salt from the system CSPRNG.
func GenerateSalt() (Salt, error) {
	raw, err := util.RandomBytes(SaltLen)
	if err != nil {
		return "", err
	}
	return Salt(util.B64Encode(raw)), nil
}

// ParseSalt validates an encoded salt.
func ParseSalt(s string) (Salt, error) {
	salt := Salt(s)
	if _, err := salt.Bytes(); err != nil {
		return "", err
	}
	return salt, nil
}

// Bytes decodes the salt and checks its length.
func (s Salt) Bytes() ([]byte, error) {
	raw, err := util.B64Decode(string(s))
	if err != nil {
		return nil, &KDFError{Kind: KDFB64Encoding, Err: err}
	}
	if len(raw) < MinSaltLen {
		return nil, kdfError(KDFSaltTooShort)
	}
	if len(raw) > MaxSaltLen {
		return nil, kdfError(KDFSaltTooLong)
	}
	return raw, nil
}

func (s Salt) String() string {
	return string(s)
}

// KDFOption customizes DeriveKey and HashPassword.
type KDFOption func(*kdfOptions)

type kdfOptions struct {
	params Argon2idParams
}

// WithKDFParams overrides the default Argon2id parameters.
func WithKDFParams(params Argon2idParams) KDFOption {
	return func(o *kdfOptions) {
		o.params = params
	}
}

func kdfOptionsFrom(opts []KDFOption) kdfOptions {
	o := kdfOptions{params: DefaultArgon2idParams()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DefaultArgon2idParams returns the reference Argon2id parameters.
func DefaultArgon2idParams() Argon2idParams {
	return util.DefaultArgon2idParams()
}

// Argon2idProfile returns the Argon2idParams for a named profile.
func Argon2idProfile(name string) (Argon2idParams, error) {
	return util.Argon2idProfile(name)
}

// ValidateArgon2idParams checks the structural Argon2 limits.
func ValidateArgon2idParams(p Argon2idParams) error {
	if p.Time < 1 {
		return kdfError(KDFTimeTooSmall)
	}
	if p.Parallelism < 1 {
		return kdfError(KDFThreadsTooFew)
	}
	if p.MemoryKiB < 8*uint32(p.Parallelism) {
		return kdfError(KDFMemoryTooLittle)
	}
	if p.KeyLen < minOutputLen {
		return kdfError(KDFOutputTooShort)
	}
	return nil
}

// DeriveKey derives KeySize bytes of key material from password and salt
// with Argon2id. Identical inputs always produce identical output.
//
// Never use the result of HashPassword as key material, and never use the
// same salt for both.
func DeriveKey(password []byte, salt Salt, opts ...KDFOption) ([]byte, error) {
	o := kdfOptionsFrom(opts)
	o.params.KeyLen = KeySize
	if err := ValidateArgon2idParams(o.params); err != nil {
		return nil, err
	}
	if uint64(len(password)) > maxPasswordLen {
		return nil, kdfError(KDFPwdTooLong)
	}
	rawSalt, err := salt.Bytes()
	if err != nil {
		return nil, err
	}
	return util.DeriveArgon2idKey(password, rawSalt, o.params), nil
}

// DeriveSubkey derives an independent key for the given purpose from a
// master key using HKDF-SHA256.
func DeriveSubkey(masterKey []byte, info string) ([]byte, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return util.HKDF(masterKey, nil, []byte("sealbox:"+info))
}
