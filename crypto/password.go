package crypto

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/jmcleod/sealbox/internal/util"
)

const (
	passwordHashLen = 32
	// maxVerifyMemoryKiB and maxVerifyTime cap the costs accepted from a
	// stored hash.
	maxVerifyMemoryKiB = 1 << 21
	maxVerifyTime      = 64
)

// dummySalt feeds the Argon2id run performed for malformed hashes.
var dummySalt = make([]byte, SaltLen)

// HashPassword returns a self-describing PHC string
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash) with its own fresh salt.
// It is meant for login verification only.
func HashPassword(password []byte, opts ...KDFOption) (string, error) {
	o := kdfOptionsFrom(opts)
	o.params.KeyLen = passwordHashLen
	if err := ValidateArgon2idParams(o.params); err != nil {
		return "", err
	}
	if uint64(len(password)) > maxPasswordLen {
		return "", kdfError(KDFPwdTooLong)
	}
	salt, err := util.RandomBytes(SaltLen)
	if err != nil {
		return "", err
	}
	hash := util.DeriveArgon2idKey(password, salt, o.params)
	return formatPHC(o.params, salt, hash), nil
}

// VerifyPassword checks password against a hash produced by HashPassword.
// A malformed hash costs one Argon2id run and yields the same
// ErrPasswordMismatch as a wrong password. The run uses the hash's own
// parameters when they parse, and the defaults otherwise.
func VerifyPassword(password []byte, encoded string) error {
	params, salt, want, parseErr := parsePHC(encoded)
	if parseErr != nil {
		if params == (Argon2idParams{}) {
			params = DefaultArgon2idParams()
		}
		params.KeyLen = passwordHashLen
		salt = dummySalt
		want = make([]byte, passwordHashLen)
	}
	got := util.DeriveArgon2idKey(password, salt, params)
	defer util.WipeBytes(got)
	match := subtle.ConstantTimeCompare(got, want) == 1
	if parseErr != nil || !match {
		return ErrPasswordMismatch
	}
	return nil
}

// PasswordHashParams returns the Argon2id parameters embedded in a PHC string.
func PasswordHashParams(encoded string) (Argon2idParams, error) {
	params, _, _, err := parsePHC(encoded)
	if err != nil {
		return Argon2idParams{}, err
	}
	return params, nil
}

func formatPHC(p Argon2idParams, salt, hash []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Time, p.Parallelism,
		util.B64Encode(salt), util.B64Encode(hash))
}

func parsePHC(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Argon2idParams{}, nil, nil, fmt.Errorf("malformed password hash")
	}
	if parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, fmt.Errorf("unsupported password hash algorithm %q", parts[1])
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2idParams{}, nil, nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}
	p, err := parsePHCParams(parts[3])
	if err != nil {
		return Argon2idParams{}, nil, nil, err
	}
	// From here on p is usable for a dummy run, so it is returned with errors.
	salt, err := util.B64Decode(parts[4])
	if err != nil {
		return p, nil, nil, &KDFError{Kind: KDFB64Encoding, Err: err}
	}
	hash, err := util.B64Decode(parts[5])
	if err != nil {
		return p, nil, nil, &KDFError{Kind: KDFB64Encoding, Err: err}
	}
	if len(salt) < MinSaltLen {
		return p, nil, nil, kdfError(KDFSaltTooShort)
	}
	if len(hash) < minOutputLen {
		return p, nil, nil, kdfError(KDFOutputTooShort)
	}
	p.KeyLen = uint32(len(hash))
	return p, salt, hash, nil
}

// parsePHCParams parses "m=..,t=..,p=.." and rejects costs outside the
// Argon2 limits or above the verification caps.
func parsePHCParams(s string) (Argon2idParams, error) {
	var p Argon2idParams
	if _, err := fmt.Sscanf(s, "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Parallelism); err != nil {
		return Argon2idParams{}, fmt.Errorf("parsing argon2 parameters: %w", err)
	}
	p.KeyLen = passwordHashLen
	if err := ValidateArgon2idParams(p); err != nil {
		return Argon2idParams{}, err
	}
	if p.MemoryKiB > maxVerifyMemoryKiB {
		return Argon2idParams{}, kdfError(KDFMemoryTooMuch)
	}
	if p.Time > maxVerifyTime {
		return Argon2idParams{}, kdfError(KDFTimeTooMuch)
	}
	return p, nil
}
