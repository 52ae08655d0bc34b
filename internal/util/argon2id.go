package util

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

// Named KDF profiles.
const (
	KDFProfileInteractive = "interactive"
	KDFProfileModerate    = "moderate"
	KDFProfileSensitive   = "sensitive"
)

var argon2idProfiles = map[string]Argon2idParams{
	KDFProfileInteractive: {Time: 2, MemoryKiB: 19 * 1024, Parallelism: 1, KeyLen: 32},
	KDFProfileModerate:    {Time: 3, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32},
	KDFProfileSensitive:   {Time: 4, MemoryKiB: 128 * 1024, Parallelism: 4, KeyLen: 32},
}

// DefaultArgon2idParams returns the interactive profile, which matches the
// reference Argon2id defaults (m=19456, t=2, p=1).
func DefaultArgon2idParams() Argon2idParams {
	return argon2idProfiles[KDFProfileInteractive]
}

// Argon2idProfile returns the parameters for a named profile.
func Argon2idProfile(name string) (Argon2idParams, error) {
	p, ok := argon2idProfiles[name]
	if !ok {
		return Argon2idParams{}, fmt.Errorf("unknown argon2id profile %q", name)
	}
	return p, nil
}

// DeriveArgon2idKey runs Argon2id. Parameter bounds are the caller's concern.
func DeriveArgon2idKey(password, salt []byte, params Argon2idParams) []byte {
	return argon2.IDKey(password, salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
}
