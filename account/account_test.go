package account

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/sealbox/crypto"
)

var fastParams = crypto.Argon2idParams{Time: 1, MemoryKiB: 64, Parallelism: 1, KeyLen: 32}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenFile(filepath.Join(t.TempDir(), "meta.db"), WithKDFParams(fastParams))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func keyBytes(t *testing.T, k *crypto.Key) []byte {
	t.Helper()
	buf, err := k.Open()
	require.NoError(t, err)
	defer buf.Destroy()
	return append([]byte(nil), buf.Bytes()...)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.Registered()
	require.NoError(t, err)
	require.False(t, ok)

	k1, err := s.Register([]byte("hunter2"))
	require.NoError(t, err)
	defer k1.Destroy()

	ok, err = s.Registered()
	require.NoError(t, err)
	require.True(t, ok)

	k2, err := s.Login([]byte("hunter2"))
	require.NoError(t, err)
	defer k2.Destroy()
	assert.Equal(t, keyBytes(t, k1), keyBytes(t, k2))

	_, err = s.Login([]byte("hunter3"))
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestRegisterTwice(t *testing.T) {
	s := newTestStore(t)
	k, err := s.Register([]byte("one"))
	require.NoError(t, err)
	k.Destroy()

	_, err = s.Register([]byte("two"))
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterEmptyPassword(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register(nil)
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestLoginNotRegistered(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Login([]byte("x"))
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestPasswordIsWiped(t *testing.T) {
	s := newTestStore(t)
	pw := []byte("wipe me")
	k, err := s.Register(pw)
	require.NoError(t, err)
	k.Destroy()
	assert.Equal(t, make([]byte, len(pw)), pw)

	login := []byte("wipe me")
	k, err = s.Login(login)
	require.NoError(t, err)
	k.Destroy()
	assert.Equal(t, make([]byte, len(login)), login)
}

func TestPasswordNormalization(t *testing.T) {
	s := newTestStore(t)
	k, err := s.Register([]byte("caf\u00e9"))
	require.NoError(t, err)
	k.Destroy()

	k, err = s.Login([]byte("cafe\u0301"))
	require.NoError(t, err)
	k.Destroy()
}

func TestProfileSaltsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	k, err := s.Register([]byte("pw"))
	require.NoError(t, err)
	k.Destroy()

	p, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, profileVersion, p.Ver)
	assert.Equal(t, fastParams, p.KDFParams)
	assert.NotContains(t, p.PasswordHash, p.KeySalt.String())

	hashParams, err := crypto.PasswordHashParams(p.PasswordHash)
	require.NoError(t, err)
	assert.Equal(t, fastParams.MemoryKiB, hashParams.MemoryKiB)
}

func TestChangePassword(t *testing.T) {
	s := newTestStore(t)
	orig, err := s.Register([]byte("old"))
	require.NoError(t, err)
	origBytes := keyBytes(t, orig)
	orig.Destroy()
	before, err := s.Profile()
	require.NoError(t, err)

	_, _, err = s.ChangePassword([]byte("wrong"), []byte("new"))
	require.ErrorIs(t, err, ErrInvalidPassword)

	oldKey, newKey, err := s.ChangePassword([]byte("old"), []byte("new"))
	require.NoError(t, err)
	defer oldKey.Destroy()
	defer newKey.Destroy()
	assert.Equal(t, origBytes, keyBytes(t, oldKey))
	assert.NotEqual(t, origBytes, keyBytes(t, newKey))

	after, err := s.Profile()
	require.NoError(t, err)
	assert.NotEqual(t, before.KeySalt, after.KeySalt)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)

	_, err = s.Login([]byte("old"))
	require.ErrorIs(t, err, ErrInvalidPassword)
	k, err := s.Login([]byte("new"))
	require.NoError(t, err)
	assert.Equal(t, keyBytes(t, newKey), keyBytes(t, k))
	k.Destroy()
}

func TestPreparedPasswordNotStoredUntilCommit(t *testing.T) {
	s := newTestStore(t)
	k, err := s.Register([]byte("old"))
	require.NoError(t, err)
	k.Destroy()

	oldKey, pending, err := s.PreparePasswordChange([]byte("old"), []byte("new"))
	require.NoError(t, err)
	defer oldKey.Destroy()
	defer pending.Key.Destroy()

	k, err = s.Login([]byte("old"))
	require.NoError(t, err)
	k.Destroy()

	require.NoError(t, s.CommitPassword(pending))
	_, err = s.Login([]byte("old"))
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	k, err := s.Register([]byte("pw"))
	require.NoError(t, err)
	k.Destroy()

	require.NoError(t, s.Reset())
	ok, err := s.Registered()
	require.NoError(t, err)
	require.False(t, ok)

	// Reset on an empty database is a no-op.
	require.NoError(t, s.Reset())

	k, err = s.Register([]byte("again"))
	require.NoError(t, err)
	k.Destroy()
}

func TestProfileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	s, err := OpenFile(path, WithKDFParams(fastParams))
	require.NoError(t, err)
	k, err := s.Register([]byte("persist"))
	require.NoError(t, err)
	want := keyBytes(t, k)
	k.Destroy()
	require.NoError(t, s.Close())

	s2, err := OpenFile(path)
	require.NoError(t, err)
	defer s2.Close()
	k, err = s2.Login([]byte("persist"))
	require.NoError(t, err)
	defer k.Destroy()
	assert.Equal(t, want, keyBytes(t, k))
}
