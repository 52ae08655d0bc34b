// Package account keeps the single local user profile in a BBolt database
// and turns a password into the document encryption key.
//
// The profile holds two independent artifacts: the salt and Argon2id
// parameters used to derive the encryption key, and a PHC credential hash
// used only to check the password at login.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/sealbox/crypto"
	"github.com/jmcleod/sealbox/internal/util"
)

const profileVersion = 1

var (
	profileBucket = []byte("profile")
	profileKey    = []byte("current")
)

var (
	ErrAlreadyRegistered = errors.New("account already registered")
	ErrNotRegistered     = errors.New("account not registered")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrEmptyPassword     = errors.New("password must not be empty")
)

// Profile is the persisted account record. It contains no secret material.
type Profile struct {
	Ver          int                   `json:"ver"`
	KeySalt      crypto.Salt           `json:"key_salt"`
	KDFParams    crypto.Argon2idParams `json:"kdf_params"`
	PasswordHash string                `json:"password_hash"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Store manages the profile record.
type Store struct {
	db        *bbolt.DB
	ownsDB    bool
	kdfParams crypto.Argon2idParams
	logger    *slog.Logger
	now       func() time.Time

	// Serializes password changes against logins.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithKDFParams sets the Argon2id parameters for new registrations and
// password changes. Existing profiles keep the parameters they were
// created with.
func WithKDFParams(params crypto.Argon2idParams) Option {
	return func(s *Store) {
		s.kdfParams = params
	}
}

// WithLogger sets the structured logger. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Store backed by db. The caller keeps ownership of db.
func New(db *bbolt.DB, opts ...Option) *Store {
	s := &Store{
		db:        db,
		kdfParams: crypto.DefaultArgon2idParams(),
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenFile opens (or creates) the BBolt database at path and returns a
// Store that owns it.
func OpenFile(path string, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s := New(db, opts...)
	s.ownsDB = true
	return s, nil
}

// DB exposes the underlying database so other components can keep their
// own buckets next to the profile.
func (s *Store) DB() *bbolt.DB { return s.db }

// Close closes the database if the Store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// Registered reports whether a profile exists.
func (s *Store) Registered() (bool, error) {
	_, err := s.Profile()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotRegistered):
		return false, nil
	default:
		return false, err
	}
}

// Profile returns the stored profile.
func (s *Store) Profile() (Profile, error) {
	var p Profile
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(profileBucket)
		if b == nil {
			return ErrNotRegistered
		}
		data := b.Get(profileKey)
		if data == nil {
			return ErrNotRegistered
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Store) putProfile(p Profile, mustNotExist bool) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(profileBucket)
		if err != nil {
			return err
		}
		if mustNotExist && b.Get(profileKey) != nil {
			return ErrAlreadyRegistered
		}
		return b.Put(profileKey, data)
	})
}

// newProfile derives a fresh key salt and credential hash for password.
func (s *Store) newProfile(password []byte) (Profile, *crypto.Key, error) {
	keySalt, err := crypto.GenerateSalt()
	if err != nil {
		return Profile{}, nil, fmt.Errorf("generating key salt: %w", err)
	}
	params := s.kdfParams
	params.KeyLen = crypto.KeySize
	kdf := crypto.WithKDFParams(params)

	hash, err := crypto.HashPassword(password, kdf)
	if err != nil {
		return Profile{}, nil, fmt.Errorf("hashing password: %w", err)
	}
	key, err := crypto.DeriveKeyFromPassword(password, keySalt, kdf)
	if err != nil {
		return Profile{}, nil, fmt.Errorf("deriving key: %w", err)
	}
	now := s.now().UTC()
	return Profile{
		Ver:          profileVersion,
		KeySalt:      keySalt,
		KDFParams:    params,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, key, nil
}

// Register creates the profile and returns the derived encryption key.
// The password slice is wiped before returning.
func (s *Store) Register(password []byte) (*crypto.Key, error) {
	defer util.WipeBytes(password)
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.Registered(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyRegistered
	}

	pw := util.NormalizeBytes(password)
	defer util.WipeBytes(pw)

	p, key, err := s.newProfile(pw)
	if err != nil {
		return nil, err
	}
	if err := s.putProfile(p, true); err != nil {
		key.Destroy()
		return nil, err
	}
	s.logger.Info("account registered",
		"kdf_time", p.KDFParams.Time,
		"kdf_memory_kib", p.KDFParams.MemoryKiB,
		"kdf_parallelism", p.KDFParams.Parallelism,
	)
	return key, nil
}

// Login verifies password against the credential hash and derives the
// encryption key. The password slice is wiped before returning.
func (s *Store) Login(password []byte) (*crypto.Key, error) {
	defer util.WipeBytes(password)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login(password)
}

func (s *Store) login(password []byte) (*crypto.Key, error) {
	p, err := s.Profile()
	if err != nil {
		return nil, err
	}
	pw := util.NormalizeBytes(password)
	defer util.WipeBytes(pw)

	if err := crypto.VerifyPassword(pw, p.PasswordHash); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return nil, ErrInvalidPassword
		}
		return nil, err
	}
	key, err := crypto.DeriveKeyFromPassword(pw, p.KeySalt, crypto.WithKDFParams(p.KDFParams))
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// ChangePassword verifies oldPassword, stores a new key salt and credential
// hash for newPassword, and returns both keys so the caller can re-encrypt
// its documents. The caller must Destroy both keys. Both password slices
// are wiped before returning.
//
// The new profile is written before the caller re-encrypts; callers that
// need crash safety across the two steps must re-encrypt first and call
// CommitPassword afterwards.
func (s *Store) ChangePassword(oldPassword, newPassword []byte) (oldKey, newKey *crypto.Key, err error) {
	oldKey, pending, err := s.PreparePasswordChange(oldPassword, newPassword)
	if err != nil {
		return nil, nil, err
	}
	if err := s.CommitPassword(pending); err != nil {
		oldKey.Destroy()
		pending.Key.Destroy()
		return nil, nil, err
	}
	return oldKey, pending.Key, nil
}

// PendingPassword is a derived but not yet stored password change.
type PendingPassword struct {
	Key     *crypto.Key
	profile Profile
}

// PreparePasswordChange verifies oldPassword and derives the profile and
// key for newPassword without storing anything.
func (s *Store) PreparePasswordChange(oldPassword, newPassword []byte) (*crypto.Key, *PendingPassword, error) {
	defer util.WipeBytes(oldPassword)
	defer util.WipeBytes(newPassword)
	if len(newPassword) == 0 {
		return nil, nil, ErrEmptyPassword
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey, err := s.login(oldPassword)
	if err != nil {
		return nil, nil, err
	}
	current, err := s.Profile()
	if err != nil {
		oldKey.Destroy()
		return nil, nil, err
	}

	pw := util.NormalizeBytes(newPassword)
	defer util.WipeBytes(pw)
	p, newKey, err := s.newProfile(pw)
	if err != nil {
		oldKey.Destroy()
		return nil, nil, err
	}
	p.CreatedAt = current.CreatedAt
	return oldKey, &PendingPassword{Key: newKey, profile: p}, nil
}

// CommitPassword stores a prepared password change.
func (s *Store) CommitPassword(pending *PendingPassword) error {
	if pending == nil {
		return errors.New("nil pending password")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putProfile(pending.profile, false); err != nil {
		return err
	}
	s.logger.Info("account password changed")
	return nil
}

// Reset deletes the profile. Documents encrypted under the old key become
// unreadable.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(profileBucket) == nil {
			return nil
		}
		return tx.DeleteBucket(profileBucket)
	})
	if err != nil {
		return err
	}
	s.logger.Info("account reset")
	return nil
}
