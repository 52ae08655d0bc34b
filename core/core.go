// Package core ties the account, the encrypted documents and the message
// transport together into the operations a messaging client exposes.
//
// Every document lives in its own file under Config.DataDir, encrypted with
// an HKDF subkey of the password-derived key. A Core serializes all calls
// with a mutex, since a docstore.Store has no locking of its own.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jmcleod/sealbox/account"
	"github.com/jmcleod/sealbox/crypto"
	"github.com/jmcleod/sealbox/docstore"
	"github.com/jmcleod/sealbox/internal/uuid"
)

// File names under Config.DataDir.
const (
	MetaFile     = "meta.db"
	SettingsFile = "settings.sbx"
	ContactsFile = "contacts.sbx"
	HistoryFile  = "history.sbx"
)

// Document labels, also used as HKDF info for the per-document subkeys.
const (
	settingsLabel = "settings"
	contactsLabel = "contacts"
	historyLabel  = "history"
)

// Config configures a Core.
type Config struct {
	// DataDir holds the account database and the document files. It is
	// created with mode 0700 if missing.
	DataDir string
	// KDFParams overrides the Argon2id parameters for new registrations
	// and password changes. Zero value: the defaults.
	KDFParams crypto.Argon2idParams
	// Transport carries messages. Default: a private LoopbackTransport.
	Transport Transport
	// Logger receives structured logs. Default: discard.
	Logger *slog.Logger
}

// Core is the client orchestrator.
type Core struct {
	dataDir     string
	logger      *slog.Logger
	transport   Transport
	accounts    *account.Store
	generations *docstore.BoltGenerationCache
	now         func() time.Time

	mu      sync.Mutex
	session *session
}

// New opens the data directory and the account database.
func New(cfg Config) (*Core, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("data dir must not be empty")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "core")

	accountOpts := []account.Option{account.WithLogger(logger)}
	if cfg.KDFParams != (crypto.Argon2idParams{}) {
		accountOpts = append(accountOpts, account.WithKDFParams(cfg.KDFParams))
	}
	accounts, err := account.OpenFile(filepath.Join(cfg.DataDir, MetaFile), accountOpts...)
	if err != nil {
		return nil, err
	}
	generations, err := docstore.NewBoltGenerationCache(accounts.DB())
	if err != nil {
		_ = accounts.Close()
		return nil, err
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewLoopbackTransport()
	}
	return &Core{
		dataDir:     cfg.DataDir,
		logger:      logger,
		transport:   transport,
		accounts:    accounts,
		generations: generations,
		now:         time.Now,
	}, nil
}

// DataDir returns the configured data directory.
func (c *Core) DataDir() string { return c.dataDir }

// Registered reports whether an account exists.
func (c *Core) Registered() (bool, error) {
	return c.accounts.Registered()
}

// LoggedIn reports whether a session is open.
func (c *Core) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Register creates the account, creates fresh documents and logs in. The
// password slice is wiped.
func (c *Core) Register(password []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return ErrAlreadyLoggedIn
	}
	key, err := c.accounts.Register(password)
	if err != nil {
		return err
	}
	defer key.Destroy()
	s, err := c.openSession(key, true)
	if err != nil {
		return err
	}
	c.session = s
	c.logger.Info("registered")
	return nil
}

// Login verifies the password and opens the documents. The password slice
// is wiped.
func (c *Core) Login(password []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return ErrAlreadyLoggedIn
	}
	key, err := c.accounts.Login(password)
	if err != nil {
		return err
	}
	defer key.Destroy()
	s, err := c.openSession(key, false)
	if err != nil {
		return err
	}
	c.session = s
	c.logger.Info("logged in")
	return nil
}

// Logout saves and closes the documents and destroys the session keys.
func (c *Core) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNotLoggedIn
	}
	err := c.session.close()
	c.session = nil
	c.logger.Info("logged out")
	return err
}

// Settings returns the current settings.
func (c *Core) Settings() (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Settings{}, ErrNotLoggedIn
	}
	return c.session.settings.store.Document(), nil
}

// UpdateSettings replaces the editable settings. The address is kept.
func (c *Core) UpdateSettings(next Settings) (Settings, error) {
	if err := validateSettings(next); err != nil {
		return Settings{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Settings{}, ErrNotLoggedIn
	}
	doc := c.session.settings.store.Mutate()
	prev := *doc
	next.Address = doc.Address
	*doc = next
	if err := c.session.settings.save(); err != nil {
		*doc = prev
		return Settings{}, err
	}
	return next, nil
}

// AddContact stores a new contact with a fresh ID.
func (c *Core) AddContact(name, address string) (Contact, error) {
	if err := validateContact(name, address); err != nil {
		return Contact{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Contact{}, ErrNotLoggedIn
	}
	doc := c.session.contacts.store.Mutate()
	if _, ok := doc.byAddress(address); ok {
		return Contact{}, fmt.Errorf("%s: %w", address, ErrContactExists)
	}
	contact := Contact{
		ID:        uuid.New(),
		Name:      name,
		Address:   address,
		CreatedAt: c.now().UTC(),
	}
	doc.Entries[contact.ID] = contact
	if err := c.session.contacts.save(); err != nil {
		delete(doc.Entries, contact.ID)
		return Contact{}, err
	}
	c.logger.Debug("contact added", "contact_id", contact.ID)
	return contact, nil
}

// RemoveContact deletes a contact and its message history.
func (c *Core) RemoveContact(contactID string) error {
	if err := validateID(contactID, "contact ID"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNotLoggedIn
	}
	contacts := c.session.contacts.store.Mutate()
	contact, ok := contacts.Entries[contactID]
	if !ok {
		return fmt.Errorf("%s: %w", contactID, ErrContactNotFound)
	}
	delete(contacts.Entries, contactID)
	if err := c.session.contacts.save(); err != nil {
		contacts.Entries[contactID] = contact
		return err
	}

	history := c.session.history.store.Mutate()
	if msgs, ok := history.Messages[contactID]; ok {
		delete(history.Messages, contactID)
		if err := c.session.history.save(); err != nil {
			history.Messages[contactID] = msgs
			return err
		}
	}
	c.logger.Debug("contact removed", "contact_id", contactID)
	return nil
}

// Contact returns one contact.
func (c *Core) Contact(contactID string) (Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Contact{}, ErrNotLoggedIn
	}
	contact, ok := c.session.contacts.store.Document().Entries[contactID]
	if !ok {
		return Contact{}, fmt.Errorf("%s: %w", contactID, ErrContactNotFound)
	}
	return contact, nil
}

// Contacts returns all contacts ordered by name.
func (c *Core) Contacts() ([]Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotLoggedIn
	}
	entries := c.session.contacts.store.Document().Entries
	out := make([]Contact, 0, len(entries))
	for _, contact := range entries {
		out = append(out, contact)
	}
	slices.SortFunc(out, func(a, b Contact) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// SendMessage hands body to the transport and records it in the history.
func (c *Core) SendMessage(ctx context.Context, contactID, body string) (Message, error) {
	if err := validateID(contactID, "contact ID"); err != nil {
		return Message{}, err
	}
	if err := validateMessageBody(body); err != nil {
		return Message{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Message{}, ErrNotLoggedIn
	}
	contact, ok := c.session.contacts.store.Document().Entries[contactID]
	if !ok {
		return Message{}, fmt.Errorf("%s: %w", contactID, ErrContactNotFound)
	}

	msg := Message{
		ID:        uuid.New(),
		ContactID: contactID,
		Direction: DirectionOutgoing,
		Body:      body,
		Timestamp: c.now().UTC(),
	}
	err := c.transport.Send(ctx, Packet{
		ID:     msg.ID,
		From:   c.session.settings.store.Document().Address,
		To:     contact.Address,
		Body:   []byte(body),
		SentAt: msg.Timestamp,
	})
	if err != nil {
		return Message{}, fmt.Errorf("sending message: %w", err)
	}

	if err := c.session.appendMessages(msg); err != nil {
		return Message{}, err
	}
	c.logger.Debug("message sent", "contact_id", contactID, "message_id", msg.ID)
	return msg, nil
}

// ReceiveMessages pulls queued packets from the transport and records the
// ones sent by known contacts. Packets from unknown senders are dropped.
func (c *Core) ReceiveMessages(ctx context.Context) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotLoggedIn
	}
	packets, err := c.transport.Receive(ctx, c.session.settings.store.Document().Address)
	if err != nil {
		return nil, fmt.Errorf("receiving messages: %w", err)
	}

	contacts := c.session.contacts.store.Document()
	var received []Message
	for _, p := range packets {
		contact, ok := contacts.byAddress(p.From)
		if !ok {
			c.logger.Warn("dropping message from unknown sender", "message_id", p.ID)
			continue
		}
		if err := validateMessageBody(string(p.Body)); err != nil {
			c.logger.Warn("dropping invalid message", "message_id", p.ID, "error", err)
			continue
		}
		id := p.ID
		if !uuid.Valid(id) {
			id = uuid.New()
		}
		received = append(received, Message{
			ID:        id,
			ContactID: contact.ID,
			Direction: DirectionIncoming,
			Body:      string(p.Body),
			Timestamp: p.SentAt.UTC(),
		})
	}
	if len(received) == 0 {
		return nil, nil
	}
	if err := c.session.appendMessages(received...); err != nil {
		return nil, err
	}
	c.logger.Debug("messages received", "count", len(received))
	return received, nil
}

// Messages returns the conversation with a contact, oldest first.
func (c *Core) Messages(contactID string) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotLoggedIn
	}
	if _, ok := c.session.contacts.store.Document().Entries[contactID]; !ok {
		return nil, fmt.Errorf("%s: %w", contactID, ErrContactNotFound)
	}
	return slices.Clone(c.session.history.store.Document().Messages[contactID]), nil
}

// ChangePassword re-encrypts every document under a key derived from
// newPassword. Both password slices are wiped.
//
// Documents are re-encrypted before the new profile is stored. If that
// fails, documents already rewritten are restored under the old key.
func (c *Core) ChangePassword(oldPassword, newPassword []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNotLoggedIn
	}
	oldKey, pending, err := c.accounts.PreparePasswordChange(oldPassword, newPassword)
	if err != nil {
		return err
	}
	defer oldKey.Destroy()
	defer pending.Key.Destroy()

	if err := c.session.rekey(pending.Key); err != nil {
		return err
	}
	if err := c.accounts.CommitPassword(pending); err != nil {
		if rerr := c.session.rekey(oldKey); rerr != nil {
			c.logger.Error("restoring documents after failed password change", "error", rerr)
		}
		return err
	}
	c.logger.Info("password changed")
	return nil
}

// ResetData ends the session, deletes every document and the account.
func (c *Core) ResetData() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.discard()
		c.session = nil
	}
	for _, name := range []string{SettingsFile, ContactsFile, HistoryFile} {
		err := docstore.Remove(filepath.Join(c.dataDir, name))
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
	}
	if err := c.accounts.Reset(); err != nil {
		return err
	}
	c.logger.Info("data reset")
	return nil
}

// Close logs out if needed and closes the account database.
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.session != nil {
		errs = append(errs, c.session.close())
		c.session = nil
	}
	errs = append(errs, c.generations.Close(), c.accounts.Close())
	return errors.Join(errs...)
}
