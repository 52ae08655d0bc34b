package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/sealbox/account"
	"github.com/jmcleod/sealbox/crypto"
	"github.com/jmcleod/sealbox/docstore"
)

var fastParams = crypto.Argon2idParams{Time: 1, MemoryKiB: 64, Parallelism: 1, KeyLen: 32}

func newTestCore(t *testing.T, dir string, transport Transport) *Core {
	t.Helper()
	c, err := New(Config{DataDir: dir, KDFParams: fastParams, Transport: transport})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func registeredCore(t *testing.T, transport Transport) *Core {
	t.Helper()
	c := newTestCore(t, t.TempDir(), transport)
	require.NoError(t, c.Register([]byte("password")))
	return c
}

func TestNewRequiresDataDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestRegisterCreatesDocuments(t *testing.T) {
	dir := t.TempDir()
	c := newTestCore(t, dir, nil)

	ok, err := c.Registered()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Register([]byte("password")))
	require.True(t, c.LoggedIn())

	for _, name := range []string{MetaFile, SettingsFile, ContactsFile, HistoryFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	s, err := c.Settings()
	require.NoError(t, err)
	assert.NotEmpty(t, s.Address)
	assert.Equal(t, ThemeSystem, s.Theme)
	assert.True(t, s.Notifications)

	require.ErrorIs(t, c.Register([]byte("again")), ErrAlreadyLoggedIn)
}

func TestLoginLogout(t *testing.T) {
	dir := t.TempDir()
	c := newTestCore(t, dir, nil)
	require.NoError(t, c.Register([]byte("password")))

	_, err := c.AddContact("Alice", "alice-addr")
	require.NoError(t, err)
	require.NoError(t, c.Logout())
	require.False(t, c.LoggedIn())
	require.ErrorIs(t, c.Logout(), ErrNotLoggedIn)

	_, err = c.Contacts()
	require.ErrorIs(t, err, ErrNotLoggedIn)

	require.ErrorIs(t, c.Login([]byte("wrong")), account.ErrInvalidPassword)
	require.NoError(t, c.Login([]byte("password")))
	require.ErrorIs(t, c.Login([]byte("password")), ErrAlreadyLoggedIn)

	contacts, err := c.Contacts()
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Alice", contacts[0].Name)
}

func TestStateSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Config{DataDir: dir, KDFParams: fastParams})
	require.NoError(t, err)
	require.NoError(t, c.Register([]byte("password")))
	_, err = c.UpdateSettings(Settings{DisplayName: "Me", Theme: ThemeDark})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c2 := newTestCore(t, dir, nil)
	require.NoError(t, c2.Login([]byte("password")))
	s, err := c2.Settings()
	require.NoError(t, err)
	assert.Equal(t, "Me", s.DisplayName)
	assert.Equal(t, ThemeDark, s.Theme)
	assert.False(t, s.Notifications)
}

func TestUpdateSettingsKeepsAddress(t *testing.T) {
	c := registeredCore(t, nil)
	before, err := c.Settings()
	require.NoError(t, err)

	after, err := c.UpdateSettings(Settings{Address: "spoofed", Theme: ThemeLight})
	require.NoError(t, err)
	assert.Equal(t, before.Address, after.Address)

	_, err = c.UpdateSettings(Settings{Theme: "neon"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestContacts(t *testing.T) {
	c := registeredCore(t, nil)

	bob, err := c.AddContact("Bob", "bob-addr")
	require.NoError(t, err)
	alice, err := c.AddContact("Alice", "alice-addr")
	require.NoError(t, err)

	_, err = c.AddContact("Bob again", "bob-addr")
	require.ErrorIs(t, err, ErrContactExists)
	_, err = c.AddContact("", "x")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	list, err := c.Contacts()
	require.NoError(t, err)
	require.Equal(t, []Contact{alice, bob}, list)

	got, err := c.Contact(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, got)

	require.NoError(t, c.RemoveContact(bob.ID))
	require.ErrorIs(t, c.RemoveContact(bob.ID), ErrContactNotFound)
	_, err = c.Contact(bob.ID)
	require.ErrorIs(t, err, ErrContactNotFound)
}

func TestSendAndReceive(t *testing.T) {
	ctx := context.Background()
	transport := NewLoopbackTransport()
	alice := registeredCore(t, transport)
	bob := registeredCore(t, transport)

	aliceSettings, err := alice.Settings()
	require.NoError(t, err)
	bobSettings, err := bob.Settings()
	require.NoError(t, err)

	bobAtAlice, err := alice.AddContact("Bob", bobSettings.Address)
	require.NoError(t, err)
	aliceAtBob, err := bob.AddContact("Alice", aliceSettings.Address)
	require.NoError(t, err)

	sent, err := alice.SendMessage(ctx, bobAtAlice.ID, "hi bob")
	require.NoError(t, err)
	assert.Equal(t, DirectionOutgoing, sent.Direction)
	assert.Equal(t, 1, transport.Pending(bobSettings.Address))

	received, err := bob.ReceiveMessages(ctx)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, sent.ID, received[0].ID)
	assert.Equal(t, "hi bob", received[0].Body)
	assert.Equal(t, aliceAtBob.ID, received[0].ContactID)
	assert.Equal(t, DirectionIncoming, received[0].Direction)

	again, err := bob.ReceiveMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	history, err := alice.Messages(bobAtAlice.ID)
	require.NoError(t, err)
	require.Equal(t, []Message{sent}, history)

	history, err = bob.Messages(aliceAtBob.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestReceiveDropsUnknownSender(t *testing.T) {
	ctx := context.Background()
	transport := NewLoopbackTransport()
	c := registeredCore(t, transport)
	s, err := c.Settings()
	require.NoError(t, err)

	require.NoError(t, transport.Send(ctx, Packet{ID: "m1", From: "stranger", To: s.Address, Body: []byte("spam")}))
	received, err := c.ReceiveMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, received)
	assert.Equal(t, 0, transport.Pending(s.Address))
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	c := registeredCore(t, nil)
	contact, err := c.AddContact("Bob", "bob")
	require.NoError(t, err)

	var verr *ValidationError
	_, err = c.SendMessage(ctx, contact.ID, "")
	require.ErrorAs(t, err, &verr)
	_, err = c.SendMessage(ctx, "missing", "hello")
	require.ErrorIs(t, err, ErrContactNotFound)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.SendMessage(canceled, contact.ID, "hello")
	require.ErrorIs(t, err, context.Canceled)
	history, err := c.Messages(contact.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRemoveContactDropsHistory(t *testing.T) {
	ctx := context.Background()
	c := registeredCore(t, nil)
	contact, err := c.AddContact("Bob", "bob")
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, contact.ID, "hello")
	require.NoError(t, err)

	require.NoError(t, c.RemoveContact(contact.ID))
	require.NoError(t, c.Logout())
	require.NoError(t, c.Login([]byte("password")))

	again, err := c.AddContact("Bob", "bob")
	require.NoError(t, err)
	history, err := c.Messages(again.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRemoveContactKeepsHistoryWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	c := registeredCore(t, nil)
	contact, err := c.AddContact("Bob", "bob")
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, contact.ID, "hello")
	require.NoError(t, err)

	c.session.history.key.Destroy()
	err = c.RemoveContact(contact.ID)
	require.ErrorIs(t, err, crypto.ErrKeyDestroyed)

	history := c.session.history.store.Document().Messages[contact.ID]
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Body)
}

func TestChangePassword(t *testing.T) {
	dir := t.TempDir()
	c := newTestCore(t, dir, nil)
	require.NoError(t, c.Register([]byte("old")))
	contact, err := c.AddContact("Alice", "alice")
	require.NoError(t, err)

	require.ErrorIs(t, c.ChangePassword([]byte("bad"), []byte("new")), account.ErrInvalidPassword)
	require.NoError(t, c.ChangePassword([]byte("old"), []byte("new")))

	// Session keeps working under the new keys.
	_, err = c.SendMessage(context.Background(), contact.ID, "after change")
	require.NoError(t, err)
	require.NoError(t, c.Logout())

	require.ErrorIs(t, c.Login([]byte("old")), account.ErrInvalidPassword)
	require.NoError(t, c.Login([]byte("new")))
	history, err := c.Messages(contact.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestDocumentsAreBoundToLabels(t *testing.T) {
	dir := t.TempDir()
	c := newTestCore(t, dir, nil)
	require.NoError(t, c.Register([]byte("password")))
	require.NoError(t, c.Logout())

	data, err := os.ReadFile(filepath.Join(dir, ContactsFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, HistoryFile), data, 0o600))

	err = c.Login([]byte("password"))
	require.Error(t, err)
	require.False(t, c.LoggedIn())
}

func TestRollbackRejected(t *testing.T) {
	dir := t.TempDir()
	c := newTestCore(t, dir, nil)
	require.NoError(t, c.Register([]byte("password")))
	old, err := os.ReadFile(filepath.Join(dir, ContactsFile))
	require.NoError(t, err)
	_, err = c.AddContact("Alice", "alice")
	require.NoError(t, err)
	require.NoError(t, c.Logout())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ContactsFile), old, 0o600))
	require.ErrorIs(t, c.Login([]byte("password")), docstore.ErrRollbackDetected)
}

func TestResetData(t *testing.T) {
	dir := t.TempDir()
	c := newTestCore(t, dir, nil)
	require.NoError(t, c.Register([]byte("password")))

	require.NoError(t, c.ResetData())
	require.False(t, c.LoggedIn())
	ok, err := c.Registered()
	require.NoError(t, err)
	require.False(t, ok)
	for _, name := range []string{SettingsFile, ContactsFile, HistoryFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.ErrorIs(t, err, os.ErrNotExist, name)
	}

	// Reset is repeatable and a new account can be created afterwards.
	require.NoError(t, c.ResetData())
	require.NoError(t, c.Register([]byte("fresh")))
	contacts, err := c.Contacts()
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestLoopbackTransport(t *testing.T) {
	ctx := context.Background()
	tr := NewLoopbackTransport()
	body := []byte("payload")
	require.NoError(t, tr.Send(ctx, Packet{ID: "1", To: "a", Body: body}))
	body[0] = 'X'

	got, err := tr.Receive(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("payload"), got[0].Body)

	got, err = tr.Receive(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}
