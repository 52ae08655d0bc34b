package core

import (
	"errors"
	"path/filepath"

	"github.com/jmcleod/sealbox/crypto"
	"github.com/jmcleod/sealbox/docstore"
	"github.com/jmcleod/sealbox/internal/uuid"
)

// document pairs a Store with its subkey.
type document[D any] struct {
	label string
	store *docstore.Store[D]
	key   *crypto.Key
}

// sealed is the type-erased view of a document used for bulk operations.
type sealed interface {
	docLabel() string
	save() error
	saveWith(key *crypto.Key) error
	swapKey(key *crypto.Key) *crypto.Key
	close() error
	discard()
}

func openDocument[D any](c *Core, name, label string, master *crypto.Key, create bool) (*document[D], error) {
	key, err := master.Subkey(label)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(c.dataDir, name)
	opts := []docstore.Option{
		docstore.WithLabel(label),
		docstore.WithGenerationCache(c.generations),
		docstore.WithLogger(c.logger.With("document", label)),
	}
	var store *docstore.Store[D]
	if create {
		store, err = docstore.Create[D](path, key, opts...)
	} else {
		store, err = docstore.Open[D](path, key, opts...)
	}
	if err != nil {
		key.Destroy()
		return nil, err
	}
	return &document[D]{label: label, store: store, key: key}, nil
}

func (d *document[D]) docLabel() string { return d.label }

func (d *document[D]) save() error {
	return d.store.Save(d.key)
}

func (d *document[D]) saveWith(key *crypto.Key) error {
	return d.store.Save(key)
}

func (d *document[D]) swapKey(key *crypto.Key) *crypto.Key {
	old := d.key
	d.key = key
	return old
}

func (d *document[D]) close() error {
	err := d.store.Close(d.key)
	d.key.Destroy()
	return err
}

func (d *document[D]) discard() {
	d.key.Destroy()
}

// session holds the open documents of a logged-in user. The master key is
// not retained; each document keeps only its own subkey.
type session struct {
	settings *document[Settings]
	contacts *document[Contacts]
	history  *document[History]
}

func (c *Core) openSession(master *crypto.Key, create bool) (*session, error) {
	s := &session{}
	var err error
	if s.settings, err = openDocument[Settings](c, SettingsFile, settingsLabel, master, create); err != nil {
		return nil, err
	}
	if s.contacts, err = openDocument[Contacts](c, ContactsFile, contactsLabel, master, create); err != nil {
		s.discard()
		return nil, err
	}
	if s.history, err = openDocument[History](c, HistoryFile, historyLabel, master, create); err != nil {
		s.discard()
		return nil, err
	}
	if doc := s.settings.store.Mutate(); doc.Address == "" {
		doc.Address = uuid.New()
		if err := s.settings.save(); err != nil {
			s.discard()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) documents() []sealed {
	var docs []sealed
	if s.settings != nil {
		docs = append(docs, s.settings)
	}
	if s.contacts != nil {
		docs = append(docs, s.contacts)
	}
	if s.history != nil {
		docs = append(docs, s.history)
	}
	return docs
}

func (s *session) close() error {
	var errs []error
	for _, d := range s.documents() {
		errs = append(errs, d.close())
	}
	return errors.Join(errs...)
}

func (s *session) discard() {
	for _, d := range s.documents() {
		d.discard()
	}
}

// rekey re-encrypts every document under subkeys of master. On failure the
// documents already rewritten are saved again under their current keys.
func (s *session) rekey(master *crypto.Key) error {
	docs := s.documents()
	keys := make([]*crypto.Key, 0, len(docs))
	destroyKeys := func() {
		for _, k := range keys {
			k.Destroy()
		}
	}
	for _, d := range docs {
		k, err := master.Subkey(d.docLabel())
		if err != nil {
			destroyKeys()
			return err
		}
		keys = append(keys, k)
	}

	for i, d := range docs {
		if err := d.saveWith(keys[i]); err != nil {
			var errs []error
			for _, done := range docs[:i] {
				errs = append(errs, done.save())
			}
			destroyKeys()
			return errors.Join(append([]error{err}, errs...)...)
		}
	}
	for i, d := range docs {
		d.swapKey(keys[i]).Destroy()
	}
	return nil
}

// appendMessages adds msgs to the history and saves it, rolling the
// in-memory history back if the save fails.
func (s *session) appendMessages(msgs ...Message) error {
	doc := s.history.store.Mutate()
	prev := make(map[string]int, len(msgs))
	for _, m := range msgs {
		if _, ok := prev[m.ContactID]; !ok {
			prev[m.ContactID] = len(doc.Messages[m.ContactID])
		}
		doc.Messages[m.ContactID] = append(doc.Messages[m.ContactID], m)
	}
	if err := s.history.save(); err != nil {
		for id, n := range prev {
			if n == 0 {
				delete(doc.Messages, id)
			} else {
				doc.Messages[id] = doc.Messages[id][:n]
			}
		}
		return err
	}
	return nil
}
