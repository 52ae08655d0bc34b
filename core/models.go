package core

import "time"

// Limits on caller input.
const (
	MaxIDLength          = 256
	MaxNameLength        = 256
	MaxAddressLength     = 512
	MaxMessageSize       = 64 * 1024
	MaxDisplayNameLength = 256
)

// Themes accepted in Settings.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Settings is the user's preferences document. Address is assigned at
// registration and identifies this client to the transport.
type Settings struct {
	Address       string `cbor:"address" json:"address"`
	DisplayName   string `cbor:"display_name" json:"display_name"`
	Theme         string `cbor:"theme" json:"theme"`
	Notifications bool   `cbor:"notifications" json:"notifications"`
}

func (s *Settings) Default() {
	s.Theme = ThemeSystem
	s.Notifications = true
}

// Contact is a known peer.
type Contact struct {
	ID        string    `cbor:"id" json:"id"`
	Name      string    `cbor:"name" json:"name"`
	Address   string    `cbor:"address" json:"address"`
	CreatedAt time.Time `cbor:"created_at" json:"created_at"`
}

// Contacts is the address book document, keyed by contact ID.
type Contacts struct {
	Entries map[string]Contact `cbor:"entries"`
}

func (c *Contacts) Default() {
	c.Entries = make(map[string]Contact)
}

func (c *Contacts) byAddress(address string) (Contact, bool) {
	for _, contact := range c.Entries {
		if contact.Address == address {
			return contact, true
		}
	}
	return Contact{}, false
}

// Direction tells whether a message was sent or received.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Message is one entry in a conversation.
type Message struct {
	ID        string    `cbor:"id" json:"id"`
	ContactID string    `cbor:"contact_id" json:"contact_id"`
	Direction Direction `cbor:"direction" json:"direction"`
	Body      string    `cbor:"body" json:"body"`
	Timestamp time.Time `cbor:"timestamp" json:"timestamp"`
}

// History is the message history document, keyed by contact ID.
type History struct {
	Messages map[string][]Message `cbor:"messages"`
}

func (h *History) Default() {
	h.Messages = make(map[string][]Message)
}
