package core

import (
	"context"
	"sync"
	"time"

	"github.com/jmcleod/sealbox/internal/util"
)

// Packet is the unit a Transport carries. The transport only moves bytes
// between addresses and never sees key material.
type Packet struct {
	ID     string
	From   string
	To     string
	Body   []byte
	SentAt time.Time
}

// Transport delivers packets between client addresses.
type Transport interface {
	Send(ctx context.Context, p Packet) error
	// Receive returns and removes the packets queued for address.
	Receive(ctx context.Context, address string) ([]Packet, error)
}

// LoopbackTransport is an in-process mailbox. Every client sharing one
// LoopbackTransport can reach every other.
type LoopbackTransport struct {
	mu      sync.Mutex
	mailbox map[string][]Packet
}

// NewLoopbackTransport returns an empty in-process transport.
func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{mailbox: make(map[string][]Packet)}
}

func (t *LoopbackTransport) Send(ctx context.Context, p Packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Body = util.CopyBytes(p.Body)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mailbox[p.To] = append(t.mailbox[p.To], p)
	return nil
}

func (t *LoopbackTransport) Receive(ctx context.Context, address string) ([]Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	packets := t.mailbox[address]
	delete(t.mailbox, address)
	return packets, nil
}

// Pending returns the number of packets queued for address.
func (t *LoopbackTransport) Pending(address string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.mailbox[address])
}
