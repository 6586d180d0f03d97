package hub

import (
	"sync"

	"github.com/me/onelane/pkg/model"
)

// WriteFunc writes one frame to the underlying connection.
type WriteFunc func(frame any) error

// Peer is a subscriber with a bounded outbox drained by its own writer
// goroutine. Broadcasts and direct replies share the outbox, so a single
// goroutine writes to the connection.
type Peer struct {
	ID string

	out       chan any
	done      chan struct{}
	closeOnce sync.Once
	write     WriteFunc
}

// NewPeer creates a peer buffering up to buffer frames.
func NewPeer(id string, buffer int, write WriteFunc) *Peer {
	if buffer < 1 {
		buffer = 1
	}
	return &Peer{
		ID:    id,
		out:   make(chan any, buffer),
		done:  make(chan struct{}),
		write: write,
	}
}

// Deliver implements Subscriber.
func (p *Peer) Deliver(ev model.Event) bool {
	return p.Send(ev)
}

// Reply implements Recipient.
func (p *Peer) Reply(frame any) bool {
	return p.Send(frame)
}

// Send queues a frame without blocking. A full outbox closes the peer.
func (p *Peer) Send(frame any) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.out <- frame:
		return true
	default:
		p.Close()
		return false
	}
}

// Run writes queued frames until the peer is closed or a write fails.
func (p *Peer) Run() error {
	for {
		select {
		case <-p.done:
			return nil
		case frame := <-p.out:
			if err := p.write(frame); err != nil {
				p.Close()
				return err
			}
		}
	}
}

// Close stops the writer. Queued frames are discarded.
func (p *Peer) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Done is closed once the peer stops.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}
