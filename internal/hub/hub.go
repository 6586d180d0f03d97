// Package hub fans domain events out to every connected observer in the
// order the scheduler produced them.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/me/onelane/pkg/model"
)

// Subscriber receives broadcast events. Deliver must not block; returning
// false detaches the subscriber.
type Subscriber interface {
	Deliver(ev model.Event) bool
}

// Recipient is a subscriber that also accepts frames addressed only to it.
type Recipient interface {
	Subscriber
	Reply(frame any) bool
}

// item is one queued delivery: a broadcast event, or a frame for a single
// recipient when to is set.
type item struct {
	ev    model.Event
	to    Recipient
	frame any
}

// Hub stamps events with a global sequence and dispatches them to
// subscribers from a single goroutine.
type Hub struct {
	mu      sync.Mutex
	seq     uint64
	pending []item
	subs    map[Subscriber]uint64 // subscriber -> last seq seen at join

	dispatchMu sync.Mutex
	signal     chan struct{}
	stopCh     chan struct{}
	doneCh     chan struct{}
	stopOnce   sync.Once
	started    atomic.Bool
	logger     *slog.Logger
}

// New creates a hub. Call Start to begin dispatching.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[Subscriber]uint64),
		signal: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger.With("component", "hub"),
	}
}

// Publish assigns sequence numbers and queues events for dispatch.
// It never performs I/O and is safe to call while holding other locks.
func (h *Hub) Publish(events ...model.Event) {
	if len(events) == 0 {
		return
	}
	h.mu.Lock()
	for _, ev := range events {
		h.seq++
		ev.Seq = h.seq
		h.pending = append(h.pending, item{ev: ev})
	}
	h.mu.Unlock()
	h.wake()
}

// PublishTo queues frame for to alone, behind every event already
// published. The frame carries no sequence number and is dropped if to has
// left by the time it is dispatched.
func (h *Hub) PublishTo(to Recipient, frame any) {
	h.mu.Lock()
	h.pending = append(h.pending, item{to: to, frame: frame})
	h.mu.Unlock()
	h.wake()
}

func (h *Hub) wake() {
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

// Join registers sub and returns the last published sequence. sub only
// receives events published after the call.
func (h *Hub) Join(sub Subscriber) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = h.seq
	return h.seq
}

// Leave unregisters sub. It is safe to call more than once.
func (h *Hub) Leave(sub Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// LastSeq returns the sequence of the most recently published event.
func (h *Hub) LastSeq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Start runs the dispatch loop. Blocks until ctx is cancelled or Stop is called.
func (h *Hub) Start(ctx context.Context) error {
	h.started.Store(true)
	h.logger.Info("hub started")
	defer close(h.doneCh)

	for {
		select {
		case <-ctx.Done():
			h.Dispatch()
			h.logger.Info("hub stopping (context cancelled)")
			return ctx.Err()
		case <-h.stopCh:
			h.Dispatch()
			h.logger.Info("hub stopping (stop called)")
			return nil
		case <-h.signal:
			h.Dispatch()
		}
	}
}

// Stop ends the dispatch loop and waits for it to return.
func (h *Hub) Stop() error {
	h.stopOnce.Do(func() { close(h.stopCh) })
	if h.started.Load() {
		<-h.doneCh
	}
	return nil
}

// Dispatch delivers every pending event and addressed frame and returns how
// many were handled. Each subscriber sees them in the order they were queued.
func (h *Hub) Dispatch() int {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	h.mu.Lock()
	batch := h.pending
	h.pending = nil
	subs := make(map[Subscriber]uint64, len(h.subs))
	for sub, joined := range h.subs {
		subs[sub] = joined
	}
	h.mu.Unlock()

	for _, it := range batch {
		if it.to != nil {
			if _, ok := subs[it.to]; ok && !it.to.Reply(it.frame) {
				h.logger.Warn("subscriber dropped on reply")
				delete(subs, it.to)
				h.Leave(it.to)
			}
			continue
		}
		ev := it.ev
		for sub, joined := range subs {
			if ev.Seq <= joined {
				continue
			}
			if !sub.Deliver(ev) {
				h.logger.Warn("subscriber dropped", "seq", ev.Seq, "type", ev.Type)
				delete(subs, sub)
				h.Leave(sub)
			}
		}
	}
	return len(batch)
}
