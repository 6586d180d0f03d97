package store

import (
	"context"
	"log/slog"

	"github.com/me/onelane/internal/hub"
	"github.com/me/onelane/pkg/model"
)

// Journal is a hub subscriber that appends every broadcast event to a Store
// from its own goroutine, keeping database writes off the scheduler lock.
type Journal struct {
	peer   *hub.Peer
	store  Store
	ctx    context.Context
	logger *slog.Logger
}

// NewJournal creates a journal buffering up to buffer events.
func NewJournal(st Store, buffer int, logger *slog.Logger) *Journal {
	j := &Journal{
		store:  st,
		ctx:    context.Background(),
		logger: logger.With("component", "journal"),
	}
	j.peer = hub.NewPeer("journal", buffer, j.write)
	return j
}

// Deliver implements hub.Subscriber.
func (j *Journal) Deliver(ev model.Event) bool {
	if !j.peer.Deliver(ev) {
		j.logger.Warn("journal overflow, detaching", "seq", ev.Seq)
		return false
	}
	return true
}

// Run writes events until ctx is cancelled or Close is called.
func (j *Journal) Run(ctx context.Context) {
	j.ctx = ctx
	go func() {
		<-ctx.Done()
		j.peer.Close()
	}()
	_ = j.peer.Run()
}

// Close stops the journal writer.
func (j *Journal) Close() {
	j.peer.Close()
}

func (j *Journal) write(frame any) error {
	ev, ok := frame.(model.Event)
	if !ok {
		return nil
	}
	if _, err := j.store.AppendEvent(j.ctx, ev); err != nil {
		j.logger.Error("append event", "seq", ev.Seq, "type", ev.Type, "error", err)
	}
	return nil
}
