package store

import (
	"context"

	"github.com/me/onelane/pkg/model"
)

// Store persists the broadcast event journal. The journal is audit history
// only; vehicle state is never restored from it.
type Store interface {
	// AppendEvent records one broadcast event.
	AppendEvent(ctx context.Context, ev model.Event) (*model.JournalEntry, error)
	// ListEvents returns entries newest first, optionally filtered by type.
	ListEvents(ctx context.Context, opts model.ListOptions) ([]*model.JournalEntry, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
