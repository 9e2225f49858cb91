// Package stream implements the tail-following core of the live feed:
// a cursor per subscriber, a poller that computes "what's new since the
// cursor", and a session that drives repeated polling against one
// connection. The transport (SSE, websocket) is a thin Sink adapter so
// this package stays testable without an HTTP stack.
package stream

import (
	"context"

	"github.com/isdelr/msgboard-be/internal/models"
)

// Store is the slice of the message store the stream needs.
type Store interface {
	// MessagesAfter returns all messages with id > afterID, ascending.
	MessagesAfter(ctx context.Context, afterID int64) ([]models.Message, error)
	// LatestMessageID returns the highest assigned id, or 0 when empty.
	LatestMessageID(ctx context.Context) (int64, error)
}

// Cursor tracks the highest message id already delivered to one
// subscriber. It is owned by exactly one session and never shared.
type Cursor struct {
	LastDeliveredID int64
}

// Poller computes ordered batches of messages newer than a cursor.
type Poller struct {
	store Store
}

// NewPoller creates a Poller over the given store.
func NewPoller(store Store) *Poller {
	return &Poller{store: store}
}

// Poll returns the messages with id strictly greater than the cursor, in
// ascending id order, together with the advanced cursor. An empty batch
// leaves the cursor unchanged. Because ids are strictly increasing and
// the filter is a strict greater-than, successive polls with the
// returned cursors never deliver a message twice.
func (p *Poller) Poll(ctx context.Context, cur Cursor) ([]models.Message, Cursor, error) {
	batch, err := p.store.MessagesAfter(ctx, cur.LastDeliveredID)
	if err != nil {
		return nil, cur, err
	}
	if len(batch) == 0 {
		return nil, cur, nil
	}
	cur.LastDeliveredID = batch[len(batch)-1].ID
	return batch, cur, nil
}
