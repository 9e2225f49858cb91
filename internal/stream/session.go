package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/msgboard-be/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle phase of a Session.
type State int32

const (
	StateInitializing State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Sink receives serialized event frames for one subscriber. A Send error
// is treated as a dead connection and ends the session.
type Sink interface {
	Send(frame []byte) error
}

// SessionConfig carries the tunables of a stream session.
type SessionConfig struct {
	// PollInterval is the pause between tail polls.
	PollInterval time.Duration
	// IdleTimeout closes the session if no frame was delivered for this
	// long. Zero disables it.
	IdleTimeout time.Duration
}

// Session binds a tail poller to one subscriber connection. The cursor
// starts at the store's current maximum id, so subscribers only receive
// messages created after they connect; backlog is served by the paged
// list endpoint instead.
type Session struct {
	id     string
	poller *Poller
	store  Store
	sink   Sink
	cfg    SessionConfig
	cursor Cursor
	state  atomic.Int32
	logger zerolog.Logger
}

// NewSession creates a session over the given store and sink.
func NewSession(store Store, sink Sink, cfg SessionConfig) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	id := uuid.New().String()
	return &Session{
		id:     id,
		poller: NewPoller(store),
		store:  store,
		sink:   sink,
		cfg:    cfg,
		logger: log.With().Str("session_id", id).Logger(),
	}
}

// ID returns the session's correlation id.
func (s *Session) ID() string {
	return s.id
}

// State reports the session's current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Cursor returns the session's cursor. Only meaningful for inspection;
// the session owns and mutates it.
func (s *Session) Cursor() Cursor {
	return Cursor{LastDeliveredID: atomic.LoadInt64(&s.cursor.LastDeliveredID)}
}

// Run drives the session until the context is cancelled, the sink fails,
// or the idle timeout fires. Transient store errors are logged and
// retried on the next cycle; they never surface to the subscriber, who
// has no per-message response channel.
func (s *Session) Run(ctx context.Context) error {
	defer s.state.Store(int32(StateClosed))

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	// INITIALIZING: resolve the starting cursor to the current max id.
	for {
		latest, err := s.store.LatestMessageID(ctx)
		if err == nil {
			atomic.StoreInt64(&s.cursor.LastDeliveredID, latest)
			break
		}
		s.logger.Warn().Err(err).Msg("Stream init query failed, retrying")
		if !s.pause(ctx) {
			return nil
		}
	}
	s.state.Store(int32(StateStreaming))
	s.logger.Debug().Int64("cursor", s.cursor.LastDeliveredID).Msg("Stream session started")

	lastDelivery := time.Now()
	for {
		batch, cur, err := s.poller.Poll(ctx, s.cursor)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Msg("Tail poll failed, retrying")
		case len(batch) > 0:
			frame, err := json.Marshal(batch)
			if err != nil {
				return fmt.Errorf("encode frame: %w", err)
			}
			if err := s.sink.Send(frame); err != nil {
				s.logger.Debug().Err(err).Msg("Stream write failed, closing session")
				return fmt.Errorf("stream write: %w", err)
			}
			// Advance only after a successful delivery, so a failed
			// write never loses the batch for a reconnecting client
			// of the same session.
			atomic.StoreInt64(&s.cursor.LastDeliveredID, cur.LastDeliveredID)
			lastDelivery = time.Now()
			metrics.StreamFrames.Inc()
			metrics.StreamMessages.Add(float64(len(batch)))
		}

		if s.cfg.IdleTimeout > 0 && time.Since(lastDelivery) >= s.cfg.IdleTimeout {
			s.logger.Debug().Msg("Stream session idle, closing")
			return nil
		}
		if !s.pause(ctx) {
			return nil
		}
	}
}

// pause sleeps one poll interval, returning false if the context was
// cancelled while waiting. Cancellation must interrupt the sleep so
// shutdown is never delayed by a full interval plus change.
func (s *Session) pause(ctx context.Context) bool {
	t := time.NewTimer(s.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
