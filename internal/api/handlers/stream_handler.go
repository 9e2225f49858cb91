package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	gws "github.com/gorilla/websocket"
	"github.com/isdelr/msgboard-be/internal/stream"
	"github.com/isdelr/msgboard-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// StreamHandler serves the live feed of new messages. Each connection
// gets its own session with a private cursor; the handler is only the
// transport adapter around the stream package.
type StreamHandler struct {
	store  stream.Store
	cfg    stream.SessionConfig
	buffer int
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(store stream.Store, cfg stream.SessionConfig, bufferFrames int) *StreamHandler {
	return &StreamHandler{store: store, cfg: cfg, buffer: bufferFrames}
}

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (consider tightening this in production).
		return true
	},
}

// ServeSSE handles GET /stream as a text/event-stream of JSON-array
// frames. The response stays open until the client disconnects.
func (h *StreamHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sess := stream.NewSession(h.store, &sseSink{w: w, flusher: flusher}, h.cfg)
	if err := sess.Run(r.Context()); err != nil {
		log.Debug().Err(err).Str("session_id", sess.ID()).Msg("SSE session ended with error")
	}
}

// sseSink writes frames in the EventSource wire format: a "data: "
// prefix and a blank-line terminator, flushed per frame.
type sseSink struct {
	w       io.Writer
	flusher http.Flusher
}

func (s *sseSink) Send(frame []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// ServeWS handles GET /stream/ws, the websocket flavor of the feed. The
// outbound queue is bounded; a client that stops reading is dropped.
func (h *StreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := websocket.NewClient(conn, h.buffer)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.WritePump()
	go client.ReadPump(cancel)

	sess := stream.NewSession(h.store, client, h.cfg)
	if err := sess.Run(ctx); err != nil {
		log.Debug().Err(err).Str("session_id", sess.ID()).Msg("Websocket session ended with error")
	}
	client.Close()
}
