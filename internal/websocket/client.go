package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size; subscribers aren't expected to send
	// anything meaningful.
	maxMessageSize = 512
)

var (
	// ErrClosed is returned by Send after the connection is gone.
	ErrClosed = errors.New("websocket: client closed")

	// ErrSlowConsumer is returned when the outbound queue is full. The
	// peer is reading slower than the board produces frames, so the
	// connection is dropped rather than buffering without bound.
	ErrSlowConsumer = errors.New("websocket: send queue overflow")
)

// Client wraps one websocket connection with a bounded outbound queue
// and the standard read/write pumps. It satisfies the stream package's
// Sink interface.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client over an upgraded connection. buffer bounds
// the outbound queue.
func NewClient(conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		conn:   conn,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

// Send queues a frame for delivery. It never blocks: a full queue means
// the peer has fallen behind, and the client is closed instead.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return ErrClosed
	default:
		log.Warn().Msg("Websocket subscriber too slow, disconnecting")
		c.Close()
		return ErrSlowConsumer
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// WritePump drains the send queue to the connection and keeps the peer
// alive with pings. It exits when the client closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// ReadPump discards inbound frames and detects peer disconnects. onClose
// runs exactly once when the connection drops.
func (c *Client) ReadPump(onClose func()) {
	defer func() {
		c.Close()
		onClose()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
