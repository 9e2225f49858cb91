package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesCreated counts messages accepted through POST /message.
	MessagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgboard_messages_created_total",
		Help: "Number of messages created.",
	})

	// ActiveStreams tracks currently open stream sessions (SSE and websocket).
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "msgboard_stream_sessions_active",
		Help: "Number of open stream sessions.",
	})

	// StreamFrames counts delivered event frames across all sessions.
	StreamFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgboard_stream_frames_total",
		Help: "Number of event frames written to stream subscribers.",
	})

	// StreamMessages counts individual messages delivered inside frames.
	StreamMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgboard_stream_messages_total",
		Help: "Number of messages delivered to stream subscribers.",
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgboard_rate_limited_total",
		Help: "Number of requests rejected with 429.",
	})
)
