package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr        string
		CORSOrigins []string
	}
	Database struct {
		Path string
	}
	Stream struct {
		// PollInterval is how long a stream session sleeps between
		// tail polls.
		PollInterval time.Duration
		// BufferFrames bounds the outbound queue of a websocket
		// stream; a client that falls further behind is dropped.
		BufferFrames int
		// IdleTimeout closes sessions that delivered nothing for this
		// long. Zero disables it.
		IdleTimeout time.Duration
	}
	Messages struct {
		// PageLimitMax is the largest page size /messages will serve.
		PageLimitMax int
	}
	RateLimit struct {
		Enabled bool
		RPS     float64
		Burst   int
	}
}

// Load reads configuration from environment variables and an optional
// config file.
func Load() (Config, error) {
	_ = godotenv.Load() // optional .env

	v := viper.New()
	v.SetEnvPrefix("MSGBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.corsorigins", []string{"http://localhost:3000"})
	v.SetDefault("database.path", "data/msgboard.db")
	v.SetDefault("stream.pollinterval", 200*time.Millisecond)
	v.SetDefault("stream.bufferframes", 16)
	v.SetDefault("stream.idletimeout", time.Duration(0))
	v.SetDefault("messages.pagelimitmax", 20)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 30)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Stream.PollInterval <= 0 {
		return Config{}, fmt.Errorf("stream.pollinterval must be positive")
	}
	if cfg.Messages.PageLimitMax <= 0 {
		return Config{}, fmt.Errorf("messages.pagelimitmax must be positive")
	}

	return cfg, nil
}
