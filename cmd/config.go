package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=4040"`
	ClientURL            string        `env:"CLIENT_URL,default=http://localhost:5173"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	TokenCookie          string        `env:"TOKEN_COOKIE,default=token"`
	CookieSecure         bool          `env:"COOKIE_SECURE,default=false"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=5s"`
	DeathTimeout         time.Duration `env:"DEATH_TIMEOUT,default=1s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=5s"`
	ReadLimit            int           `env:"READ_LIMIT,default=65536"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	InboundBufferSize    int           `env:"INBOUND_BUFFER_SIZE,default=32"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	GCInterval           time.Duration `env:"GC_INTERVAL,default=10m"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=1m"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	DebugPort            int           `env:"DEBUG_PORT,default=0"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
}

// Validate rejects durations that would make a ticker panic at first use.
func (c Config) Validate() error {
	durations := []struct {
		key   string
		value time.Duration
	}{
		{"PING_INTERVAL", c.PingInterval},
		{"DEATH_TIMEOUT", c.DeathTimeout},
		{"GC_INTERVAL", c.GCInterval},
		{"STATS_INTERVAL", c.StatsInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.key, d.value)
		}
	}
	return nil
}
