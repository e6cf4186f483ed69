package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_URL targets a running server; empty starts one in-process
	ServerURL string `envconfig:"E2E_SERVER_URL"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_DEBUG_FRAMES logs every WebSocket frame received
	DebugFrames  bool          `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	ReadTimeout  time.Duration `envconfig:"E2E_READ_TIMEOUT" default:"5s"`
	PingInterval time.Duration `envconfig:"E2E_PING_INTERVAL" default:"1s"`
	DeathTimeout time.Duration `envconfig:"E2E_DEATH_TIMEOUT" default:"1s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
