package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the server's environment configuration, processed under the
// SEALDECK prefix (e.g. SEALDECK_LISTEN_ADDR).
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8080"`
	DBPath     string `envconfig:"DB_PATH" default:"sealdeck.sqlite"`
	DebugLevel string `envconfig:"DEBUG_LEVEL" default:"info"`
	LogFile    string `envconfig:"LOG_FILE"`

	LedgerURL  string `envconfig:"LEDGER_URL" default:"http://127.0.0.1:8899"`
	DecryptURL string `envconfig:"DECRYPT_URL" default:"http://127.0.0.1:8900"`

	SmallBlind    int64 `envconfig:"SMALL_BLIND" default:"10"`
	BigBlind      int64 `envconfig:"BIG_BLIND" default:"20"`
	StartingChips int64 `envconfig:"STARTING_CHIPS" default:"2000"`

	TurnTimeout    time.Duration `envconfig:"TURN_TIMEOUT" default:"30s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	DecryptAttempts int           `envconfig:"DECRYPT_ATTEMPTS" default:"5"`
	DecryptBackoff  time.Duration `envconfig:"DECRYPT_BACKOFF" default:"200ms"`
	DecryptBackoffM time.Duration `envconfig:"DECRYPT_BACKOFF_MAX" default:"3s"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("sealdeck", &cfg)
	return cfg, err
}
