package logging

import (
	"os"

	"github.com/relayforge/gateway/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger. Level is Debug in development,
// Info otherwise.
func New(cfg *config.Config) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	lvl := zerolog.InfoLevel
	if cfg.IsDevelopment() {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(out).With().Timestamp().Logger()
}
