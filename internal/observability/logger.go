package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/order-stock/internal/config"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(cfg config.LogConfig, serviceName string) zerolog.Logger {
	return newLogger(os.Stdout, cfg, serviceName)
}

func newLogger(w io.Writer, cfg config.LogConfig, serviceName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}
