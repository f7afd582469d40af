package logger

import (
	"fmt"
	"log/slog"
)

// Config is the logging section of the service configuration.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:""`
	Format string `env:"LOG_FORMAT" envDefault:""`
}

// FromConfig builds a logger for env/service, then applies explicit
// level and format overrides from cfg.
func FromConfig(cfg Config, env, service string, opts ...Option) (*slog.Logger, error) {
	all := []Option{WithEnvironment(env, service)}

	if cfg.Level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Level, err)
		}
		all = append(all, WithLevel(lvl))
	}

	if cfg.Format != "" {
		f := Format(cfg.Format)
		if f != FormatJSON && f != FormatText {
			return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.Format)
		}
		all = append(all, WithFormat(f))
	}

	return New(append(all, opts...)...), nil
}
