package twofactor

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/twofactor/pkg/totp"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimiter bounds verification attempts per user. Without it attempts are unlimited.
func WithLimiter(l Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithValidator replaces the TOTP validator, e.g. to change the skew window.
func WithValidator(v *totp.Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithQRCodeSize sets the side length in pixels of the setup QR code.
func WithQRCodeSize(px int) Option {
	return func(s *Service) {
		if px > 0 {
			s.qrSize = px
		}
	}
}

// WithClock replaces the time source used for enablement timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
