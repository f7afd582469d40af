package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Operation names a two-factor lifecycle operation, e.g. "verify_login".
func Operation(name string) slog.Attr {
	return slog.String("operation", name)
}

// Outcome records how an operation ended, "success" or an error code.
func Outcome(outcome string) slog.Attr {
	return slog.String("outcome", outcome)
}

func Remaining(n int) slog.Attr {
	return slog.Int("remaining", n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
