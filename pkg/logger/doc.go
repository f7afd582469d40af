// Package logger builds log/slog loggers for the service.
//
// New returns a JSON logger on stdout unless options say otherwise.
// WithEnvironment switches to human-readable debug output outside
// production, and WithContextValue copies request-scoped values such as the
// request ID into every record.
//
// The attribute helpers (UserID, Operation, Outcome...) keep key names
// consistent across packages. Secrets, codes and passwords are never logged.
package logger
