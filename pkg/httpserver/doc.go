// Package httpserver runs an http.Handler with sane timeouts and graceful
// shutdown driven by context cancellation, and provides liveness and
// readiness handlers for orchestrators.
package httpserver
