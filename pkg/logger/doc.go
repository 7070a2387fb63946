// Package logger constructs the slog logger used across the balancer:
// level parsed from configuration, text handler for development, JSON
// handler for production.
package logger
