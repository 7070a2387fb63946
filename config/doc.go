// Package config loads and validates the balancer's configuration from a
// YAML file and environment variables via viper. It covers the backend
// registry (host, priority, optional path prefix and api_key), the
// selection strategy, logging, and the demo client settings. Backend
// priorities are passed through untouched; only host syntax and enum
// fields are validated.
package config
