// Package infra holds the adapters behind the core interfaces: the memory
// and SQLite stores, the MQTT job queue, machine telemetry, metrics sinks,
// Sentry monitoring and zerolog logging.
package infra
