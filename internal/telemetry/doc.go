// Package telemetry persists episodes, per-step pose estimates, and
// executed actions to SQLite, and serves the query helpers the HTTP API
// reads from.
//
// Schema changes go through golang-migrate files under db/migrations.
// Depends on internal/executor for the record types and internal/monitoring
// for logging. Must not import api.
package telemetry
