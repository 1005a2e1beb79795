// Package storage persists per-user calendars, work policies, and pending
// conflict confirmations. The sqlite driver is the production backend; the
// memory driver backs tests and token-free trial runs.
package storage
