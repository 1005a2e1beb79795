package storage

import (
	"time"

	"calbot/internal/calendar"
	"calbot/internal/schedule"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": in-process, lost on restart
//
// An empty Driver means "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	Pending PendingConfig
}

// PendingConfig selects where pending conflict confirmations live. The
// default keeps them next to the events; "redis" moves them to a shared
// cache with server-side TTL eviction.
type PendingConfig struct {
	Backend string // "store" (default) | "redis"
	TTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// PendingConfirmation is a proposed event awaiting the user's decision after
// a conflict. Task is replayed with force on confirm; Proposal and Conflicts
// only exist so the prompt can be re-rendered.
type PendingConfirmation struct {
	Task      schedule.StructuredTask `json:"task"`
	Proposal  schedule.Proposal       `json:"proposal"`
	Conflicts []calendar.Event        `json:"conflicts,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}
