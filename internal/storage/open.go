package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"calbot/internal/calendar"
	"calbot/internal/schedule"
	logx "calbot/pkg/logx"
)

var ErrNoPending = errors.New("no pending confirmation")

// Store is the persistence API used by the bot and the reminder service.
// Events are partitioned per user; the scheduling engine only ever sees one
// user's calendar at a time.
type Store interface {
	Events(userID int64) calendar.Store

	// Policy returns the user's saved work policy. ok is false when the user
	// never saved one; callers fall back to the configured default.
	Policy(ctx context.Context, userID int64) (p schedule.WorkPolicy, ok bool, err error)
	SavePolicy(ctx context.Context, userID int64, p schedule.WorkPolicy) error

	// Users lists every user id with at least one stored event.
	Users(ctx context.Context) ([]int64, error)

	Close() error
}

// PendingStore holds at most one pending confirmation per user. Entries
// expire after the configured TTL.
type PendingStore interface {
	PutPending(ctx context.Context, userID int64, p PendingConfirmation) error
	GetPending(ctx context.Context, userID int64) (PendingConfirmation, error)
	DeletePending(ctx context.Context, userID int64) error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "memory", "none":
		return newMemory(pendingTTL(cfg)), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func pendingTTL(cfg Config) time.Duration {
	if cfg.Pending.TTL > 0 {
		return cfg.Pending.TTL
	}
	return 10 * time.Minute
}

// OpenPending picks the pending-confirmation backend. When the backend is
// "store" the Store must also implement PendingStore (both bundled drivers
// do).
func OpenPending(cfg Config, store Store, log logx.Logger) (PendingStore, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Pending.Backend)); backend {
	case "", "store":
		ps, ok := store.(PendingStore)
		if !ok {
			return nil, errors.New("store driver does not support pending confirmations")
		}
		return ps, nil
	case "redis":
		return openRedisPending(cfg.Pending, pendingTTL(cfg), log)
	default:
		return nil, errors.New("unknown pending backend: " + backend)
	}
}
