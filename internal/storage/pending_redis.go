package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "calbot/pkg/logx"
)

// redisPending keeps pending confirmations in Redis so several bot instances
// can share them. Expiry is server-side via key TTL.
type redisPending struct {
	rdb *redis.Client
	ttl time.Duration
	log logx.Logger
}

func openRedisPending(cfg PendingConfig, ttl time.Duration, log logx.Logger) (PendingStore, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, errors.New("pending redis backend requires an address")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("pending store connected", logx.String("addr", cfg.RedisAddr))
	return &redisPending{rdb: rdb, ttl: ttl, log: log}, nil
}

func pendingKey(userID int64) string {
	return fmt.Sprintf("calbot:pending:%d", userID)
}

func (r *redisPending) PutPending(ctx context.Context, userID int64, p PendingConfirmation) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, pendingKey(userID), payload, r.ttl).Err()
}

func (r *redisPending) GetPending(ctx context.Context, userID int64) (PendingConfirmation, error) {
	payload, err := r.rdb.Get(ctx, pendingKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingConfirmation{}, ErrNoPending
	}
	if err != nil {
		return PendingConfirmation{}, err
	}
	var p PendingConfirmation
	if err := json.Unmarshal(payload, &p); err != nil {
		return PendingConfirmation{}, err
	}
	return p, nil
}

func (r *redisPending) DeletePending(ctx context.Context, userID int64) error {
	return r.rdb.Del(ctx, pendingKey(userID)).Err()
}
