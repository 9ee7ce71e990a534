package admins

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/logger"
)

// QueueResolver rotates approvals across the admins listed in a Redis list.
// Each call moves the tail to the head, so consecutive bookings go to
// different admins. Ids that are no longer admins are dropped from the list.
//
// The rotation and the drops happen in Redis, not in the caller's
// transaction, so they stay applied when that transaction rolls back or is
// retried. A retried creation may therefore land on the next admin; the
// notification itself is still written at most once.
type QueueResolver struct {
	Client *redis.Client
	Key    string
	Logger *logger.Logger
}

func NewQueueResolver(client *redis.Client, key string, log *logger.Logger) *QueueResolver {
	if log == nil {
		log = logger.Discard()
	}
	return &QueueResolver{Client: client, Key: key, Logger: log}
}

// Seed replaces the queue with ids.
func (q *QueueResolver) Seed(ctx context.Context, ids ...int64) error {
	_, err := q.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, q.Key)
		for _, id := range ids {
			p.LPush(ctx, q.Key, strconv.FormatInt(id, 10))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed admin queue: %w", err)
	}
	return nil
}

func (q *QueueResolver) ResolveAdmin(ctx context.Context, db bun.IDB) (int64, error) {
	size, err := q.Client.LLen(ctx, q.Key).Result()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindConnectivity, op, err)
	}

	for i := int64(0); i < size; i++ {
		raw, err := q.Client.RPopLPush(ctx, q.Key, q.Key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return 0, apperrors.Wrap(apperrors.KindConnectivity, op, err)
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			var ok bool
			if ok, err = isAdmin(ctx, db, id); err != nil {
				return 0, err
			}
			if ok {
				return id, nil
			}
		}

		q.Logger.Warn("ADMINS", fmt.Sprintf("Dropping %q from admin queue %s", raw, q.Key))
		if err := q.Client.LRem(ctx, q.Key, 0, raw).Err(); err != nil {
			return 0, apperrors.Wrap(apperrors.KindConnectivity, op, err)
		}
	}
	return 0, apperrors.New(apperrors.KindNoAdmin, op, "admin queue is empty")
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	if log != nil {
		log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s", addr))
	}
	return client, nil
}
