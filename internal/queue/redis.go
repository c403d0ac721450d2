package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Options parameterise the Redis-backed queue.
type Options struct {
	Addr        string
	Password    string
	DB          int
	QueueKey    string
	DialTimeout time.Duration
}

// RedisQueue appends trigger jobs to a Redis list consumed by the
// notification workers.
type RedisQueue struct {
	rdb    *redis.Client
	key    string
	logger zerolog.Logger
}

type jobEnvelope struct {
	Name       string     `json:"name"`
	Data       TriggerJob `json:"data"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
}

// NewRedisQueue connects to Redis and verifies the connection with a ping.
func NewRedisQueue(ctx context.Context, opts Options, logger zerolog.Logger) (*RedisQueue, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.QueueKey == "" {
		return nil, errors.New("queue key is required")
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dialTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisQueue{
		rdb:    rdb,
		key:    opts.QueueKey,
		logger: logger.With().Str("component", "trigger_queue").Logger(),
	}, nil
}

// EnqueueAlertTriggered pushes one trigger job. The write is fire-and-forget
// from the engine's perspective; downstream idempotency is the consumer's
// concern.
func (q *RedisQueue) EnqueueAlertTriggered(ctx context.Context, alertID string) error {
	if alertID == "" {
		return errors.New("alert id is required")
	}

	envelope := jobEnvelope{
		Name:       JobName,
		Data:       TriggerJob{AlertID: alertID},
		EnqueuedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal trigger job: %w", err)
	}

	if err := q.rdb.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue trigger job: %w", err)
	}

	q.logger.Debug().Str("alert_id", alertID).Msg("trigger job enqueued")
	return nil
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}

var _ Enqueuer = (*RedisQueue)(nil)
