package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmcdole/stork/internal/log"
)

const pingTimeout = 500 * time.Millisecond

// RedisNotifier delivers change signals over Redis pub/sub, so a separate
// replication process can wake the convergence loop.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisNotifier connects to redisURL and verifies the connection
func NewRedisNotifier(redisURL, channel string, logger *slog.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisNotifierWithClient(client, channel, logger), nil
}

// NewRedisNotifierWithClient creates a notifier from an existing client
func NewRedisNotifierWithClient(client *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  log.OrDefault(logger),
	}
}

// Available pings Redis with a short timeout
func (n *RedisNotifier) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := n.client.Ping(ctx).Err(); err != nil {
		n.logger.Debug("redis unavailable", "error", err)
		return false
	}
	return true
}

// Subscribe opens a dedicated PubSub and returns once Redis has confirmed
// the subscription.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	ps := n.client.Subscribe(ctx, n.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	msgs := ps.Channel()

	go func() {
		for {
			select {
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				n.logger.Debug("close pubsub", "error", err)
			}
		})
	}
	stop := context.AfterFunc(ctx, release)

	return out, func() {
		stop()
		release()
	}, nil
}

// Publish signals every subscriber that replicated data landed
func (n *RedisNotifier) Publish(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, time.Now().UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", n.channel, err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
