package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

// Bus replicates progress events across replicas so an SSE consumer
// can be attached to any instance.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "progress"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     log.With("client", "RedisBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(ev Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// Confirms the subscription is live before returning.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis progress payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
