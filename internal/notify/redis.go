package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"arena/internal/arena"

	"github.com/redis/go-redis/v9"
)

const (
	BroadcastChannel = "arena:events"
	actorChannelFmt  = "arena:actors:%s"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes notifications on Redis pub/sub. Personal
// notifications go to the actor channel, everything else to the broadcast
// channel.
type RedisPublisher struct {
	rdb publisher
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// ChannelFor returns the pub/sub channel for n.
func ChannelFor(n arena.Notification) string {
	if n.ActorID == "" {
		return BroadcastChannel
	}
	return fmt.Sprintf(actorChannelFmt, n.ActorID)
}

func (p *RedisPublisher) Notify(ctx context.Context, n arena.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, ChannelFor(n), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", n.Kind, err)
	}
	return nil
}

// Connect parses a redis URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
