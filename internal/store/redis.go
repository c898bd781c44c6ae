package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tomz197/sshtargets/internal/leaderboard"
)

// RedisOptions configures a Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string // Document key; updates are published on Key + ":updates"
	Client   *redis.Client
}

// Redis stores the JSON document under a single key and publishes every save
// so other processes can watch the list.
type Redis struct {
	client  *redis.Client
	key     string
	channel string
	owned   bool
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client, owned := opts.Client, false
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		owned = true
	}
	if err := client.Ping(ctx).Err(); err != nil {
		if owned {
			client.Close()
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	key := opts.Key
	if key == "" {
		key = "sshtargets:highscores"
	}
	return &Redis{client: client, key: key, channel: key + ":updates", owned: owned}, nil
}

func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) Load(ctx context.Context) ([]leaderboard.Record, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", r.key, err)
	}
	return Decode(data)
}

func (r *Redis) Save(ctx context.Context, records []leaderboard.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, data, 0)
		pipe.Publish(ctx, r.channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", r.key, err)
	}
	return nil
}

// Watch subscribes to the update channel.
func (r *Redis) Watch(ctx context.Context, fn func([]leaderboard.Record)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", r.channel)
			}
			records, err := Decode([]byte(msg.Payload))
			if err != nil {
				return err
			}
			fn(records)
		}
	}
}
