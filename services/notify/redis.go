// Package notifysvc publishes discussion events to live clients.
package notifysvc

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/trezcool/baraza/core"
)

// RedisNotifier publishes events as JSON on `<prefix>:<channel>` with redis PUBLISH.
// Publishing is best effort: failures are logged, never returned.
type RedisNotifier struct {
	client *redis.Client
	prefix string
	logger core.Logger
}

var _ core.Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(client *redis.Client, conf *core.Config, logger core.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		prefix: conf.Redis.ChannelPrefix,
		logger: logger,
	}
}

// NewRedisClient connects to redis and checks the connection.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (n *RedisNotifier) channel(evt core.Event) string {
	if n.prefix == "" {
		return evt.Channel()
	}
	return n.prefix + ":" + evt.Channel()
}

func (n *RedisNotifier) Notify(ctx context.Context, evt core.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("encoding event", "error", err, "event", evt.Type)
		return
	}
	if err = n.client.Publish(ctx, n.channel(evt), payload).Err(); err != nil {
		n.logger.Error("publishing event", "error", err, "event", evt.Type, "channel", n.channel(evt))
	}
}
