package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"sagekit/lib/timer"
)

// Nil is returned by Get when the key does not exist.
const Nil = redis.Nil

func (c Client) scopedKey(k string) string {
	return c.scope.PrefixedName(k)
}

func (c Client) Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error {
	defer timer.Start("redis.set").Stop()
	return c.client.Set(ctx, c.scopedKey(k), v, ttl).Err()
}

func (c Client) SetNX(ctx context.Context, k string, v interface{}, ttl time.Duration) (bool, error) {
	defer timer.Start("redis.setnx").Stop()
	return c.client.SetNX(ctx, c.scopedKey(k), v, ttl).Result()
}

func (c Client) Get(ctx context.Context, k string) (string, error) {
	defer timer.Start("redis.get").Stop()
	return c.client.Get(ctx, c.scopedKey(k)).Result()
}

func (c Client) Del(ctx context.Context, k ...string) error {
	defer timer.Start("redis.del").Stop()

	pipe := c.client.Pipeline()
	for _, key := range k {
		if err := pipe.Del(ctx, c.scopedKey(key)).Err(); err != nil {
			return err
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Keys returns every key under prefix, without the scope prefix. It uses
// SCAN so it does not block the server on large keyspaces.
func (c Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	defer timer.Start("redis.keys").Stop()

	scoped := c.scopedKey("")
	var ret []string
	iter := c.client.Scan(ctx, 0, c.scopedKey(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		ret = append(ret, iter.Val()[len(scoped):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
