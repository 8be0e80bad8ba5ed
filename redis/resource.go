package redis

import (
	"crypto/tls"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"sagekit/resource"
)

// Client is a scoped redis client. Every key it reads or writes is prefixed
// with the scope name, so runs of different scopes can share a server.
type Client struct {
	scope  resource.Scope
	conf   resource.Config
	client *redis.Client
}

var _ resource.Resource = Client{}

func (c Client) Scope() resource.Scope { return c.scope }

func (c Client) Type() resource.Type { return resource.RedisClient }

// Close also stops the in-process server of a MiniRedisConfig client.
func (c Client) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	if conf, ok := c.conf.(MiniRedisConfig); ok {
		conf.MiniRedis.Close()
	}
	return nil
}

func newClient(scope resource.Scope, conf resource.Config, opts *redis.Options) Client {
	return Client{scope: scope, conf: conf, client: redis.NewClient(opts)}
}

// ClientConfig connects to a redis server, e.g. the --redis-server flag.
type ClientConfig struct {
	Addr      string
	TLSConfig *tls.Config
}

var _ resource.Config = ClientConfig{}

func (conf ClientConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	return newClient(scope, conf, &redis.Options{Addr: conf.Addr, TLSConfig: conf.TLSConfig}), nil
}

// MiniRedisConfig connects to an in-process miniredis server. Used in tests.
type MiniRedisConfig struct {
	MiniRedis *miniredis.Miniredis
}

var _ resource.Config = MiniRedisConfig{}

func (conf MiniRedisConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	return newClient(scope, conf, &redis.Options{Addr: conf.MiniRedis.Addr()}), nil
}
