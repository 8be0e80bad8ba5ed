package test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"sagekit/redis"
	"sagekit/resource"
)

// Redis returns a client backed by an in-process miniredis server.
func Redis(t *testing.T) (redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	r, err := redis.MiniRedisConfig{MiniRedis: mr}.Materialize(resource.NewScope("test"))
	require.NoError(t, err)
	client := r.(redis.Client)
	t.Cleanup(func() { client.Close() })
	return client, mr
}
