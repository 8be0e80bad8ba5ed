package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sagekit/test"
)

type dataURIs struct {
	Training  string `json:"training_data"`
	Transform string `json:"transform_data"`
}

var urisKey = NewKey[dataURIs]("data")

func testStore(t *testing.T, store Store) {
	ctx := context.Background()
	rc := RunContext{RunID: "run-1", Store: store, Logger: zap.NewNop()}
	other := RunContext{RunID: "run-2", Store: store, Logger: zap.NewNop()}

	_, err := Get(ctx, rc, urisKey)
	assert.ErrorIs(t, err, ErrNotFound)

	v := dataURIs{Training: "s3://bucket/data", Transform: "s3://bucket/batch"}
	require.NoError(t, Put(ctx, rc, urisKey, v))
	found, err := Get(ctx, rc, urisKey)
	require.NoError(t, err)
	assert.Equal(t, v, found)

	// runs do not see each other's values
	_, err = Get(ctx, other, urisKey)
	assert.ErrorIs(t, err, ErrNotFound)

	jobKey := NewKey[string]("training_job")
	require.NoError(t, Put(ctx, rc, jobKey, "job-1"))
	require.NoError(t, Put(ctx, rc, jobKey, "job-2"))
	name, err := Get(ctx, rc, jobKey)
	require.NoError(t, err)
	assert.Equal(t, "job-2", name)

	// a value of the wrong shape fails to decode
	_, err = Get(ctx, rc, NewKey[int]("training_job"))
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	client, mr := test.Redis(t)
	store := NewRedisStore(client, time.Hour)
	testStore(t, store)

	ctx := context.Background()
	assert.True(t, mr.Exists("test:workflow:run-1:training_job"))
	keys, err := store.Keys(ctx, "run-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"data", "training_job"}, keys)

	mr.FastForward(time.Hour + time.Second)
	_, err = store.Get(ctx, "run-1", "data")
	assert.ErrorIs(t, err, ErrNotFound)
}
