package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsStopWhenClosed(t *testing.T) {
	clk := clock.NewMock()
	stats := newStopper()
	var samples int32
	exited := make(chan struct{})
	go func() {
		runPoolStats(clk, poolStatsInterval, stats.done, func() { atomic.AddInt32(&samples, 1) })
		close(exited)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&samples) == 1 }, time.Second, time.Millisecond)
	clk.Add(poolStatsInterval)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&samples) == 2 }, time.Second, time.Millisecond)

	sess := Session{stopStats: stats}
	require.NoError(t, sess.Close())
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("pool stats loop still running after Close")
	}
	// closing twice is fine and sampling does not resume
	require.NoError(t, sess.Close())
	clk.Add(poolStatsInterval)
	assert.Equal(t, int32(2), atomic.LoadInt32(&samples))
}

func TestCloseWithoutStatsLoop(t *testing.T) {
	assert.NoError(t, Session{}.Close())
}
