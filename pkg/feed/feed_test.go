package feed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/feed"
)

func TestChannel_PushAndRunsDeliverInOrder(t *testing.T) {
	c := feed.NewChannel(4)
	c.Push(action.Run{ActivationID: "1"})
	c.Push(action.Run{ActivationID: "2"})

	r1 := <-c.Runs()
	r2 := <-c.Runs()
	assert.Equal(t, "1", r1.ActivationID)
	assert.Equal(t, "2", r2.ActivationID)
}

func TestChannel_TryPushRespectsCapacity(t *testing.T) {
	c := feed.NewChannel(1)
	ok := c.TryPush(action.Run{ActivationID: "1"})
	require.True(t, ok)

	ok = c.TryPush(action.Run{ActivationID: "2"})
	assert.False(t, ok, "a full buffer is the backpressure signal, so a second push must be refused")
}

func TestChannel_ProcessedCountAndCallback(t *testing.T) {
	c := feed.NewChannel(4)
	var calls int
	c.OnProcessed(func() { calls++ })

	c.Processed()
	c.Processed()

	assert.Equal(t, int64(2), c.ProcessedCount())
	assert.Equal(t, 2, calls)
}
