package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID    string
	Value int
}

func TestQueue_PublishConsume(t *testing.T) {
	queue := NewQueue[payload](DefaultConfig())
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &payload{ID: "a", Value: 1}))
	require.NoError(t, queue.Publish(ctx, &payload{ID: "b", Value: 2}))
	assert.Equal(t, 2, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", message.T().ID)
	require.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
}

func TestQueue_ConsumeCancelled(t *testing.T) {
	queue := NewQueue[payload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_NackRetries(t *testing.T) {
	config := Config{MaxRetries: 1, RetryDelay: 10 * time.Millisecond, DeadLetter: true, QueueBuffer: 10}
	queue := NewQueue[payload](config)
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &payload{ID: "x"}))

	// first nack requeues
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, message.Nack(assert.AnError))

	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	message, err = queue.Consume(consumeCtx)
	require.NoError(t, err)
	assert.Equal(t, "x", message.T().ID)

	// second nack exceeds the limit and dead-letters
	require.NoError(t, message.Nack(assert.AnError))
	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, 10*time.Millisecond)
}

func TestQueue_TryPublishDropsWhenFull(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 2
	queue := NewQueue[payload](config)

	assert.True(t, queue.TryPublish(&payload{ID: "a"}))
	assert.True(t, queue.TryPublish(&payload{ID: "b"}))
	assert.False(t, queue.TryPublish(&payload{ID: "c"}))
	assert.Equal(t, 2, queue.Size())
}
