package queue_test

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/queue"
)

func TestInMemoryQueueDelivers(t *testing.T) {
	q := queue.NewInMemoryQueue(zap.NewNop())

	received := make(chan queue.DispatchTask, 1)
	err := q.Subscribe(queue.TopicDispatch, func(data []byte) error {
		var task queue.DispatchTask
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		received <- task
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Publish(queue.TopicDispatch, queue.DispatchTask{ScheduledMessageID: 42}))

	select {
	case task := <-received:
		assert.Equal(t, 42, task.ScheduledMessageID)
	case <-time.After(time.Second):
		t.Fatal("task was not delivered")
	}
}

func TestInMemoryQueueNoSubscribers(t *testing.T) {
	q := queue.NewInMemoryQueue(zap.NewNop())
	err := q.Publish(queue.TopicCorrelate, queue.CorrelateTask{FeedbackMessageID: 1})
	assert.Error(t, err)
}

func TestInMemoryQueueRetriesFailedHandler(t *testing.T) {
	q := queue.NewInMemoryQueue(zap.NewNop())

	var attempts int32
	done := make(chan struct{})
	err := q.Subscribe(queue.TopicCorrelate, func(data []byte) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return assert.AnError
		}
		close(done)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Publish(queue.TopicCorrelate, queue.CorrelateTask{FeedbackMessageID: 1}))

	select {
	case <-done:
		assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(2))
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not retried")
	}
}
