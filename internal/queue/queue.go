// internal/queue/queue.go
package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task queues used by the pipeline.
const (
	TopicCorrelate = "feedback_correlate"
	TopicDispatch  = "message_dispatch"
)

// CorrelateTask asks the worker to correlate and classify one feedback
// message.
type CorrelateTask struct {
	FeedbackMessageID int `json:"feedback_message_id"`
}

// DispatchTask asks the worker to dispatch one scheduled message.
type DispatchTask struct {
	ScheduledMessageID int `json:"scheduled_message_id"`
}

// Queue decouples intake from the pipeline workers.
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(data []byte) error) error
}

// InMemoryQueue delivers published payloads to subscribers on goroutines,
// with bounded retry. Used in tests and single-process deployments.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]func(data []byte) error
	maxRetries int
	logger     *zap.Logger
}

func NewInMemoryQueue(logger *zap.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(data []byte) error),
		maxRetries: 3,
		logger:     logger,
	}
}

func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for _, handler := range handlers {
		go q.processJob(topic, handler, body)
	}
	return nil
}

func (q *InMemoryQueue) processJob(topic string, handler func(data []byte) error, body []byte) {
	for attempt := 1; ; attempt++ {
		err := handler(body)
		if err == nil {
			return
		}
		q.logger.Warn("queue job failed",
			zap.String("topic", topic),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt > q.maxRetries {
			q.logger.Error("queue job permanently failed",
				zap.String("topic", topic),
				zap.Error(err))
			return
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(data []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}
