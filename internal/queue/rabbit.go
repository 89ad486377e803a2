// internal/queue/rabbit.go
package queue

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const maxDeliveryRetries = 3

// RabbitQueue is a RabbitMQ-backed Queue with reconnect-on-failure. Each
// topic maps to one durable queue.
type RabbitQueue struct {
	url        string
	connection *amqp.Connection
	channel    *amqp.Channel
	logger     *zap.Logger
	// consumer-side rate limit, messages per second
	consumeRate int
}

func NewRabbitQueue(url string, consumeRate int, logger *zap.Logger) *RabbitQueue {
	q := &RabbitQueue{
		url:         url,
		consumeRate: consumeRate,
		logger:      logger,
	}
	if err := q.connect(); err != nil {
		logger.Warn("initial RabbitMQ connection failed, will retry", zap.Error(err))
	}
	return q
}

func (q *RabbitQueue) connect() error {
	if q.connection != nil && !q.connection.IsClosed() {
		q.connection.Close()
	}

	conn, err := amqp.Dial(q.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	q.connection = conn
	q.channel = ch
	return nil
}

func (q *RabbitQueue) ensureConnection() error {
	if q.connection == nil || q.connection.IsClosed() || q.channel == nil {
		q.logger.Info("reconnecting to RabbitMQ")
		return q.connect()
	}
	return nil
}

func (q *RabbitQueue) declare(topic string) error {
	_, err := q.channel.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	return err
}

func (q *RabbitQueue) Publish(topic string, payload any) error {
	if err := q.ensureConnection(); err != nil {
		return err
	}
	if err := q.declare(topic); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = q.channel.Publish(
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		// Reset so the next publish reconnects.
		q.channel = nil
		q.connection = nil
		return err
	}
	return nil
}

// Subscribe consumes the topic on a background goroutine. Failed handlers are
// requeued up to maxDeliveryRetries via the x-retry-count header.
func (q *RabbitQueue) Subscribe(topic string, handler func(data []byte) error) error {
	rl := ratelimit.New(q.consumeRate)

	go func() {
		for {
			if err := q.ensureConnection(); err != nil {
				q.logger.Warn("RabbitMQ reconnection failed, retrying in 5s", zap.Error(err))
				time.Sleep(5 * time.Second)
				continue
			}
			if err := q.declare(topic); err != nil {
				q.logger.Warn("queue declare failed", zap.String("topic", topic), zap.Error(err))
				time.Sleep(5 * time.Second)
				continue
			}

			msgs, err := q.channel.Consume(
				topic,
				"",    // consumer tag
				false, // auto-ack
				false, // exclusive
				false, // no-local
				false, // no-wait
				nil,
			)
			if err != nil {
				q.logger.Warn("failed to register consumer", zap.String("topic", topic), zap.Error(err))
				q.channel = nil
				q.connection = nil
				time.Sleep(5 * time.Second)
				continue
			}

			for d := range msgs {
				rl.Take()
				if err := handler(d.Body); err != nil {
					retries := retryCount(d.Headers)
					if retries < maxDeliveryRetries {
						q.logger.Warn("handler failed, requeueing",
							zap.String("topic", topic),
							zap.Int("retries", retries),
							zap.Error(err))
						// Republish with the incremented counter; a broker
						// requeue would keep the original headers and retry
						// forever.
						if pubErr := q.republish(topic, d.Body, retries+1); pubErr != nil {
							q.logger.Warn("republish failed, requeueing in place",
								zap.String("topic", topic),
								zap.Error(pubErr))
							d.Nack(false, true)
							continue
						}
					} else {
						q.logger.Error("handler failed permanently, dropping",
							zap.String("topic", topic),
							zap.Error(err))
					}
				}
				d.Ack(false)
			}

			q.logger.Warn("consumer channel closed, reconnecting", zap.String("topic", topic))
			q.channel = nil
			q.connection = nil
		}
	}()

	return nil
}

// republish re-enqueues an already-marshalled message with its retry counter
// set, so the next consume of it sees how many attempts it has burned.
func (q *RabbitQueue) republish(topic string, body []byte, retries int) error {
	if err := q.ensureConnection(); err != nil {
		return err
	}
	return q.channel.Publish(
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers:      amqp.Table{"x-retry-count": int32(retries)},
			Body:         body,
		},
	)
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	if v, ok := headers["x-retry-count"]; ok {
		if n, ok := v.(int32); ok {
			return int(n)
		}
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

func (q *RabbitQueue) Close() {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.connection != nil {
		q.connection.Close()
	}
}
