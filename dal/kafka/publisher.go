// Package kafka publishes service events, one async writer per topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrNoBrokers is returned when no broker is configured.
var ErrNoBrokers = errors.New("kafka brokers not configured")

// Publisher writes JSON messages to topics.
type Publisher struct {
	brokers []string
	writers sync.Map // map[string]*kafka.Writer
}

func New(brokers []string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	return &Publisher{brokers: brokers}, nil
}

// Ping dials the first broker.
func (p *Publisher) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("cannot connect to kafka: %w", err)
	}
	return conn.Close()
}

// writer returns the writer of topic, created on first use.
func (p *Publisher) writer(topic string) *kafka.Writer {
	if w, ok := p.writers.Load(topic); ok {
		return w.(*kafka.Writer)
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Topic:    topic,
		Async:    true,
		Balancer: &kafka.Hash{},
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				zap.L().Warn("kafka delivery failed", zap.String("topic", topic), zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	actual, loaded := p.writers.LoadOrStore(topic, w)
	if loaded {
		_ = w.Close()
	}
	return actual.(*kafka.Writer)
}

// Publish sends v encoded as JSON. Delivery is asynchronous, failures are logged.
func (p *Publisher) Publish(ctx context.Context, topic, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cannot encode %s event: %w", topic, err)
	}
	return p.writer(topic).WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
}

// Close flushes and closes every writer.
func (p *Publisher) Close() error {
	var errs []error
	p.writers.Range(func(_, value any) bool {
		errs = append(errs, value.(*kafka.Writer).Close())
		return true
	})
	return errors.Join(errs...)
}
