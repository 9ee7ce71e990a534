package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
)

// Message is one record for the producer's topic.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

// NewProducer writes to topic with per-key ordering and waits for all
// in-sync replicas.
func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{Writer: writer, Logger: log}
}

// Publish writes msgs synchronously; either every message is acknowledged
// or an error is returned.
func (p *Producer) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km := kafka.Message{Key: []byte(m.Key), Value: m.Value}
		for k, v := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		out = append(out, km)
	}

	if err := p.Writer.WriteMessages(ctx, out...); err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("Publish %d message(s) to %s failed: %v", len(msgs), p.Writer.Topic, err))
		return err
	}
	p.Logger.LogKafka("PUBLISH", p.Writer.Topic, fmt.Sprintf("%d message(s)", len(msgs)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
