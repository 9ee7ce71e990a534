package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestNewProducerConfig(t *testing.T) {
	p := NewProducer([]string{"k1:9092", "k2:9092"}, "booking.analytics", nil)
	defer p.Close()

	assert.Equal(t, "booking.analytics", p.Writer.Topic)
	assert.Equal(t, kafka.RequireAll, p.Writer.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, p.Writer.Balancer)
}

func TestPublishNothingIsNoop(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "booking.analytics", nil)
	defer p.Close()

	assert.NoError(t, p.Publish(context.Background()))
}

func TestEnsureTopicsRequiresBrokers(t *testing.T) {
	assert.Error(t, EnsureTopicsExist(context.Background(), nil, []string{"t"}, nil))
}
