package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
)

// EnsureTopicsExist creates topics on the cluster controller, skipping any
// that already exist.
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if log == nil {
		log = logger.Discard()
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find kafka controller: %w", err)
	}
	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafka.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("dial kafka controller %s: %w", controllerAddr, err)
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.Debug("KAFKA", fmt.Sprintf("Topic %s already exists", topic))
		case err != nil:
			return fmt.Errorf("create topic %s: %w", topic, err)
		default:
			log.LogKafka("CREATE", topic, "topic created")
		}
	}
	return nil
}
