package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

var DefaultTopics = []string{"sensor/electricity", "sensor/water", "sensor/waste", "alerts"}

// KafkaTopic maps a logical topic to a legal Kafka topic name.
func KafkaTopic(logical string) string {
	return strings.ReplaceAll(logical, "/", ".")
}

// CheckTopic reports an error unless topic exists with at least one partition.
func CheckTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka: dial %s: %w", broker, err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return fmt.Errorf("kafka: read partitions %s: %w", topic, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("kafka: topic %s has no partitions", topic)
	}
	return nil
}

// EnsureTopics creates the Kafka topics for the given logical topics on the
// cluster controller. Topics that already exist are left alone.
func EnsureTopics(ctx context.Context, broker string, logical ...string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka: dial %s: %w", broker, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: controller: %w", err)
	}

	admin, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("kafka: dial controller: %w", err)
	}
	defer admin.Close()

	cfgs := make([]kafka.TopicConfig, 0, len(logical))
	for _, t := range logical {
		cfgs = append(cfgs, kafka.TopicConfig{
			Topic:             KafkaTopic(t),
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}

	err = admin.CreateTopics(cfgs...)
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topics: %w", err)
	}
	return nil
}
