package publish

import (
	"context"
	"fmt"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/protocol"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/queue"
)

// KafkaPublisher writes prediction events to a Kafka topic keyed by label,
// so all events for one risk category land on the same partition
type KafkaPublisher struct {
	producer *queue.Producer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: queue.NewProducer(brokers, topic)}
}

func (k *KafkaPublisher) Name() string { return "kafka" }

func (k *KafkaPublisher) Publish(ctx context.Context, event *protocol.PredictionEvent) error {
	data, err := protocol.EncodePredictionEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return k.producer.Publish(ctx, event.PredictedRisk, data)
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
