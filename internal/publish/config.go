package publish

import (
	"context"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/pkg/config"
)

// FromConfig builds a fanout over every publisher whose address is set
func FromConfig(ctx context.Context, cfg *config.Config) (*Fanout, error) {
	var publishers []Publisher

	if cfg.Redis.Addr != "" {
		p, err := NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publishers = append(publishers, NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPredictions))
	}

	if cfg.Influx.URL != "" {
		publishers = append(publishers, NewInfluxPublisher(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket))
	}

	return NewFanout(publishers...), nil
}
