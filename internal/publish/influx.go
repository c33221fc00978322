package publish

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/protocol"
)

const influxMeasurement = "food_risk"

// InfluxPublisher mirrors each prediction as a point for dashboards
type InfluxPublisher struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewInfluxPublisher(url, token, org, bucket string) *InfluxPublisher {
	client := influxdb2.NewClient(url, token)
	return &InfluxPublisher{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

func (i *InfluxPublisher) Name() string { return "influxdb" }

func (i *InfluxPublisher) Publish(ctx context.Context, event *protocol.PredictionEvent) error {
	if err := i.writeAPI.WritePoint(ctx, predictionPoint(event)); err != nil {
		return fmt.Errorf("failed to write point: %w", err)
	}
	return nil
}

func (i *InfluxPublisher) Close() error {
	i.client.Close()
	return nil
}

// predictionPoint tags the point with its risk label
func predictionPoint(event *protocol.PredictionEvent) *write.Point {
	return influxdb2.NewPoint(
		influxMeasurement,
		map[string]string{"predicted_risk": event.PredictedRisk},
		map[string]interface{}{
			"temperature_dht11": event.Temperature,
			"humidity_dht11":    event.Humidity,
			"gas1":              event.Gas,
			"run_id":            event.RunID,
		},
		event.Timestamp,
	)
}
