package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/protocol"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/pkg/config"
)

type mockPublisher struct {
	name      string
	err       error
	closeErr  error
	published []*protocol.PredictionEvent
	closed    bool
}

func (m *mockPublisher) Name() string { return m.name }

func (m *mockPublisher) Publish(ctx context.Context, event *protocol.PredictionEvent) error {
	m.published = append(m.published, event)
	return m.err
}

func (m *mockPublisher) Close() error {
	m.closed = true
	return m.closeErr
}

func testEvent() *protocol.PredictionEvent {
	return &protocol.PredictionEvent{
		Type:          protocol.EventTypePredictionStored,
		RunID:         "run-1",
		Timestamp:     time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Temperature:   4.2,
		Humidity:      65.0,
		Gas:           1200,
		PredictedRisk: "Moderate Risk",
	}
}

func TestFanout_ContinuesAfterFailure(t *testing.T) {
	failing := &mockPublisher{name: "first", err: errors.New("broker down")}
	ok := &mockPublisher{name: "second"}
	f := NewFanout(failing, ok)

	results := f.Publish(context.Background(), testEvent())

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Err == nil || results[0].Publisher != "first" {
		t.Errorf("Expected error from first publisher, got %+v", results[0])
	}
	if results[1].Err != nil {
		t.Errorf("Expected second publisher to succeed, got %v", results[1].Err)
	}
	if len(ok.published) != 1 {
		t.Errorf("Second publisher should receive the event")
	}
}

func TestFanout_CloseJoinsErrors(t *testing.T) {
	a := &mockPublisher{name: "a", closeErr: errors.New("a failed")}
	b := &mockPublisher{name: "b"}
	f := NewFanout(a, b)

	err := f.Close()
	if err == nil {
		t.Fatal("Expected close error")
	}
	if !a.closed || !b.closed {
		t.Error("All publishers must be closed")
	}
}

func TestFanout_Nil(t *testing.T) {
	var f *Fanout
	if f.Len() != 0 {
		t.Error("Nil fanout should be empty")
	}
	if results := f.Publish(context.Background(), testEvent()); results != nil {
		t.Errorf("Nil fanout should not publish, got %v", results)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Nil fanout close failed: %v", err)
	}
}

func TestFromConfig_NothingConfigured(t *testing.T) {
	f, err := FromConfig(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if f.Len() != 0 {
		t.Errorf("Expected no publishers, got %d", f.Len())
	}
}

func TestFromConfig_KafkaAndInflux(t *testing.T) {
	cfg := &config.Config{
		Kafka:  config.KafkaConfig{Brokers: []string{"localhost:9092"}, TopicPredictions: "fridge.predictions"},
		Influx: config.InfluxConfig{URL: "http://localhost:8086", Token: "t", Org: "o", Bucket: "fridge"},
	}

	f, err := FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	defer f.Close()

	if f.Len() != 2 {
		t.Errorf("Expected 2 publishers, got %d", f.Len())
	}
}

func TestPredictionPoint(t *testing.T) {
	event := testEvent()
	p := predictionPoint(event)

	if p.Name() != influxMeasurement {
		t.Errorf("Expected measurement %s, got %s", influxMeasurement, p.Name())
	}
	if !p.Time().Equal(event.Timestamp) {
		t.Errorf("Expected time %v, got %v", event.Timestamp, p.Time())
	}
	tags := p.TagList()
	if len(tags) != 1 || tags[0].Key != "predicted_risk" || tags[0].Value != "Moderate Risk" {
		t.Errorf("Unexpected tags: %+v", tags)
	}
	if len(p.FieldList()) != 4 {
		t.Errorf("Expected 4 fields, got %d", len(p.FieldList()))
	}
}

func TestPredictionEventEncoding(t *testing.T) {
	data, err := protocol.EncodePredictionEvent(testEvent())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := protocol.DecodePredictionEvent(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.PredictedRisk != "Moderate Risk" || decoded.Gas != 1200 {
		t.Errorf("Unexpected decoded event: %+v", decoded)
	}
}
