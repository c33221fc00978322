package protocol

import (
	"encoding/json"
	"time"
)

// PredictionEvent is the message format for a stored prediction
type PredictionEvent struct {
	Type          string    `json:"type"`
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature_dht11"`
	Humidity      float64   `json:"humidity_dht11"`
	Gas           int64     `json:"gas1"`
	PredictedRisk string    `json:"predicted_risk"`
}

const (
	EventTypePredictionStored = "PREDICTION_STORED"
)

// EncodePredictionEvent encodes a PredictionEvent to JSON
func EncodePredictionEvent(event *PredictionEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodePredictionEvent decodes JSON to PredictionEvent
func DecodePredictionEvent(data []byte) (*PredictionEvent, error) {
	var event PredictionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
