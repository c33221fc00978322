package database

import (
	"time"
)

// DefaultGasThreshold is the gas reading at or above which a row is ignored
const DefaultGasThreshold = 4000

// SensorReading is one row of FridgeData as seen by the predictor
type SensorReading struct {
	Temperature float64
	Humidity    float64
	Gas         int64
}

// Features returns the reading in the order the classifier expects
func (r SensorReading) Features() []float64 {
	return []float64{r.Temperature, r.Humidity, float64(r.Gas)}
}

// Prediction is one row of PredictedFoodRisk
type Prediction struct {
	Timestamp     time.Time
	Temperature   float64
	Humidity      float64
	Gas           int64
	PredictedRisk string
}
