// Package pipeline runs one fetch, predict and write cycle against the
// fridge database. Every error ends the run; there are no retries and the
// next trigger is the only recovery.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/database"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/logger"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/metrics"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/model"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/protocol"
	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/publish"
)

// Connector opens a fresh database connection for one run
type Connector func(ctx context.Context) (*database.DB, error)

// Clock returns the current time
type Clock func() time.Time

// Options tunes a Job. Zero values fall back to the defaults.
type Options struct {
	Location     *time.Location // defaults to UTC
	GasThreshold int            // defaults to database.DefaultGasThreshold
	Timeout      time.Duration  // 0 means no run deadline
	Clock        Clock          // defaults to time.Now
	Publisher    *publish.Fanout
}

// Job is the prediction pipeline. It holds no per-run state, so the same Job
// is reused by every trigger.
type Job struct {
	connect      Connector
	model        *model.Handle
	location     *time.Location
	gasThreshold int
	timeout      time.Duration
	now          Clock
	publisher    *publish.Fanout
}

// NewJob creates a pipeline over an already loaded model
func NewJob(connect Connector, handle *model.Handle, opts Options) *Job {
	j := &Job{
		connect:      connect,
		model:        handle,
		location:     opts.Location,
		gasThreshold: opts.GasThreshold,
		timeout:      opts.Timeout,
		now:          opts.Clock,
		publisher:    opts.Publisher,
	}
	if j.location == nil {
		j.location = time.UTC
	}
	if j.gasThreshold <= 0 {
		j.gasThreshold = database.DefaultGasThreshold
	}
	if j.now == nil {
		j.now = time.Now
	}
	return j
}

// RunError records which step of a run failed
type RunError struct {
	RunID string
	Stage string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed at %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Run performs one pipeline run and returns the stored prediction. Failures
// are logged here and returned as *RunError.
func (j *Job) Run(ctx context.Context) (*database.Prediction, error) {
	runID := uuid.NewString()
	log := logger.WithRun(runID)
	start := time.Now()

	metrics.RunsTotal.Inc()
	defer func() {
		metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	log.Info().Msg("prediction run triggered")

	prediction, stage, err := j.execute(ctx, runID)
	if err != nil {
		metrics.RunsFailed.WithLabelValues(stage).Inc()
		runErr := &RunError{RunID: runID, Stage: stage, Err: err}
		log.Error().Err(err).Str("stage", stage).Msg("prediction run failed")
		return nil, runErr
	}

	metrics.PredictionsStored.WithLabelValues(prediction.PredictedRisk).Inc()
	metrics.LastSuccess.SetToCurrentTime()
	log.Info().
		Str("predicted_risk", prediction.PredictedRisk).
		Time("timestamp", prediction.Timestamp).
		Float64("temperature", prediction.Temperature).
		Float64("humidity", prediction.Humidity).
		Int64("gas", prediction.Gas).
		Dur("elapsed", time.Since(start)).
		Msg("prediction saved")

	j.publish(ctx, runID, prediction)

	return prediction, nil
}

// execute holds the connection for exactly the fetch and write steps
func (j *Job) execute(ctx context.Context, runID string) (*database.Prediction, string, error) {
	db, err := j.connect(ctx)
	if err != nil {
		return nil, metrics.StageConnect, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log := logger.WithRun(runID)
			log.Warn().Err(err).Msg("failed to close database connection")
		}
	}()

	reading, err := db.LatestReading(ctx, j.gasThreshold)
	if err != nil {
		return nil, metrics.StageFetch, err
	}

	label, err := j.model.Predict(reading.Features())
	if err != nil {
		return nil, metrics.StagePredict, fmt.Errorf("failed to predict: %w", err)
	}

	prediction := &database.Prediction{
		Timestamp:     j.now().In(j.location),
		Temperature:   reading.Temperature,
		Humidity:      reading.Humidity,
		Gas:           reading.Gas,
		PredictedRisk: label,
	}

	if err := db.InsertPrediction(ctx, prediction); err != nil {
		return nil, metrics.StageWrite, err
	}

	return prediction, "", nil
}

// publish fans the stored prediction out. The row is already committed, so
// failures here are logged and counted but do not fail the run.
func (j *Job) publish(ctx context.Context, runID string, p *database.Prediction) {
	if j.publisher.Len() == 0 {
		return
	}

	event := &protocol.PredictionEvent{
		Type:          protocol.EventTypePredictionStored,
		RunID:         runID,
		Timestamp:     p.Timestamp,
		Temperature:   p.Temperature,
		Humidity:      p.Humidity,
		Gas:           p.Gas,
		PredictedRisk: p.PredictedRisk,
	}

	log := logger.WithRun(runID)
	for _, result := range j.publisher.Publish(ctx, event) {
		if result.Err != nil {
			metrics.EventsFailed.WithLabelValues(result.Publisher).Inc()
			log.Warn().Err(result.Err).Str("publisher", result.Publisher).Msg("failed to publish prediction")
			continue
		}
		metrics.EventsPublished.WithLabelValues(result.Publisher).Inc()
	}
}

// DatabaseConnector opens a new connection with the given driver per run
func DatabaseConnector(driver, connectionString string) Connector {
	return func(ctx context.Context) (*database.DB, error) {
		return database.Connect(ctx, driver, connectionString)
	}
}
